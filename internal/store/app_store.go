package store

import (
	"time"
)

// State keys of the application store
const (
	KeyCurrentView      = "currentView"
	KeyActivePresets    = "activePresets"
	KeyGlobalPresets    = "globalPresets"
	KeyAvailablePresets = "availablePresets"
	KeyAssets           = "assets"
	KeySelectedAssets   = "selectedAssets"
	KeyActiveAsset      = "activeAsset"

	DefaultView = "dashboard"
)

// Action signatures exposed in the application store snapshot
type (
	PresetAction     func(assetID, presetID string)
	AssetAction      func(assetID string)
	ViewAction       func(view string)
	GlobalAction     func(assetType, presetID string)
	PresetListAction func(presetIDs []string)
	AddAssetAction   func(asset Asset)
)

// Asset is a renderable element known to the application
type Asset struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
	Visible  bool      `json:"visible"`
	Created  time.Time `json:"created"`
}

// AppStore is the application state store: view selection, assets and per-asset presets
type AppStore struct {
	*MemoryStore
}

// NewAppStore creates a store with the default view and empty preset assignments
func NewAppStore() *AppStore {
	s := &AppStore{}
	s.MemoryStore = NewMemoryStore(State{
		KeyCurrentView:      DefaultView,
		KeyActivePresets:    map[string][]string{},
		KeyGlobalPresets:    map[string][]string{},
		KeyAvailablePresets: []string{},
		KeyAssets:           []Asset{},
		KeySelectedAssets:   []string{},
		KeyActiveAsset:      "",

		"applyPreset":         PresetAction(s.ApplyPreset),
		"removePreset":        PresetAction(s.RemovePreset),
		"togglePreset":        PresetAction(s.TogglePreset),
		"clearPresets":        AssetAction(s.ClearPresets),
		"setGlobalPreset":     GlobalAction(s.SetGlobalPreset),
		"setView":             ViewAction(s.SetView),
		"setAvailablePresets": PresetListAction(s.SetAvailablePresets),
		"selectAsset":         AssetAction(s.SelectAsset),
		"addAsset":            AddAssetAction(s.AddAsset),
	})
	return s
}

// CurrentView returns the selected view key
func (s *AppStore) CurrentView() string {
	v, _ := s.GetState()[KeyCurrentView].(string)
	return v
}

// ActivePresets returns the per-asset preset assignment snapshot
func (s *AppStore) ActivePresets() map[string][]string {
	return activePresets(s.GetState())
}

// PresetsFor returns the active presets of one asset
func (s *AppStore) PresetsFor(assetID string) []string {
	return s.ActivePresets()[assetID]
}

// Assets returns the known assets
func (s *AppStore) Assets() []Asset {
	assets, _ := s.GetState()[KeyAssets].([]Asset)
	return assets
}

// ApplyPreset appends presetID to the asset's preset list
func (s *AppStore) ApplyPreset(assetID, presetID string) {
	s.updatePresets(assetID, func(current []string) []string {
		next := make([]string, 0, len(current)+1)
		next = append(next, current...)
		return append(next, presetID)
	})
}

// RemovePreset drops every occurrence of presetID from the asset's preset list
func (s *AppStore) RemovePreset(assetID, presetID string) {
	s.updatePresets(assetID, func(current []string) []string {
		next := make([]string, 0, len(current))
		for _, p := range current {
			if p != presetID {
				next = append(next, p)
			}
		}
		return next
	})
}

// TogglePreset removes presetID if active, otherwise applies it
func (s *AppStore) TogglePreset(assetID, presetID string) {
	for _, p := range s.PresetsFor(assetID) {
		if p == presetID {
			s.RemovePreset(assetID, presetID)
			return
		}
	}
	s.ApplyPreset(assetID, presetID)
}

// ClearPresets empties the asset's preset list
func (s *AppStore) ClearPresets(assetID string) {
	s.updatePresets(assetID, func([]string) []string { return []string{} })
}

// SetGlobalPreset sets the default preset of an asset type
func (s *AppStore) SetGlobalPreset(assetType, presetID string) {
	s.Update(func(prev State) State {
		current, _ := prev[KeyGlobalPresets].(map[string][]string)
		next := make(map[string][]string, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[assetType] = []string{presetID}
		return State{KeyGlobalPresets: next}
	})
}

// SetView selects the layout to render
func (s *AppStore) SetView(view string) {
	s.Set(State{KeyCurrentView: view})
}

// SetAvailablePresets replaces the list of preset ids offered by the applied theme
func (s *AppStore) SetAvailablePresets(presetIDs []string) {
	next := make([]string, len(presetIDs))
	copy(next, presetIDs)
	s.Set(State{KeyAvailablePresets: next})
}

// SelectAsset makes id the single selected and active asset
func (s *AppStore) SelectAsset(id string) {
	s.Set(State{
		KeySelectedAssets: []string{id},
		KeyActiveAsset:    id,
	})
}

// AddAsset registers an asset, replacing any asset with the same id
func (s *AppStore) AddAsset(asset Asset) {
	if asset.Created.IsZero() {
		asset.Created = time.Now().UTC()
	}
	s.Update(func(prev State) State {
		current, _ := prev[KeyAssets].([]Asset)
		next := make([]Asset, 0, len(current)+1)
		for _, a := range current {
			if a.ID != asset.ID {
				next = append(next, a)
			}
		}
		return State{KeyAssets: append(next, asset)}
	})
}

func (s *AppStore) updatePresets(assetID string, fn func(current []string) []string) {
	s.Update(func(prev State) State {
		current := activePresets(prev)
		next := make(map[string][]string, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[assetID] = fn(current[assetID])
		return State{KeyActivePresets: next}
	})
}

func activePresets(state State) map[string][]string {
	m, _ := state[KeyActivePresets].(map[string][]string)
	return m
}
