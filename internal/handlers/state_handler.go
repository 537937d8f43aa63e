package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/services"
	"github.com/themeflow/server/internal/store"
)

// StateHandler exposes the application store. Changes go through the store's
// own actions, resolved by name like any component binding.
type StateHandler struct {
	connector *services.StoreConnector
	storeName string
	presets   *services.PresetManager
}

// NewStateHandler creates a new StateHandler over the named store
func NewStateHandler(connector *services.StoreConnector, storeName string, presets *services.PresetManager) *StateHandler {
	return &StateHandler{connector: connector, storeName: storeName, presets: presets}
}

func (h *StateHandler) value(path string) any {
	v, _ := h.connector.ResolveValue(h.storeName, path)
	return v
}

func (h *StateHandler) action(name string) any {
	fn, _ := h.connector.ResolveAction(h.storeName, name)
	return fn
}

// GetState returns a snapshot of the store data
// GET /api/state
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	resp := models.StateResponse{}
	resp.View, _ = h.value(store.KeyCurrentView).(string)
	resp.ActivePresets, _ = h.value(store.KeyActivePresets).(map[string][]string)
	resp.GlobalPresets, _ = h.value(store.KeyGlobalPresets).(map[string][]string)
	resp.AvailablePresets, _ = h.value(store.KeyAvailablePresets).([]string)
	resp.SelectedAssets, _ = h.value(store.KeySelectedAssets).([]string)
	resp.ActiveAsset, _ = h.value(store.KeyActiveAsset).(string)

	writeJSON(w, http.StatusOK, resp)
}

// SetView selects the layout to render
// PUT /api/view
func (h *StateHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var req models.ViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.View == "" {
		writeError(w, http.StatusBadRequest, "A view is required")
		return
	}

	setView, ok := h.action("setView").(store.ViewAction)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store has no setView action")
		return
	}
	setView(req.View)

	writeJSON(w, http.StatusOK, req)
}

// ListAssets returns the known assets
// GET /api/assets
func (h *StateHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, _ := h.value(store.KeyAssets).([]store.Asset)
	if assets == nil {
		assets = []store.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

// AddAsset registers an asset
// POST /api/assets
func (h *StateHandler) AddAsset(w http.ResponseWriter, r *http.Request) {
	var asset store.Asset
	if err := json.NewDecoder(r.Body).Decode(&asset); err != nil || asset.ID == "" {
		writeError(w, http.StatusBadRequest, "An asset id is required")
		return
	}

	addAsset, ok := h.action("addAsset").(store.AddAssetAction)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store has no addAsset action")
		return
	}
	addAsset(asset)

	writeJSON(w, http.StatusCreated, asset)
}

// SelectAsset makes an asset the active one
// POST /api/assets/{id}/select
func (h *StateHandler) SelectAsset(w http.ResponseWriter, r *http.Request) {
	selectAsset, ok := h.action("selectAsset").(store.AssetAction)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store has no selectAsset action")
		return
	}
	selectAsset(chi.URLParam(r, "id"))

	h.GetState(w, r)
}

// SetGlobalPreset sets the default preset of an asset type
// PUT /api/global-presets/{type}
func (h *StateHandler) SetGlobalPreset(w http.ResponseWriter, r *http.Request) {
	var req models.PresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PresetID == "" {
		writeError(w, http.StatusBadRequest, "A presetId is required")
		return
	}

	setGlobal, ok := h.action("setGlobalPreset").(store.GlobalAction)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store has no setGlobalPreset action")
		return
	}
	setGlobal(chi.URLParam(r, "type"), req.PresetID)

	h.GetState(w, r)
}

// ChangePreset applies, removes or toggles one preset of an asset
// POST /api/assets/{id}/presets
func (h *StateHandler) ChangePreset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")

	var req models.PresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PresetID == "" {
		writeError(w, http.StatusBadRequest, "A presetId is required")
		return
	}
	if req.Op == "" {
		req.Op = models.PresetOpApply
	}

	var name string
	switch req.Op {
	case models.PresetOpApply:
		name = "applyPreset"
	case models.PresetOpRemove:
		name = "removePreset"
	case models.PresetOpToggle:
		name = "togglePreset"
	default:
		writeError(w, http.StatusBadRequest, "op must be apply, remove or toggle")
		return
	}

	fn, ok := h.action(name).(store.PresetAction)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store has no "+name+" action")
		return
	}
	fn(assetID, req.PresetID)

	h.writeAssetPresets(w, assetID)
}

// ClearPresets empties the preset list of an asset
// DELETE /api/assets/{id}/presets
func (h *StateHandler) ClearPresets(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")

	clearPresets, ok := h.action("clearPresets").(store.AssetAction)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store has no clearPresets action")
		return
	}
	clearPresets(assetID)

	h.writeAssetPresets(w, assetID)
}

// GetVariables returns the active presets and resolved variables of an asset
// GET /api/assets/{id}/variables
func (h *StateHandler) GetVariables(w http.ResponseWriter, r *http.Request) {
	h.writeAssetPresets(w, chi.URLParam(r, "id"))
}

func (h *StateHandler) writeAssetPresets(w http.ResponseWriter, assetID string) {
	all, _ := h.value(store.KeyActivePresets).(map[string][]string)
	presets := all[assetID]
	if presets == nil {
		presets = []string{}
	}
	writeJSON(w, http.StatusOK, models.AssetPresetsResponse{
		AssetID:   assetID,
		Presets:   presets,
		Variables: h.presets.Variables(assetID),
	})
}
