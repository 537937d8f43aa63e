package services

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/store"
)

// PresetManagerOptions locates the preset theme and the store state the manager observes
type PresetManagerOptions struct {
	ThemeName   string
	StoreName   string
	PresetsPath string
	AssetsPath  string
	// RequireAssetRecord skips assets that are not listed under AssetsPath
	RequireAssetRecord bool
}

// DefaultPresetManagerOptions observes oneStore.activePresets against the ui theme
func DefaultPresetManagerOptions() PresetManagerOptions {
	return PresetManagerOptions{
		ThemeName:   "ui",
		StoreName:   "oneStore",
		PresetsPath: store.KeyActivePresets,
		AssetsPath:  store.KeyAssets,
	}
}

// PresetManager keeps one stylesheet fragment per asset holding the custom
// properties of its active presets.
type PresetManager struct {
	themes    *ThemeProcessor
	connector *StoreConnector
	registry  *StylesheetRegistry
	opts      PresetManagerOptions
	metrics   *observability.EngineMetrics
	logger    *observability.Logger

	mu        sync.Mutex
	variables map[string]*models.VariableMap
	lastSeen  map[string][]string
	// seq counts scheduled writes per asset; only the latest token may write
	seq         map[string]uint64
	unsubscribe func()
}

// NewPresetManager creates a manager; nothing is observed until Start
func NewPresetManager(themes *ThemeProcessor, connector *StoreConnector, registry *StylesheetRegistry, opts PresetManagerOptions, metrics *observability.EngineMetrics, logger *observability.Logger) *PresetManager {
	defaults := DefaultPresetManagerOptions()
	if opts.ThemeName == "" {
		opts.ThemeName = defaults.ThemeName
	}
	if opts.StoreName == "" {
		opts.StoreName = defaults.StoreName
	}
	if opts.PresetsPath == "" {
		opts.PresetsPath = defaults.PresetsPath
	}
	if opts.AssetsPath == "" {
		opts.AssetsPath = defaults.AssetsPath
	}
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &PresetManager{
		themes:    themes,
		connector: connector,
		registry:  registry,
		opts:      opts,
		metrics:   metrics,
		logger:    logger.WithField("component", "preset_manager"),
		variables: make(map[string]*models.VariableMap),
		lastSeen:  make(map[string][]string),
		seq:       make(map[string]uint64),
	}
}

// Start subscribes to the preset store and applies the current assignment
func (m *PresetManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.mu.Unlock()
		return
	}
	m.unsubscribe = m.connector.Subscribe(m.opts.StoreName, func() {
		m.sync(context.WithoutCancel(ctx))
	})
	m.mu.Unlock()

	m.sync(ctx)
}

// Stop unsubscribes from the store. Existing fragments are kept.
func (m *PresetManager) Stop() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// sync recomputes every asset whose preset list changed since the last notification
// and clears assets that disappeared from the assignment.
func (m *PresetManager) sync(ctx context.Context) {
	m.mu.Lock()
	// Reading under the lock pairs each snapshot with the tokens it claims,
	// so a later snapshot always holds the later tokens.
	current := m.assignment()
	var changed, removed []string
	for assetID, ids := range current {
		if prev, ok := m.lastSeen[assetID]; !ok || !slices.Equal(prev, ids) {
			changed = append(changed, assetID)
		}
	}
	for assetID := range m.lastSeen {
		if _, ok := current[assetID]; !ok {
			removed = append(removed, assetID)
		}
	}
	m.lastSeen = current
	tokens := make(map[string]uint64, len(changed)+len(removed))
	for _, assetID := range append(slices.Clone(changed), removed...) {
		tokens[assetID] = m.claimLocked(assetID)
	}
	m.mu.Unlock()

	slices.Sort(changed)
	for _, assetID := range changed {
		m.recompute(ctx, assetID, current[assetID], tokens[assetID])
	}
	for _, assetID := range removed {
		m.clearAsset(assetID, tokens[assetID])
	}
}

func (m *PresetManager) claimLocked(assetID string) uint64 {
	m.seq[assetID]++
	return m.seq[assetID]
}

func (m *PresetManager) claim(assetID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimLocked(assetID)
}

// currentLocked reports whether token is still the latest for assetID
func (m *PresetManager) currentLocked(assetID string, token uint64) bool {
	if m.seq[assetID] == token {
		return true
	}
	m.logger.WithField("asset_id", assetID).Debug("Discarding stale preset update")
	return false
}

// assignment reads the per-asset preset lists from the store
func (m *PresetManager) assignment() map[string][]string {
	out := make(map[string][]string)
	v, ok := m.connector.ResolveValue(m.opts.StoreName, m.opts.PresetsPath)
	if !ok {
		return out
	}
	switch all := v.(type) {
	case map[string][]string:
		for k, ids := range all {
			out[k] = slices.Clone(ids)
		}
	case map[string]any:
		for k, ids := range all {
			out[k] = toStringList(ids)
		}
	}
	return out
}

// Recompute rebuilds the fragment of assetID from presetIDs in order.
// An empty list clears the asset. If the preset theme is not loaded nothing changes.
func (m *PresetManager) Recompute(ctx context.Context, assetID string, presetIDs []string) {
	m.recompute(ctx, assetID, presetIDs, m.claim(assetID))
}

func (m *PresetManager) recompute(ctx context.Context, assetID string, presetIDs []string, token uint64) {
	if len(presetIDs) == 0 {
		m.clearAsset(assetID, token)
		return
	}
	if m.opts.RequireAssetRecord && !m.hasAssetRecord(assetID) {
		m.logger.WithContext(ctx).WithField("asset_id", assetID).Debug("Skipping presets of unknown asset")
		return
	}

	doc, ok := m.themes.GetTheme(m.opts.ThemeName)
	if !ok {
		m.metrics.RecordResolutionGap(ctx, GapTheme)
		m.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"gap":      GapTheme,
			"theme":    m.opts.ThemeName,
			"asset_id": assetID,
		}).Warn("Preset theme not loaded; keeping previous preset variables")
		return
	}

	_, span := observability.StartServiceSpan(ctx, "PresetManager", "Recompute", observability.AssetID(assetID))
	defer span.End()

	vars := m.resolve(ctx, doc, presetIDs)
	css := presetFragmentCSS(assetID, vars)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(assetID, token) {
		observability.AddEvent(span, "stale_recompute_discarded")
		return
	}
	m.variables[assetID] = vars
	m.registry.Inject(models.PresetStyleID(assetID), css)
}

// ResolveConflicts flattens presetIDs into one variable set, later presets winning.
// Nothing is injected.
func (m *PresetManager) ResolveConflicts(ctx context.Context, presetIDs []string) *models.VariableMap {
	doc, ok := m.themes.GetTheme(m.opts.ThemeName)
	if !ok {
		return models.NewVariableMap()
	}
	return m.resolve(ctx, doc, presetIDs)
}

func (m *PresetManager) resolve(ctx context.Context, doc *models.ThemeDocument, presetIDs []string) *models.VariableMap {
	vars := models.NewVariableMap()
	for _, id := range presetIDs {
		ref, ok := doc.FindPreset(id)
		if !ok {
			m.metrics.RecordResolutionGap(ctx, GapPreset)
			logResolutionGap(m.logger.WithContext(ctx), GapPreset, doc.Name, id, doc.PresetIDs())
			continue
		}
		ExtractPresetVariables(ref.Body, vars)
	}
	return vars
}

// ClearAsset removes the fragment and variables of assetID
func (m *PresetManager) ClearAsset(assetID string) {
	m.clearAsset(assetID, m.claim(assetID))
}

func (m *PresetManager) clearAsset(assetID string, token uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(assetID, token) {
		return
	}
	delete(m.variables, assetID)
	m.registry.Remove(models.PresetStyleID(assetID))
}

// Variables returns the active variables of assetID; empty if none
func (m *PresetManager) Variables(assetID string) *models.VariableMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	vars, ok := m.variables[assetID]
	if !ok {
		return models.NewVariableMap()
	}
	return vars
}

// RecomputeAll rebuilds every asset from the current store assignment, typically after a theme change
func (m *PresetManager) RecomputeAll(ctx context.Context) {
	m.mu.Lock()
	current := m.assignment()
	m.lastSeen = current
	tokens := make(map[string]uint64, len(current))
	for id := range current {
		tokens[id] = m.claimLocked(id)
	}
	m.mu.Unlock()

	assetIDs := make([]string, 0, len(current))
	for id := range current {
		assetIDs = append(assetIDs, id)
	}
	slices.Sort(assetIDs)
	for _, id := range assetIDs {
		m.recompute(ctx, id, current[id], tokens[id])
	}
}

func (m *PresetManager) hasAssetRecord(assetID string) bool {
	v, ok := m.connector.ResolveValue(m.opts.StoreName, m.opts.AssetsPath)
	if !ok {
		return false
	}
	switch assets := v.(type) {
	case []store.Asset:
		for _, a := range assets {
			if a.ID == assetID {
				return true
			}
		}
	case []any:
		for _, a := range assets {
			if id, ok := LookupField(a, "id"); ok && id == assetID {
				return true
			}
		}
	}
	return false
}

// ExtractPresetVariables flattens a preset body into custom properties.
// Scalars become --kebab(key); one nested object level becomes --kebab(key-sub);
// deeper levels, arrays and directive keys are dropped.
func ExtractPresetVariables(preset *models.Node, vars *models.VariableMap) {
	for _, key := range preset.Keys() {
		if strings.HasPrefix(key, models.DirectivePrefix) {
			continue
		}
		v := preset.Get(key)
		switch {
		case v.IsStyleValue():
			vars.Set("--"+CamelToKebab(key), v.Scalar)
		case v.IsObject():
			for _, sub := range v.Keys() {
				sv := v.Get(sub)
				if sv.IsStyleValue() {
					vars.Set(CamelToKebab("--"+key+"-"+sub), sv.Scalar)
				}
			}
		}
	}
}

// presetFragmentCSS renders the fragment of one asset
func presetFragmentCSS(assetID string, vars *models.VariableMap) string {
	var b strings.Builder
	b.WriteString("/* Runtime preset variables for ")
	b.WriteString(strings.ReplaceAll(assetID, "*/", "* /"))
	b.WriteString(" */\n")
	b.WriteString(`[data-id="`)
	b.WriteString(escapeAttrSelector(assetID))
	b.WriteString("\"] {\n")
	for _, name := range vars.Names() {
		value, _ := vars.Get(name)
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}

func escapeAttrSelector(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
