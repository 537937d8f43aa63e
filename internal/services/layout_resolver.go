package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/store"
)

// Resolution gap kinds
const (
	GapLayout    = "layout"
	GapComponent = "component"
	GapPreset    = "preset"
	GapTheme     = "theme"
)

// ResolverOptions locates the view key and the per-asset preset map in the stores
type ResolverOptions struct {
	ViewStore   string
	ViewPath    string
	DefaultView string
	PresetStore string
	PresetPath  string
	IDs         *IDGenerator
}

// DefaultResolverOptions reads oneStore.currentView and oneStore.activePresets
func DefaultResolverOptions() ResolverOptions {
	return ResolverOptions{
		ViewStore:   "oneStore",
		ViewPath:    store.KeyCurrentView,
		DefaultView: store.DefaultView,
		PresetStore: "oneStore",
		PresetPath:  store.KeyActivePresets,
	}
}

// IDGenerator produces component identities of the form type-<unixMillis>-<n>.
// The counter is shared by every resolution using the generator.
type IDGenerator struct {
	counter atomic.Uint64
	now     func() time.Time
}

// NewIDGenerator creates a generator; a nil clock uses time.Now
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a fresh identity for a component of type typ
func (g *IDGenerator) Next(typ string) string {
	n := g.counter.Add(1) - 1
	return fmt.Sprintf("%s-%d-%d", typ, g.now().UnixMilli(), n)
}

// GridArea names the grid placement of the child at index i:
// a..z for 0..25, then two letters (aa, ab, ...).
func GridArea(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	return string(rune('a'+i/26-1)) + string(rune('a'+i%26))
}

// LayoutResolver turns the active layout of a theme into placed, bound render nodes
type LayoutResolver struct {
	connector  *StoreConnector
	components *ComponentRegistry
	opts       ResolverOptions
	metrics    *observability.EngineMetrics
	logger     *observability.Logger
}

// NewLayoutResolver creates a resolver reading state through connector
func NewLayoutResolver(connector *StoreConnector, components *ComponentRegistry, opts ResolverOptions, metrics *observability.EngineMetrics, logger *observability.Logger) *LayoutResolver {
	defaults := DefaultResolverOptions()
	if opts.ViewStore == "" {
		opts.ViewStore = defaults.ViewStore
	}
	if opts.ViewPath == "" {
		opts.ViewPath = defaults.ViewPath
	}
	if opts.DefaultView == "" {
		opts.DefaultView = defaults.DefaultView
	}
	if opts.PresetStore == "" {
		opts.PresetStore = defaults.PresetStore
	}
	if opts.PresetPath == "" {
		opts.PresetPath = defaults.PresetPath
	}
	if opts.IDs == nil {
		opts.IDs = NewIDGenerator(nil)
	}
	if components == nil {
		components = NewComponentRegistry()
	}
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &LayoutResolver{
		connector:  connector,
		components: components,
		opts:       opts,
		metrics:    metrics,
		logger:     logger.WithField("component", "layout_resolver"),
	}
}

// CurrentView returns the view key held in the store, or the default view
func (r *LayoutResolver) CurrentView() string {
	v, ok := r.connector.ResolveValue(r.opts.ViewStore, r.opts.ViewPath)
	if s, isString := v.(string); ok && isString && s != "" {
		return s
	}
	return r.opts.DefaultView
}

// Resolve renders the layout selected by the current view
func (r *LayoutResolver) Resolve(ctx context.Context, doc *models.ThemeDocument) *models.RenderResult {
	return r.ResolveView(ctx, doc, r.CurrentView())
}

// ResolveView renders the named layout. A missing layout is logged and yields
// a result without container classes or nodes.
func (r *LayoutResolver) ResolveView(ctx context.Context, doc *models.ThemeDocument, view string) *models.RenderResult {
	ctx, span := observability.StartServiceSpan(ctx, "LayoutResolver", "Resolve",
		observability.ThemeName(doc.Name), observability.ViewKey(view))
	defer span.End()

	result := &models.RenderResult{Theme: doc.Name, View: view, Nodes: []*models.RenderNode{}}

	layout, ok := doc.Layout(view)
	if !ok {
		r.gap(ctx, GapLayout, doc.Name, view, doc.LayoutNames())
		return result
	}
	result.Classes = []string{"one-connect", view}

	for i, childID := range layout.Children {
		def, ok := doc.Component(childID)
		if !ok {
			r.gap(ctx, GapComponent, doc.Name, childID, doc.ComponentIDs())
			continue
		}
		result.Nodes = append(result.Nodes, r.resolveChild(i, childID, def))
	}

	observability.SetSuccess(span)
	return result
}

func (r *LayoutResolver) resolveChild(index int, childID string, def *models.ComponentDefinition) *models.RenderNode {
	typ := def.Type
	if typ == "" {
		typ = childID
	}

	node := &models.RenderNode{
		Key:           childID,
		Type:          typ,
		GridArea:      def.GridArea,
		ID:            def.ID,
		PresetTargets: def.PresetTargets,
		Props:         make(map[string]any),
	}

	if renderer, ok := r.components.Lookup(typ); ok {
		node.Renderer = renderer
	} else {
		node.Renderer = r.components.Placeholder()
		node.Placeholder = true
	}
	node.RendererName = node.Renderer.Name()

	if node.GridArea == "" {
		node.GridArea = GridArea(index)
	}
	if node.ID == "" {
		node.ID = r.opts.IDs.Next(typ)
	}

	if def.DataSource != "" {
		if storeName, path, ok := strings.Cut(def.DataSource, "."); ok {
			if v, found := r.connector.ResolveValue(storeName, path); found {
				node.Props[dataPropName(path)] = v
			}
		}
	}

	for _, binding := range def.DataActions {
		storeName, name, ok := strings.Cut(binding.Path, ".")
		if !ok {
			continue
		}
		if fn, found := r.connector.ResolveAction(storeName, name); found {
			node.Props[binding.Event] = models.BoundAction{Store: storeName, Name: name, Fn: fn}
		}
	}

	// Explicit props win over bound values
	if def.Props != nil {
		for _, k := range def.Props.Keys() {
			node.Props[k] = def.Props.Get(k).Interface()
		}
	}

	node.Classes = append([]string{"one-wrapper", typ + "-wrapper"}, r.activePresets(node.ID)...)
	return node
}

// activePresets returns the preset ids assigned to assetID, verbatim
func (r *LayoutResolver) activePresets(assetID string) []string {
	all, ok := r.connector.ResolveValue(r.opts.PresetStore, r.opts.PresetPath)
	if !ok {
		return nil
	}
	v, ok := LookupField(all, assetID)
	if !ok {
		return nil
	}
	return toStringList(v)
}

// dataPropName names the prop of a bound value after the final path segment;
// for a bracketed segment the key inside the brackets is used.
func dataPropName(path string) string {
	last := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		last = path[i+1:]
	}
	if field, key, bracketed := splitSegment(last); bracketed {
		if key != "" {
			return key
		}
		return field
	}
	return last
}

func toStringList(v any) []string {
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (r *LayoutResolver) gap(ctx context.Context, kind, theme, id string, candidates []string) {
	r.metrics.RecordResolutionGap(ctx, kind)
	logResolutionGap(r.logger.WithContext(ctx), kind, theme, id, candidates)
}

// logResolutionGap warns about a missing id, suggesting the closest known one
func logResolutionGap(logger *observability.Logger, kind, theme, id string, candidates []string) {
	fields := map[string]interface{}{
		"gap":   kind,
		"theme": theme,
		"id":    id,
	}
	if hint, ok := closestMatch(id, candidates); ok {
		fields["did_you_mean"] = hint
	}
	logger.WithFields(fields).Warnf("No %s definition found for %q", kind, id)
}

// closestMatch returns the candidate with the smallest edit distance to id,
// if it is close enough to be a plausible typo.
func closestMatch(id string, candidates []string) (string, bool) {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(id, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist == 0 {
		return "", false
	}
	limit := len(id) / 3
	if limit < 2 {
		limit = 2
	}
	return best, bestDist <= limit
}
