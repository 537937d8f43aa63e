package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
)

// LoadError reports a theme that could not be fetched, parsed or validated
type LoadError struct {
	Theme string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load theme %s: %v", e.Theme, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ApplyHook runs after a theme stylesheet has been injected
type ApplyHook func(ctx context.Context, name string, doc *models.ThemeDocument)

type cachedTheme struct {
	doc      *models.ThemeDocument
	origin   string
	loadedAt time.Time
}

// ThemeProcessor loads, caches, compiles and applies theme documents
type ThemeProcessor struct {
	loader   ThemeLoader
	registry *StylesheetRegistry
	metrics  *observability.EngineMetrics
	logger   *observability.Logger

	mu          sync.RWMutex
	themes      map[string]*cachedTheme
	generations map[string]uint64
	applied     map[string]bool
	hooks       []ApplyHook

	// applyMu pairs the cache check with the inject that follows it
	applyMu sync.Mutex
}

// NewThemeProcessor creates a processor reading through loader and injecting into registry
func NewThemeProcessor(loader ThemeLoader, registry *StylesheetRegistry, metrics *observability.EngineMetrics, logger *observability.Logger) *ThemeProcessor {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &ThemeProcessor{
		loader:      loader,
		registry:    registry,
		metrics:     metrics,
		logger:      logger.WithField("component", "theme_processor"),
		themes:      make(map[string]*cachedTheme),
		generations: make(map[string]uint64),
		applied:     make(map[string]bool),
	}
}

// OnApply registers a hook run after every successful apply
func (p *ThemeProcessor) OnApply(hook ApplyHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, hook)
}

// Load fetches and validates the named theme and caches it.
// If a newer load for the same name started meanwhile, the result is
// returned but not cached.
func (p *ThemeProcessor) Load(ctx context.Context, name string) (*models.ThemeDocument, error) {
	if err := models.ValidateThemeName(name); err != nil {
		return nil, &LoadError{Theme: name, Err: err}
	}

	ctx, span := observability.StartServiceSpan(ctx, "ThemeProcessor", "Load", observability.ThemeName(name))
	defer span.End()

	p.mu.Lock()
	p.generations[name]++
	gen := p.generations[name]
	p.mu.Unlock()

	raw, err := p.loader.Fetch(ctx, name)
	if err != nil {
		p.metrics.RecordThemeLoad(ctx, name, p.loader.Kind(), false)
		observability.RecordError(span, err)
		return nil, &LoadError{Theme: name, Err: err}
	}

	doc, err := models.ParseThemeDocument(name, raw.Data, raw.Format)
	if err != nil {
		p.metrics.RecordThemeLoad(ctx, name, p.loader.Kind(), false)
		observability.RecordError(span, err)
		return nil, &LoadError{Theme: name, Err: err}
	}
	p.metrics.RecordThemeLoad(ctx, name, p.loader.Kind(), true)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generations[name] != gen {
		observability.AddEvent(span, "stale_load_discarded")
		p.logger.WithContext(ctx).WithField("theme", name).Debug("Discarding stale theme load")
		return doc, nil
	}
	p.themes[name] = &cachedTheme{doc: doc, origin: raw.Origin, loadedAt: time.Now().UTC()}
	observability.SetSuccess(span)
	return doc, nil
}

// GetTheme returns a cached theme without loading
func (p *ThemeProcessor) GetTheme(name string) (*models.ThemeDocument, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cached, ok := p.themes[name]
	if !ok {
		return nil, false
	}
	return cached.doc, true
}

// Ensure returns the cached theme, loading it on first use
func (p *ThemeProcessor) Ensure(ctx context.Context, name string) (*models.ThemeDocument, error) {
	if doc, ok := p.GetTheme(name); ok {
		return doc, nil
	}
	return p.Load(ctx, name)
}

// Evict drops a cached theme so the next use loads it again
func (p *ThemeProcessor) Evict(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.themes, name)
	// A load in flight must not repopulate the cache with the evicted document
	p.generations[name]++
}

// RemoveTheme evicts the theme and withdraws its stylesheet
func (p *ThemeProcessor) RemoveTheme(name string) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.Evict(name)
	p.mu.Lock()
	delete(p.applied, name)
	p.mu.Unlock()
	p.registry.Remove(models.ThemeStyleID(name))
}

// IsApplied reports whether the theme's stylesheet is currently injected.
// Eviction alone keeps the stylesheet in place.
func (p *ThemeProcessor) IsApplied(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.applied[name]
}

// Themes returns the names of cached themes in sorted order
func (p *ThemeProcessor) Themes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.themes))
	for name := range p.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info describes the cached themes
func (p *ThemeProcessor) Info() []models.ThemeInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.ThemeInfo, 0, len(p.themes))
	for name, cached := range p.themes {
		out = append(out, models.ThemeInfo{Name: name, Source: cached.origin, Cached: true, UpdatedAt: cached.loadedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Compile turns doc into stylesheet text scoped under .scope
func (p *ThemeProcessor) Compile(ctx context.Context, doc *models.ThemeDocument, scope string) string {
	start := time.Now()
	css := CompileCSS(doc, scope)
	p.metrics.RecordCompile(ctx, scope, time.Since(start))
	return css
}

// ApplyTheme loads the theme if needed, compiles it and injects it under its stylesheet id.
// Failures are logged and reported as false.
func (p *ThemeProcessor) ApplyTheme(ctx context.Context, name string) bool {
	ctx, span := observability.StartServiceSpan(ctx, "ThemeProcessor", "ApplyTheme",
		observability.ThemeName(name), observability.StylesheetID(models.ThemeStyleID(name)))
	defer span.End()

	// A reload or eviction between Ensure and the inject supersedes the
	// document; retry once with whatever the cache holds now.
	for attempt := 0; attempt < 2; attempt++ {
		doc, err := p.Ensure(ctx, name)
		if err != nil {
			observability.RecordError(span, err)
			p.logger.WithContext(ctx).WithError(err).WithField("theme", name).Error("Failed to apply theme")
			return false
		}
		if p.apply(ctx, name, doc) {
			observability.SetSuccess(span)
			return true
		}
	}
	return true
}

// ReloadTheme forces a fresh load and reapplies the theme
func (p *ThemeProcessor) ReloadTheme(ctx context.Context, name string) bool {
	doc, err := p.Load(ctx, name)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("theme", name).Error("Failed to reload theme")
		return false
	}
	// When a newer load owns the cache it applies its own result
	p.apply(ctx, name, doc)
	return true
}

// apply injects doc unless the cache no longer holds it. It reports whether
// the stylesheet was written.
func (p *ThemeProcessor) apply(ctx context.Context, name string, doc *models.ThemeDocument) bool {
	css := p.Compile(ctx, doc, name)

	p.applyMu.Lock()
	if cached, ok := p.GetTheme(name); !ok || cached != doc {
		p.applyMu.Unlock()
		p.logger.WithContext(ctx).WithField("theme", name).Debug("Skipping superseded theme document")
		return false
	}
	p.registry.Inject(models.ThemeStyleID(name), css)
	p.mu.Lock()
	p.applied[name] = true
	p.mu.Unlock()
	p.applyMu.Unlock()

	p.mu.RLock()
	hooks := make([]ApplyHook, len(p.hooks))
	copy(hooks, p.hooks)
	p.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, name, doc)
	}
	p.logger.WithContext(ctx).WithField("theme", name).Info("Applied theme")
	return true
}
