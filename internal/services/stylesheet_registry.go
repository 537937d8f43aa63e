package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
)

// Stylesheet change kinds
const (
	StylesheetUpdated = "updated"
	StylesheetRemoved = "removed"
)

// StylesheetEvent describes one change of the registry
type StylesheetEvent struct {
	Kind  string
	Sheet models.Stylesheet
}

// StylesheetListener observes registry changes
type StylesheetListener func(StylesheetEvent)

// StylesheetRegistry is the global style area: an ordered set of named CSS fragments.
// Each id maps to exactly one fragment; injecting an existing id replaces its text in place.
type StylesheetRegistry struct {
	mu        sync.RWMutex
	order     []string
	items     map[string]*models.Stylesheet
	listeners []*stylesheetSubscription
	metrics   *observability.EngineMetrics
	now       func() time.Time
}

type stylesheetSubscription struct {
	fn StylesheetListener
}

// NewStylesheetRegistry creates an empty registry
func NewStylesheetRegistry(metrics *observability.EngineMetrics) *StylesheetRegistry {
	return &StylesheetRegistry{
		items:   make(map[string]*models.Stylesheet),
		metrics: metrics,
		now:     time.Now,
	}
}

// Inject creates or replaces the fragment id with css
func (r *StylesheetRegistry) Inject(id, css string) models.Stylesheet {
	r.mu.Lock()
	sheet := &models.Stylesheet{ID: id, CSS: css, UpdatedAt: r.now().UTC()}
	if _, exists := r.items[id]; !exists {
		r.order = append(r.order, id)
	}
	r.items[id] = sheet
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	r.metrics.RecordFragmentUpdate(context.Background(), StylesheetUpdated)
	r.notify(listeners, StylesheetEvent{Kind: StylesheetUpdated, Sheet: *sheet})
	return *sheet
}

// Remove deletes the fragment id and reports whether it existed
func (r *StylesheetRegistry) Remove(id string) bool {
	r.mu.Lock()
	sheet, exists := r.items[id]
	if !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	r.metrics.RecordFragmentUpdate(context.Background(), StylesheetRemoved)
	r.notify(listeners, StylesheetEvent{Kind: StylesheetRemoved, Sheet: models.Stylesheet{ID: sheet.ID, UpdatedAt: r.now().UTC()}})
	return true
}

// Get returns the fragment id
func (r *StylesheetRegistry) Get(id string) (models.Stylesheet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sheet, ok := r.items[id]
	if !ok {
		return models.Stylesheet{}, false
	}
	return *sheet, true
}

// Has reports whether fragment id exists
func (r *StylesheetRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[id]
	return ok
}

// List returns every fragment in first-injection order
func (r *StylesheetRegistry) List() []models.Stylesheet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Stylesheet, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.items[id])
	}
	return out
}

// Len returns the number of fragments
func (r *StylesheetRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// CombinedCSS concatenates every fragment in order
func (r *StylesheetRegistry) CombinedCSS() string {
	sheets := r.List()
	parts := make([]string, 0, len(sheets))
	for _, s := range sheets {
		if s.CSS != "" {
			parts = append(parts, s.CSS)
		}
	}
	return strings.Join(parts, "\n\n")
}

// OnChange registers l for every change; the returned func removes it
func (r *StylesheetRegistry) OnChange(l StylesheetListener) func() {
	sub := &stylesheetSubscription{fn: l}

	r.mu.Lock()
	r.listeners = append(r.listeners, sub)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, existing := range r.listeners {
				if existing == sub {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// snapshotListeners must be called with the lock held
func (r *StylesheetRegistry) snapshotListeners() []*stylesheetSubscription {
	out := make([]*stylesheetSubscription, len(r.listeners))
	copy(out, r.listeners)
	return out
}

func (r *StylesheetRegistry) notify(listeners []*stylesheetSubscription, ev StylesheetEvent) {
	for _, l := range listeners {
		l.fn(ev)
	}
}
