package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/themeflow/server/internal/observability"
)

// ThemeWatcher reloads applied themes when their documents change on disk
type ThemeWatcher struct {
	processor *ThemeProcessor
	dir       string
	debounce  time.Duration
	logger    *observability.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewThemeWatcher creates a watcher over dir. Bursts of events for one theme
// within debounce collapse into a single reload.
func NewThemeWatcher(processor *ThemeProcessor, dir string, debounce time.Duration, logger *observability.Logger) *ThemeWatcher {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &ThemeWatcher{
		processor: processor,
		dir:       dir,
		debounce:  debounce,
		logger:    logger.WithField("component", "theme_watcher"),
		timers:    make(map[string]*time.Timer),
	}
}

// Run watches the directory until ctx is done
func (w *ThemeWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.WithField("dir", w.dir).Info("Watching theme directory")

	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Theme watcher error")
		}
	}
}

func (w *ThemeWatcher) handle(ctx context.Context, event fsnotify.Event) {
	name, ok := ThemeNameFromPath(event.Name)
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.logger.WithField("theme", name).Info("Theme document removed; evicting")
		w.processor.Evict(name)
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		w.schedule(ctx, name)
	}
}

// schedule reloads name after the debounce window, restarting the window on every event
func (w *ThemeWatcher) schedule(ctx context.Context, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[name]; ok {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, name)
		w.mu.Unlock()
		w.reload(ctx, name)
	})
}

func (w *ThemeWatcher) reload(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}
	// An atomic save evicts the theme before the new file appears, so an
	// applied stylesheet counts as in use even without a cache entry.
	_, cached := w.processor.GetTheme(name)
	if !cached && !w.processor.IsApplied(name) {
		w.logger.WithField("theme", name).Debug("Theme not in use; skipping reload")
		return
	}
	if w.processor.ReloadTheme(ctx, name) {
		w.logger.WithField("theme", name).Info("Reloaded theme from disk")
	}
}

func (w *ThemeWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
}
