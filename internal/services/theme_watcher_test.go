package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
)

func newWatcherFixture(t *testing.T) (string, *ThemeProcessor, *StylesheetRegistry, *ThemeWatcher) {
	t.Helper()
	dir := t.TempDir()
	write := func(css string) {
		doc := `{"structure": {"root": {"color": "` + css + `"}}}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ui-theme.json"), []byte(doc), 0o644))
	}
	write("red")

	registry := NewStylesheetRegistry(nil)
	processor := NewThemeProcessor(NewFileLoader(dir), registry, nil, observability.Nop())
	watcher := NewThemeWatcher(processor, dir, 10*time.Millisecond, observability.Nop())
	return dir, processor, registry, watcher
}

func TestThemeWatcher_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("writes reload applied themes", func(t *testing.T) {
		dir, processor, registry, watcher := newWatcherFixture(t)
		require.True(t, processor.ApplyTheme(ctx, "ui"))

		path := filepath.Join(dir, "ui-theme.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"structure": {"root": {"color": "blue"}}}`), 0o644))
		watcher.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})
		watcher.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})

		assert.Eventually(t, func() bool {
			sheet, _ := registry.Get(models.ThemeStyleID("ui"))
			return strings.Contains(sheet.CSS, "color: blue;")
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("atomic save reloads an applied theme", func(t *testing.T) {
		dir, processor, registry, watcher := newWatcherFixture(t)
		require.True(t, processor.ApplyTheme(ctx, "ui"))

		path := filepath.Join(dir, "ui-theme.json")
		tmp := filepath.Join(dir, ".ui-theme.json.swp")
		require.NoError(t, os.WriteFile(tmp, []byte(`{"structure": {"root": {"color": "blue"}}}`), 0o644))
		require.NoError(t, os.Rename(path, path+".bak"))
		watcher.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Rename})
		require.NoError(t, os.Rename(tmp, path))
		watcher.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create})

		assert.Eventually(t, func() bool {
			sheet, _ := registry.Get(models.ThemeStyleID("ui"))
			return strings.Contains(sheet.CSS, "color: blue;")
		}, 2*time.Second, 10*time.Millisecond)
		assert.True(t, processor.IsApplied("ui"))
	})

	t.Run("removed themes stay unloaded", func(t *testing.T) {
		dir, processor, registry, watcher := newWatcherFixture(t)
		require.True(t, processor.ApplyTheme(ctx, "ui"))
		processor.RemoveTheme("ui")

		watcher.handle(ctx, fsnotify.Event{Name: filepath.Join(dir, "ui-theme.json"), Op: fsnotify.Write})
		time.Sleep(50 * time.Millisecond)

		assert.False(t, processor.IsApplied("ui"))
		assert.Equal(t, 0, registry.Len())
	})

	t.Run("unused themes are not loaded", func(t *testing.T) {
		dir, processor, registry, watcher := newWatcherFixture(t)

		watcher.handle(ctx, fsnotify.Event{Name: filepath.Join(dir, "ui-theme.json"), Op: fsnotify.Create})
		time.Sleep(50 * time.Millisecond)

		_, cached := processor.GetTheme("ui")
		assert.False(t, cached)
		assert.Equal(t, 0, registry.Len())
	})

	t.Run("removal evicts", func(t *testing.T) {
		dir, processor, _, watcher := newWatcherFixture(t)
		_, err := processor.Load(ctx, "ui")
		require.NoError(t, err)

		watcher.handle(ctx, fsnotify.Event{Name: filepath.Join(dir, "ui-theme.json"), Op: fsnotify.Remove})

		_, cached := processor.GetTheme("ui")
		assert.False(t, cached)
	})

	t.Run("other files are ignored", func(t *testing.T) {
		dir, processor, _, watcher := newWatcherFixture(t)
		_, err := processor.Load(ctx, "ui")
		require.NoError(t, err)

		watcher.handle(ctx, fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Remove})

		_, cached := processor.GetTheme("ui")
		assert.True(t, cached)
	})
}

func TestThemeWatcher_Run(t *testing.T) {
	_, processor, _, watcher := newWatcherFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Empty(t, processor.Themes())

	t.Run("missing directory fails", func(t *testing.T) {
		w := NewThemeWatcher(processor, filepath.Join(t.TempDir(), "missing"), time.Millisecond, observability.Nop())
		assert.Error(t, w.Run(context.Background()))
	})
}
