package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themeflow/server/internal/store"
)

type profile struct {
	DisplayName string `json:"displayName"`
	Tags        []string
}

func newTestConnector() (*StoreConnector, *store.AppStore, *store.MemoryStore) {
	app := store.NewAppStore()
	users := store.NewMemoryStore(store.State{
		"current": &profile{DisplayName: "Ada", Tags: []string{"admin", "ops"}},
		"byID":    map[string]any{"u1": map[string]any{"name": "Grace"}},
	})
	c := NewStoreConnector(map[string]store.Store{
		"oneStore":  app,
		"userStore": users,
	})
	return c, app, users
}

func TestStoreConnector_ResolveValue(t *testing.T) {
	c, app, _ := newTestConnector()
	app.ApplyPreset("main-canvas", "card")

	t.Run("reads a top-level key", func(t *testing.T) {
		v, ok := c.ResolveValue("oneStore", "currentView")
		require.True(t, ok)
		assert.Equal(t, "dashboard", v)
	})

	t.Run("reads a bracketed key", func(t *testing.T) {
		v, ok := c.ResolveValue("oneStore", "activePresets[main-canvas]")
		require.True(t, ok)
		assert.Equal(t, []string{"card"}, v)
	})

	t.Run("walks struct fields by json tag and name", func(t *testing.T) {
		v, ok := c.ResolveValue("userStore", "current.displayName")
		require.True(t, ok)
		assert.Equal(t, "Ada", v)

		v, ok = c.ResolveValue("userStore", "current.Tags.1")
		require.True(t, ok)
		assert.Equal(t, "ops", v)
	})

	t.Run("walks nested maps", func(t *testing.T) {
		v, ok := c.ResolveValue("userStore", "byID[u1].name")
		require.True(t, ok)
		assert.Equal(t, "Grace", v)
	})

	t.Run("misses report false", func(t *testing.T) {
		for _, path := range []string{"nope", "current.missing", "current.Tags.9", "byID[u2]", "", "current..displayName"} {
			v, ok := c.ResolveValue("userStore", path)
			assert.False(t, ok, path)
			assert.Nil(t, v, path)
		}
	})

	t.Run("unknown store reports false", func(t *testing.T) {
		_, ok := c.ResolveValue("ghost", "currentView")
		assert.False(t, ok)
	})

	t.Run("reads the current state", func(t *testing.T) {
		app.SetView("focus")
		v, _ := c.ResolveValue("oneStore", "currentView")
		assert.Equal(t, "focus", v)
	})
}

func TestStoreConnector_ResolvePath(t *testing.T) {
	c, _, _ := newTestConnector()

	v, ok := c.ResolvePath("userStore.byID[u1].name")
	require.True(t, ok)
	assert.Equal(t, "Grace", v)

	_, ok = c.ResolvePath("userStore")
	assert.False(t, ok)
}

func TestStoreConnector_ResolveAction(t *testing.T) {
	c, app, _ := newTestConnector()

	t.Run("returns callable values", func(t *testing.T) {
		fn, ok := c.ResolveAction("oneStore", "setView")
		require.True(t, ok)

		setView, isAction := fn.(store.ViewAction)
		require.True(t, isAction)
		setView("focus")
		assert.Equal(t, "focus", app.CurrentView())
	})

	t.Run("rejects data", func(t *testing.T) {
		_, ok := c.ResolveAction("oneStore", "currentView")
		assert.False(t, ok)
	})

	t.Run("rejects missing names", func(t *testing.T) {
		_, ok := c.ResolveAction("oneStore", "launchRockets")
		assert.False(t, ok)
	})
}

func TestStoreConnector_Subscribe(t *testing.T) {
	c, app, _ := newTestConnector()

	t.Run("forwards to the store", func(t *testing.T) {
		calls := 0
		unsub := c.Subscribe("oneStore", func() { calls++ })
		app.SetView("focus")
		unsub()
		app.SetView("dashboard")
		assert.Equal(t, 1, calls)
	})

	t.Run("unknown store is a no-op", func(t *testing.T) {
		unsub := c.Subscribe("ghost", func() { t.Fatal("unexpected notification") })
		require.NotNil(t, unsub)
		unsub()
	})
}

func TestLookupField(t *testing.T) {
	t.Run("non string map keys miss", func(t *testing.T) {
		_, ok := LookupField(map[int]string{1: "a"}, "1")
		assert.False(t, ok)
	})

	t.Run("nil pointer misses", func(t *testing.T) {
		var p *profile
		_, ok := LookupField(p, "Tags")
		assert.False(t, ok)
	})

	t.Run("unexported fields are invisible", func(t *testing.T) {
		_, ok := LookupField(struct{ hidden string }{"x"}, "hidden")
		assert.False(t, ok)
	})
}
