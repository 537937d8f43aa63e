package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/repository"
	"github.com/themeflow/server/internal/services"
	"github.com/themeflow/server/internal/store"
)

const testAdminKey = "admin-key"

type testEnv struct {
	handler   http.Handler
	app       *store.AppStore
	registry  *services.StylesheetRegistry
	processor *services.ThemeProcessor
	hub       *services.WebSocketHub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "themes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewThemeDocumentRepository(db)
	require.NoError(t, repository.SeedSystemThemes(ctx, repo))

	logger := observability.Nop()
	registry := services.NewStylesheetRegistry(nil)
	processor := services.NewThemeProcessor(services.NewRepositoryLoader(repo), registry, nil, logger)

	app := store.NewAppStore()
	connector := services.NewStoreConnector(map[string]store.Store{"oneStore": app})
	resolver := services.NewLayoutResolver(connector, nil, services.DefaultResolverOptions(), nil, logger)
	presets := services.NewPresetManager(processor, connector, registry, services.DefaultPresetManagerOptions(), nil, logger)
	processor.OnApply(func(ctx context.Context, name string, doc *models.ThemeDocument) {
		app.SetAvailablePresets(doc.PresetIDs())
		presets.RecomputeAll(ctx)
	})
	presets.Start(ctx)
	t.Cleanup(presets.Stop)

	hub := services.NewWebSocketHub(nil, logger)
	go hub.Run(ctx)
	t.Cleanup(hub.WatchStylesheets(registry))

	handler := NewRouter(RouterConfig{
		Health:       NewHealthHandler(),
		Themes:       NewThemeHandler(processor, repo, logger),
		Styles:       NewStylesheetHandler(registry),
		Render:       NewRenderHandler(resolver, services.NewHTMLRenderer(), "/styles.css", logger),
		State:        NewStateHandler(connector, "oneStore", presets),
		WebSocket:    NewWebSocketHandler(hub, registry, logger),
		Processor:    processor,
		DefaultTheme: "ui",
		AdminKey:     testAdminKey,
	})

	return &testEnv{handler: handler, app: app, registry: registry, processor: processor, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		rec := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", decode[models.HealthResponse](t, rec).Status)
	}

	rec := env.do(t, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Version, decode[VersionResponse](t, rec).Version)
}

func TestThemeRoutes(t *testing.T) {
	env := newTestEnv(t)

	t.Run("list includes stored themes", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/themes", "")
		require.Equal(t, http.StatusOK, rec.Code)

		list := decode[models.ThemeListResponse](t, rec)
		require.NotEmpty(t, list.Themes)
		assert.Equal(t, "ui", list.Themes[0].Name)
		assert.False(t, list.Themes[0].Cached)
	})

	t.Run("get keeps document order", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/themes/ui", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Body.String(), `{"variables":`))
	})

	t.Run("get errors", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/themes/ghost", "").Code)
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/themes/bad.name", "").Code)
	})

	t.Run("css", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/themes/ui/css", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), ".ui {\n  /* Theme Variables */"))
	})

	t.Run("apply injects the stylesheet", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/themes/ui/apply", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.ApplyThemeResponse](t, rec)
		assert.Equal(t, "ui-theme-styles", resp.StylesheetID)

		rec = env.do(t, http.MethodGet, "/api/stylesheets", "")
		sheets := decode[[]models.StylesheetSummary](t, rec)
		require.Len(t, sheets, 1)
		assert.Equal(t, "ui-theme-styles", sheets[0].ID)

		rec = env.do(t, http.MethodGet, "/styles.css", "")
		assert.Contains(t, rec.Body.String(), ".ui.card {")

		rec = env.do(t, http.MethodGet, "/api/state", "")
		state := decode[models.StateResponse](t, rec)
		assert.Contains(t, state.AvailablePresets, "card")
	})

	t.Run("conditional stylesheet requests", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/styles.css", "")
		etag := rec.Header().Get("ETag")
		require.NotEmpty(t, etag)

		rec = env.do(t, http.MethodGet, "/styles.css", "", "If-None-Match", etag)
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())

		rec = env.do(t, http.MethodGet, "/api/stylesheets/ui-theme-styles", "", "If-None-Match", `"stale"`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("apply unknown theme", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/themes/ghost/apply", "").Code)
	})

	t.Run("missing stylesheet", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/stylesheets/nope", "").Code)
	})
}

func TestPresetRoutes(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/themes/ui/apply", "").Code)

	t.Run("apply writes the asset fragment", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/assets/main-canvas/presets", `{"presetId": "card", "op": "apply"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Presets   []string          `json:"presets"`
			Variables map[string]string `json:"variables"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"card"}, resp.Presets)
		assert.Equal(t, "var(--spacing-lg)", resp.Variables["--padding"])

		rec = env.do(t, http.MethodGet, "/api/stylesheets/preset-vars-main-canvas", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `[data-id="main-canvas"] {`)
	})

	t.Run("toggle removes it again", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/assets/main-canvas/presets", `{"presetId": "card", "op": "toggle"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, env.registry.Has(models.PresetStyleID("main-canvas")))
	})

	t.Run("clear", func(t *testing.T) {
		env.do(t, http.MethodPost, "/api/assets/a1/presets", `{"presetId": "elevated"}`)
		require.True(t, env.registry.Has(models.PresetStyleID("a1")))

		rec := env.do(t, http.MethodDelete, "/api/assets/a1/presets", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, env.registry.Has(models.PresetStyleID("a1")))

		rec = env.do(t, http.MethodGet, "/api/assets/a1/variables", "")
		assert.JSONEq(t, `{"assetId": "a1", "presets": [], "variables": {}}`, rec.Body.String())
	})

	t.Run("bad requests", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/assets/a1/presets", `{}`).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/assets/a1/presets", `{"presetId": "card", "op": "explode"}`).Code)
	})

	t.Run("assets and selection", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/assets", `{"id": "img-1", "type": "image", "name": "Cover"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/assets", "")
		assets := decode[[]store.Asset](t, rec)
		require.Len(t, assets, 1)
		assert.Equal(t, "img-1", assets[0].ID)

		rec = env.do(t, http.MethodPost, "/api/assets/img-1/select", "")
		assert.Equal(t, "img-1", decode[models.StateResponse](t, rec).ActiveAsset)
	})

	t.Run("global presets", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/global-presets/image", `{"presetId": "card"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"card"}, decode[models.StateResponse](t, rec).GlobalPresets["image"])
	})
}

func TestRenderRoutes(t *testing.T) {
	env := newTestEnv(t)

	t.Run("json follows the store view", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/view", `{"view": "focus"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "focus", env.app.CurrentView())

		rec = env.do(t, http.MethodGet, "/api/render", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var result struct {
			Theme   string   `json:"theme"`
			Classes []string `json:"classes"`
			Nodes   []struct {
				Key   string         `json:"key"`
				Props map[string]any `json:"props"`
			} `json:"nodes"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "ui", result.Theme)
		assert.Equal(t, []string{"one-connect", "focus"}, result.Classes)
		require.Len(t, result.Nodes, 2)
		assert.Equal(t, "oneStore.setView", result.Nodes[0].Props["onViewChange"])
	})

	t.Run("view query overrides the store", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/render?view=dashboard", "")
		assert.Contains(t, rec.Body.String(), `"classes":["one-connect","dashboard"]`)
	})

	t.Run("html page", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/render?theme=ui", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `<link rel="stylesheet" href="/styles.css">`)
	})

	t.Run("unknown theme", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/render?theme=ghost", "").Code)
	})

	t.Run("empty view", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/view", `{}`).Code)
	})
}

func TestAdminThemeRoutes(t *testing.T) {
	env := newTestEnv(t)
	key := []string{"X-API-Key", testAdminKey}

	t.Run("requires the admin key", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/admin/themes/custom", `{"document": "{}"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stores valid documents", func(t *testing.T) {
		body := `{"document": "{\"structure\": {\"root\": {\"color\": \"red\"}}}"}`
		rec := env.do(t, http.MethodPut, "/api/admin/themes/custom", body, key...)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, models.FormatJSON, decode[models.StoredTheme](t, rec).Format)

		rec = env.do(t, http.MethodGet, "/api/themes/custom/css", "")
		assert.Contains(t, rec.Body.String(), "color: red;")
	})

	t.Run("updates reload themes in use", func(t *testing.T) {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/themes/custom/apply", "").Code)

		body := `{"format": "yaml", "document": "structure:\n  root:\n    color: blue\n"}`
		rec := env.do(t, http.MethodPut, "/api/admin/themes/custom", body, key...)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		sheet, ok := env.registry.Get(models.ThemeStyleID("custom"))
		require.True(t, ok)
		assert.Contains(t, sheet.CSS, "color: blue;")
	})

	t.Run("rejects invalid documents with issues", func(t *testing.T) {
		body := `{"document": "{\"structure\": {\"x\": {\"data-source\": \"nodot\"}}}"}`
		rec := env.do(t, http.MethodPut, "/api/admin/themes/broken", body, key...)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		resp := decode[models.ErrorResponse](t, rec)
		paths := make([]string, len(resp.Issues))
		for i, issue := range resp.Issues {
			paths[i] = issue.Path
		}
		assert.Contains(t, paths, "structure.x.data-source")
	})

	t.Run("system themes are protected", func(t *testing.T) {
		body := `{"document": "{\"structure\": {}}"}`
		rec := env.do(t, http.MethodPut, "/api/admin/themes/ui", body, key...)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodDelete, "/api/admin/themes/ui", "", key...)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("delete unloads the theme", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/admin/themes/custom", "", key...)
		require.Equal(t, http.StatusNoContent, rec.Code)

		assert.False(t, env.registry.Has(models.ThemeStyleID("custom")))
		_, cached := env.processor.GetTheme("custom")
		assert.False(t, cached)
		assert.False(t, env.processor.IsApplied("custom"))

		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/admin/themes/custom", "", key...).Code)
	})
}

func TestWebSocketRoute(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Inject("boot", ".boot{}")

	server := httptest.NewServer(env.handler)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() services.WSMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg services.WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	snapshot := read()
	assert.Equal(t, services.WSTypeSnapshot, snapshot.Type)
	sheets, ok := snapshot.Payload.([]any)
	require.True(t, ok)
	require.Len(t, sheets, 1)
	assert.Equal(t, "boot", sheets[0].(map[string]any)["id"])

	require.NoError(t, conn.WriteJSON(services.WSMessage{Type: services.WSTypePing}))
	assert.Equal(t, services.WSTypePong, read().Type)

	rec := env.do(t, http.MethodPost, "/api/themes/ui/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)

	update := read()
	assert.Equal(t, services.WSTypeStylesheetUpdated, update.Type)
	assert.Equal(t, "ui-theme-styles", update.Payload.(map[string]any)["id"])
}
