package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommw "github.com/themeflow/server/internal/middleware"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/services"
)

// RouterConfig collects the handlers and settings of the HTTP surface
type RouterConfig struct {
	Health     *HealthHandler
	Themes     *ThemeHandler
	Styles     *StylesheetHandler
	Render     *RenderHandler
	State      *StateHandler
	WebSocket  *WebSocketHandler
	Processor  *services.ThemeProcessor
	Logger     *observability.Logger
	HTTPMetric *observability.HTTPMetrics

	DefaultTheme string
	ServiceName  string
	APIKey       string
	AdminKey     string
	KeyHeader    string
}

// NewRouter wires every route
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.KeyHeader == "" {
		cfg.KeyHeader = custommw.DefaultKeyHeader
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Logger != nil {
		r.Use(observability.RequestLogger(cfg.Logger))
	}
	if cfg.ServiceName != "" {
		r.Use(observability.TracingMiddleware(cfg.ServiceName))
	}
	if cfg.HTTPMetric != nil {
		r.Use(observability.MetricsMiddleware(cfg.HTTPMetric))
	}
	r.Use(custommw.APIKeyAuth(cfg.APIKey, cfg.KeyHeader, []string{"/api/health", "/api/version"}))

	// Routes
	r.Get("/health", cfg.Health.HealthCheck)
	r.Get("/api/health", cfg.Health.HealthCheck)
	r.Get("/api/version", VersionHandler)

	r.Get("/styles.css", cfg.Styles.CombinedCSS)
	r.Get("/ws", cfg.WebSocket.HandleConnection)

	themed := custommw.ThemeRequired(cfg.Processor, cfg.DefaultTheme)
	r.With(themed).Get("/render", cfg.Render.RenderHTML)

	r.Route("/api", func(r chi.Router) {
		r.Route("/themes", func(r chi.Router) {
			r.Get("/", cfg.Themes.ListThemes)
			r.Get("/{name}", cfg.Themes.GetTheme)
			r.Get("/{name}/css", cfg.Themes.GetThemeCSS)
			r.Post("/{name}/apply", cfg.Themes.ApplyTheme)
		})

		r.Get("/stylesheets", cfg.Styles.ListStylesheets)
		r.Get("/stylesheets/{id}", cfg.Styles.GetStylesheet)

		r.With(themed).Get("/render", cfg.Render.RenderJSON)

		r.Get("/state", cfg.State.GetState)
		r.Put("/view", cfg.State.SetView)
		r.Put("/global-presets/{type}", cfg.State.SetGlobalPreset)

		r.Route("/assets", func(r chi.Router) {
			r.Get("/", cfg.State.ListAssets)
			r.Post("/", cfg.State.AddAsset)
			r.Post("/{id}/select", cfg.State.SelectAsset)
			r.Post("/{id}/presets", cfg.State.ChangePreset)
			r.Delete("/{id}/presets", cfg.State.ClearPresets)
			r.Get("/{id}/variables", cfg.State.GetVariables)
		})

		// Admin routes (admin key required)
		r.Route("/admin", func(r chi.Router) {
			r.Use(custommw.AdminAuth(cfg.AdminKey, cfg.KeyHeader))
			r.Put("/themes/{name}", cfg.Themes.PutTheme)
			r.Delete("/themes/{name}", cfg.Themes.DeleteTheme)
		})
	})

	return r
}
