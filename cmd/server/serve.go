package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/themeflow/server/internal/config"
	"github.com/themeflow/server/internal/handlers"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/services"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	telemetry, err := observability.Initialize(ctx, observability.Config{
		ServiceName:    "themeflow",
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		ThemeSource:    cfg.Themes.Kind,
		DefaultTheme:   cfg.Themes.DefaultTheme,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ExportInterval: cfg.Telemetry.ExportInterval,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	engineMetrics, err := observability.NewEngineMetrics()
	if err != nil {
		return err
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		return err
	}

	e, err := newEngine(ctx, cfg, engineMetrics, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	e.presets.Start(ctx)

	hub := services.NewWebSocketHub(engineMetrics, logger)
	go hub.Run(ctx)
	defer hub.WatchStylesheets(e.registry)()

	if cfg.Themes.Kind == config.SourceFile && cfg.Themes.Watch {
		watcher := services.NewThemeWatcher(e.processor, cfg.Themes.Dir, cfg.Themes.Debounce, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.WithError(err).Error("Theme watcher stopped")
			}
		}()
	}

	if !e.processor.ApplyTheme(ctx, cfg.Themes.DefaultTheme) {
		logger.WithField("theme", cfg.Themes.DefaultTheme).Warn("Default theme not applied; serving without it")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Health:       handlers.NewHealthHandler(),
		Themes:       handlers.NewThemeHandler(e.processor, e.repo, logger),
		Styles:       handlers.NewStylesheetHandler(e.registry),
		Render:       handlers.NewRenderHandler(e.resolver, services.NewHTMLRenderer(), cfg.Server.StylesheetHref, logger),
		State:        handlers.NewStateHandler(e.connector, cfg.Presets.Store, e.presets),
		WebSocket:    handlers.NewWebSocketHandler(hub, e.registry, logger),
		Processor:    e.processor,
		Logger:       logger,
		HTTPMetric:   httpMetrics,
		DefaultTheme: cfg.Themes.DefaultTheme,
		ServiceName:  "themeflow",
		APIKey:       cfg.Security.APIKey,
		AdminKey:     cfg.Security.AdminKey,
		KeyHeader:    cfg.Security.APIKeyHeader,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"address": cfg.Server.Address,
			"source":  e.loader.Kind(),
			"theme":   cfg.Themes.DefaultTheme,
		}).Info("Themeflow server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
