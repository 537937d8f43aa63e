package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/themeflow/server/internal/config"
	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/repository"
	"github.com/themeflow/server/internal/services"
	"github.com/themeflow/server/internal/store"
)

var logOutput io.Writer = os.Stderr

// engine bundles the long-lived theme services created at startup
type engine struct {
	db        *sql.DB
	repo      repository.ThemeDocumentRepository
	loader    services.ThemeLoader
	registry  *services.StylesheetRegistry
	processor *services.ThemeProcessor
	app       *store.AppStore
	connector *services.StoreConnector
	resolver  *services.LayoutResolver
	presets   *services.PresetManager
	metrics   *observability.EngineMetrics
}

func openDatabase(cfg *config.Config, logger *observability.Logger) (*sql.DB, string, error) {
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL database")
		db, err := repository.NewPostgresDB(cfg.Database.URL)
		if err != nil {
			return nil, "", fmt.Errorf("initialize PostgreSQL database: %w", err)
		}
		return db, "postgresql", nil
	}

	logger.WithField("path", cfg.Database.Path).Info("Using SQLite database")
	db, err := repository.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		return nil, "", fmt.Errorf("initialize SQLite database: %w", err)
	}
	return db, "sqlite", nil
}

// newLoader builds the configured source. The repository always backs it so
// the builtin themes stay reachable.
func newLoader(ctx context.Context, cfg *config.Config, repo repository.ThemeDocumentRepository) services.ThemeLoader {
	dbLoader := services.NewRepositoryLoader(repo)

	switch cfg.Themes.Kind {
	case config.SourceHTTP:
		auth := services.HTTPAuth{
			Token:        cfg.Themes.Token,
			TokenURL:     cfg.Themes.TokenURL,
			ClientID:     cfg.Themes.ClientID,
			ClientSecret: cfg.Themes.ClientSecret,
		}
		return services.NewChainLoader(services.NewHTTPLoader(ctx, cfg.Themes.BaseURL, auth, cfg.Themes.Timeout), dbLoader)
	case config.SourceFile:
		return services.NewChainLoader(services.NewFileLoader(cfg.Themes.Dir), dbLoader)
	default:
		return dbLoader
	}
}

// newEngine wires storage, loading, compilation, state and presets.
// metrics may be nil.
func newEngine(ctx context.Context, cfg *config.Config, metrics *observability.EngineMetrics, logger *observability.Logger) (*engine, error) {
	db, system, err := openDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	traced, err := observability.NewTraceDB(db, system)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create traced database: %w", err)
	}

	repo := repository.NewThemeDocumentRepository(traced)
	if err := repository.SeedSystemThemes(ctx, repo); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed system themes: %w", err)
	}

	e := &engine{db: db, repo: repo, metrics: metrics}
	e.loader = newLoader(ctx, cfg, repo)
	e.registry = services.NewStylesheetRegistry(metrics)
	e.processor = services.NewThemeProcessor(e.loader, e.registry, metrics, logger)

	e.app = store.NewAppStore()
	e.connector = services.NewStoreConnector(map[string]store.Store{"oneStore": e.app})

	resolverOpts := services.ResolverOptions{
		ViewStore:   cfg.Resolver.ViewStore,
		ViewPath:    cfg.Resolver.ViewPath,
		DefaultView: cfg.Resolver.DefaultView,
		PresetStore: cfg.Presets.Store,
		PresetPath:  cfg.Presets.Path,
	}
	e.resolver = services.NewLayoutResolver(e.connector, services.NewComponentRegistry(), resolverOpts, metrics, logger)

	e.presets = services.NewPresetManager(e.processor, e.connector, e.registry, services.PresetManagerOptions{
		ThemeName:          cfg.Presets.Theme,
		StoreName:          cfg.Presets.Store,
		PresetsPath:        cfg.Presets.Path,
		RequireAssetRecord: cfg.Presets.RequireAssetRecord,
	}, metrics, logger)

	presetTheme := cfg.Presets.Theme
	e.processor.OnApply(func(ctx context.Context, name string, doc *models.ThemeDocument) {
		if name != presetTheme {
			return
		}
		e.app.SetAvailablePresets(doc.PresetIDs())
		e.presets.RecomputeAll(ctx)
	})

	return e, nil
}

func (e *engine) Close() error {
	e.presets.Stop()
	return e.db.Close()
}
