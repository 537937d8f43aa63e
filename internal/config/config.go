package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Theme source kinds
const (
	SourceHTTP = "http"
	SourceFile = "file"
	SourceDB   = "db"
)

// Config holds all application configuration
type Config struct {
	Server    Server      `mapstructure:"server"`
	Database  Database    `mapstructure:"database"`
	Themes    ThemeSource `mapstructure:"themes"`
	Resolver  Resolver    `mapstructure:"resolver"`
	Presets   Presets     `mapstructure:"presets"`
	Security  Security    `mapstructure:"security"`
	Telemetry Telemetry   `mapstructure:"telemetry"`
	Log       Log         `mapstructure:"log"`
}

// Server configuration
type Server struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StylesheetHref  string        `mapstructure:"stylesheet_href"`
}

// Database configuration. A URL selects PostgreSQL, otherwise SQLite at Path.
type Database struct {
	Path string `mapstructure:"path"`
	URL  string `mapstructure:"url"`
}

// ThemeSource configures where theme documents are fetched from
type ThemeSource struct {
	Kind         string        `mapstructure:"kind"`
	BaseURL      string        `mapstructure:"base_url"`
	Dir          string        `mapstructure:"dir"`
	Token        string        `mapstructure:"token"`
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultTheme string        `mapstructure:"default_theme"`
	Watch        bool          `mapstructure:"watch"`
	Debounce     time.Duration `mapstructure:"debounce"`
}

// Resolver locates the view key in the stores
type Resolver struct {
	ViewStore   string `mapstructure:"view_store"`
	ViewPath    string `mapstructure:"view_path"`
	DefaultView string `mapstructure:"default_view"`
}

// Presets locates the per-asset preset assignment and the theme holding the presets
type Presets struct {
	Store              string `mapstructure:"store"`
	Path               string `mapstructure:"path"`
	Theme              string `mapstructure:"theme"`
	RequireAssetRecord bool   `mapstructure:"require_asset_record"`
}

// Security configuration
type Security struct {
	APIKey       string `mapstructure:"api_key"`
	AdminKey     string `mapstructure:"admin_key"`
	APIKeyHeader string `mapstructure:"api_key_header"`
}

// Telemetry configuration
type Telemetry struct {
	Enabled        bool          `mapstructure:"enabled"`
	Endpoint       string        `mapstructure:"endpoint"`
	Environment    string        `mapstructure:"environment"`
	SampleRatio    float64       `mapstructure:"sample_ratio"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
}

// Log configuration
type Log struct {
	Level string `mapstructure:"level"`
	Human bool   `mapstructure:"human"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.Database.URL != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.stylesheet_href", "/styles.css")

	v.SetDefault("database.path", "themeflow.db")
	v.SetDefault("database.url", "")

	v.SetDefault("themes.kind", SourceDB)
	v.SetDefault("themes.base_url", "")
	v.SetDefault("themes.dir", "./themes")
	v.SetDefault("themes.token", "")
	v.SetDefault("themes.token_url", "")
	v.SetDefault("themes.client_id", "")
	v.SetDefault("themes.client_secret", "")
	v.SetDefault("themes.timeout", 10*time.Second)
	v.SetDefault("themes.default_theme", "ui")
	v.SetDefault("themes.watch", false)
	v.SetDefault("themes.debounce", 200*time.Millisecond)

	v.SetDefault("resolver.view_store", "oneStore")
	v.SetDefault("resolver.view_path", "currentView")
	v.SetDefault("resolver.default_view", "dashboard")

	v.SetDefault("presets.store", "oneStore")
	v.SetDefault("presets.path", "activePresets")
	v.SetDefault("presets.theme", "ui")
	v.SetDefault("presets.require_asset_record", false)

	v.SetDefault("security.api_key", "")
	v.SetDefault("security.admin_key", "")
	v.SetDefault("security.api_key_header", "X-API-Key")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.export_interval", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.human", false)
}

// Load reads configuration from an optional file and the environment.
// configFile falls back to THEMEFLOW_CONFIG; env overrides use the prefix
// THEMEFLOW_ with dots replaced by underscores (THEMEFLOW_THEMES_KIND).
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile == "" {
		configFile = os.Getenv("THEMEFLOW_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix("THEMEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the theme source settings
func (c *Config) Validate() error {
	switch c.Themes.Kind {
	case SourceHTTP:
		if c.Themes.BaseURL == "" {
			return errors.New("themes.base_url is required for the http source")
		}
	case SourceFile:
		if c.Themes.Dir == "" {
			return errors.New("themes.dir is required for the file source")
		}
	case SourceDB:
	default:
		return fmt.Errorf("unknown theme source %q (want http, file or db)", c.Themes.Kind)
	}
	if c.Themes.DefaultTheme == "" {
		return errors.New("themes.default_theme must not be empty")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1], got %v", c.Telemetry.SampleRatio)
	}
	return nil
}
