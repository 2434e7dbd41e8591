// Package config loads service and CLI configuration from an optional YAML
// file and APP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Spanner SpannerConfig `mapstructure:"spanner"`
	API     APIConfig     `mapstructure:"api"`
	Listing ListingConfig `mapstructure:"listing"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SpannerConfig identifies the Spanner database holding price entries.
type SpannerConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	InstanceID string `mapstructure:"instance_id"`
	DatabaseID string `mapstructure:"database_id"`
}

// Database returns the fully qualified database name.
func (s SpannerConfig) Database() string {
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s", s.ProjectID, s.InstanceID, s.DatabaseID)
}

// APIConfig points the browse CLI at a storefront API.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ListingConfig tunes list pagination.
type ListingConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MaxPageSize bounds listing.page_size.
const MaxPageSize = 100

// Load reads configuration from configPath (optional) and the environment,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Matches the local emulator setup created by cmd/migrate.
	v.SetDefault("spanner.project_id", "test-project")
	v.SetDefault("spanner.instance_id", "dev-instance")
	v.SetDefault("spanner.database_id", "storefront-db")

	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout", "10s")

	v.SetDefault("listing.page_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

var envBindings = map[string]string{
	"server.host":             "APP_SERVER_HOST",
	"server.port":             "APP_SERVER_PORT",
	"server.read_timeout":     "APP_SERVER_READ_TIMEOUT",
	"server.write_timeout":    "APP_SERVER_WRITE_TIMEOUT",
	"server.shutdown_timeout": "APP_SERVER_SHUTDOWN_TIMEOUT",
	"spanner.project_id":      "APP_SPANNER_PROJECT_ID",
	"spanner.instance_id":     "APP_SPANNER_INSTANCE_ID",
	"spanner.database_id":     "APP_SPANNER_DATABASE_ID",
	"api.base_url":            "APP_API_BASE_URL",
	"api.timeout":             "APP_API_TIMEOUT",
	"listing.page_size":       "APP_LISTING_PAGE_SIZE",
	"log.level":               "APP_LOG_LEVEL",
	"log.development":         "APP_LOG_DEVELOPMENT",
}

func bindEnvVars(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, errors.New("server.port must be between 1 and 65535"))
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if cfg.Spanner.ProjectID == "" || cfg.Spanner.InstanceID == "" || cfg.Spanner.DatabaseID == "" {
		errs = append(errs, errors.New("spanner.project_id, spanner.instance_id and spanner.database_id are required"))
	}

	if u, err := url.Parse(cfg.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", cfg.API.BaseURL))
	}
	if cfg.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}

	if cfg.Listing.PageSize < 1 || cfg.Listing.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("listing.page_size must be between 1 and %d", MaxPageSize))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}
