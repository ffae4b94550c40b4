// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Wiki     WikiConfig     `yaml:"wiki" mapstructure:"wiki"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the Nominatim client.
type GeocodeConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec      float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	AttemptDiscount float64 `yaml:"attempt_discount" mapstructure:"attempt_discount"`
	CacheTTLHours   int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// RegistryConfig configures the heritage inventory WFS client.
type RegistryConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	TypeName string `yaml:"type_name" mapstructure:"type_name"`
}

// WikiConfig configures the encyclopedia client.
type WikiConfig struct {
	APIURL        string `yaml:"api_url" mapstructure:"api_url"`
	PageURL       string `yaml:"page_url" mapstructure:"page_url"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// OverpassConfig configures the OSM import client.
type OverpassConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EnrichConfig configures the enrichment orchestrator.
type EnrichConfig struct {
	Workers       int     `yaml:"workers" mapstructure:"workers"`
	BatchLimit    int     `yaml:"batch_limit" mapstructure:"batch_limit"`
	MaxDistanceKm float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`
	KeywordsFile  string  `yaml:"keywords_file" mapstructure:"keywords_file"`

	Bounds BoundsConfig `yaml:"bounds" mapstructure:"bounds"`
}

// BoundsConfig is the eligibility window for batch enrichment.
type BoundsConfig struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLon float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLon float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROTEIRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "roteiro.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "enrich-cli/1.0")
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("geocode.attempt_discount", 0.08)
	v.SetDefault("geocode.cache_ttl_hours", 12)
	v.SetDefault("registry.base_url", "https://geo.patrimoniocultural.gov.pt/geoserver/wfs")
	v.SetDefault("registry.type_name", "sipa:monumentos")
	v.SetDefault("wiki.api_url", "https://pt.wikipedia.org/w/api.php")
	v.SetDefault("wiki.page_url", "https://pt.wikipedia.org/wiki/")
	v.SetDefault("wiki.cache_ttl_hours", 12)
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("enrich.workers", 6)
	v.SetDefault("enrich.batch_limit", 500)
	v.SetDefault("enrich.max_distance_km", 60.0)
	v.SetDefault("enrich.bounds.min_lat", 36.8)
	v.SetDefault("enrich.bounds.max_lat", 42.3)
	v.SetDefault("enrich.bounds.min_lon", -9.8)
	v.SetDefault("enrich.bounds.max_lon", -6.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given mode. Shared bounds are
// always checked; mode-specific requirements come on top.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Enrich.Workers < 1 || c.Enrich.Workers > 50 {
		problems = append(problems, "enrich.workers must be between 1 and 50")
	}
	if c.Enrich.MaxDistanceKm <= 0 {
		problems = append(problems, "enrich.max_distance_km must be > 0")
	}
	if c.Geocode.AttemptDiscount < 0 || c.Geocode.AttemptDiscount >= 1 {
		problems = append(problems, "geocode.attempt_discount must be in [0, 1)")
	}
	if c.Enrich.Bounds.MinLat >= c.Enrich.Bounds.MaxLat ||
		c.Enrich.Bounds.MinLon >= c.Enrich.Bounds.MaxLon {
		problems = append(problems, "enrich.bounds window is inverted")
	}

	switch mode {
	case "enrich", "import", "regions", "geocode":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "serve":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
