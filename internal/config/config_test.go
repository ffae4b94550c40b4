package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "roteiro.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.InDelta(t, 1.0, cfg.Geocode.RatePerSec, 0.001)
	assert.InDelta(t, 0.08, cfg.Geocode.AttemptDiscount, 0.001)
	assert.Equal(t, 12, cfg.Geocode.CacheTTLHours)
	assert.Equal(t, 12, cfg.Wiki.CacheTTLHours)
	assert.Equal(t, "sipa:monumentos", cfg.Registry.TypeName)
	assert.Equal(t, "https://pt.wikipedia.org/w/api.php", cfg.Wiki.APIURL)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.BaseURL)
	assert.Equal(t, 6, cfg.Enrich.Workers)
	assert.Equal(t, 500, cfg.Enrich.BatchLimit)
	assert.InDelta(t, 60.0, cfg.Enrich.MaxDistanceKm, 0.001)
	assert.InDelta(t, 36.8, cfg.Enrich.Bounds.MinLat, 0.001)
	assert.InDelta(t, -6.0, cfg.Enrich.Bounds.MaxLon, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/roteiro
log:
  level: debug
  format: console
server:
  port: 9090
enrich:
  workers: 12
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Enrich.Workers)
	// Defaults still apply for unset values
	assert.InDelta(t, 60.0, cfg.Enrich.MaxDistanceKm, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ROTEIRO_STORE_DRIVER", "postgres")
	t.Setenv("ROTEIRO_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("ROTEIRO_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults(t *testing.T) *Config {
	t.Helper()
	chTempDir(t)
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidateEnrich(t *testing.T) {
	cfg := validDefaults(t)
	assert.NoError(t, cfg.Validate("enrich"))

	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServeInvalidPort(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateWorkerBounds(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Enrich.Workers = 0
	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.workers must be between 1 and 50")

	cfg.Enrich.Workers = 51
	err = cfg.Validate("enrich")
	assert.Error(t, err)

	cfg.Enrich.Workers = 50
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateDiscountAndBounds(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Geocode.AttemptDiscount = 1.0
	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "attempt_discount")

	cfg.Geocode.AttemptDiscount = 0.08
	cfg.Enrich.Bounds.MinLat = 50
	err = cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bounds window is inverted")
}
