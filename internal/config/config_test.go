package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/store"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrency)
	assert.Equal(t, store.DriverSQLite, cfg.Cache.Driver)
	assert.Equal(t, "formfill-cache.db", cfg.Cache.Path)
	assert.Equal(t, int32(5), cfg.Cache.Pool.MaxConns)
	assert.Equal(t, 5, cfg.Cache.Breaker.FailureThreshold)
	assert.Equal(t, 2500, cfg.Extract.MaxTranscriptTokens)
	assert.Equal(t, 10, cfg.Extract.MaxOptions)
	assert.Contains(t, cfg.Extract.LargeContextModels, "claude-sonnet")
	assert.Equal(t, "America/Los_Angeles", cfg.Locale.Timezone)
	assert.Equal(t, 13, cfg.Locale.ReferenceHour)
	assert.Equal(t, "US", cfg.Locale.PhoneRegion)
	assert.Equal(t, int64(2048), cfg.Anthropic.MaxTokens)
	assert.NotEmpty(t, cfg.Pricing.Anthropic)

	eng := cfg.Prompt.Engine()
	assert.Equal(t, "claude-sonnet-4-5-20250929", eng.PrimaryModel)
	assert.Equal(t, "claude-haiku-4-5-20251001", eng.BackupModel)
	assert.Equal(t, 10*time.Second, eng.Policy.Initial)
	assert.Equal(t, 300*time.Second, eng.Policy.Ceiling)
	assert.Equal(t, 3, eng.Policy.FallbackAfter)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: redis
  redis_url: redis://localhost:6379/0
  ttl: 24h
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  max_concurrency: 8
pricing:
  anthropic:
    claude-test:
      input: 1.5
      output: 2.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, store.DriverRedis, cfg.Cache.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrency)
	assert.InDelta(t, 1.5, cfg.Pricing.Anthropic["claude-test"].Input, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Extract.MaxOptions)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FORMFILL_CACHE_DRIVER", "memory")
	t.Setenv("FORMFILL_LOG_LEVEL", "warn")
	t.Setenv("FORMFILL_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, store.DriverMemory, cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FORMFILL_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLocaleSettings(t *testing.T) {
	s, err := LocaleConfig{Timezone: "Europe/Berlin", ReferenceHour: 9, PhoneRegion: "DE"}.Settings()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", s.Location.String())
	assert.Equal(t, 9, s.ReferenceHour)
	assert.Equal(t, "DE", s.PhoneRegion)

	s, err = LocaleConfig{}.Settings()
	require.NoError(t, err)
	assert.Nil(t, s.Location, "empty timezone is left to form.Configure defaults")

	_, err = LocaleConfig{Timezone: "Mars/Olympus"}.Settings()
	assert.Error(t, err)
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
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Prompt.PrimaryModel = "claude-sonnet-4-5"
	cfg.Cache.Driver = store.DriverSQLite
	cfg.Cache.Path = "cache.db"
	cfg.Batch.MaxConcurrency = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateExtract_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("extract"))
}

func TestValidateExtract_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = ""
	cfg.Prompt.PrimaryModel = ""

	err := cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "prompt.primary_model is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateCache(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		wantErr string
	}{
		{name: "sqlite needs path", driver: store.DriverSQLite, wantErr: "cache.path is required"},
		{name: "postgres needs dsn", driver: store.DriverPostgres, wantErr: "cache.dsn is required"},
		{name: "redis needs url", driver: store.DriverRedis, wantErr: "cache.redis_url is required"},
		{name: "memory", driver: store.DriverMemory},
		{name: "unknown driver", driver: "mongo", wantErr: `cache.driver "mongo" is not supported`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Cache = store.Config{Driver: tt.driver}
			err := cfg.Validate("cache")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrency = 0
	err := cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrency must be between 1 and 32")

	cfg.Batch.MaxConcurrency = 33
	assert.Error(t, cfg.Validate("extract"))

	cfg.Batch.MaxConcurrency = 32
	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateBackoffMultiplier(t *testing.T) {
	cfg := validDefaults()

	cfg.Prompt.BackoffMultiplier = 1
	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt.backoff_multiplier must be > 1")

	cfg.Prompt.BackoffMultiplier = 1.5
	assert.NoError(t, cfg.Validate("serve"))
}
