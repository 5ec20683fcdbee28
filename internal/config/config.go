package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/formfill-cli/internal/cost"
	"github.com/sells-group/formfill-cli/internal/extract"
	"github.com/sells-group/formfill-cli/internal/form"
	"github.com/sells-group/formfill-cli/internal/prompt"
	"github.com/sells-group/formfill-cli/internal/resilience"
	"github.com/sells-group/formfill-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Prompt    PromptConfig    `yaml:"prompt" mapstructure:"prompt"`
	Cache     store.Config    `yaml:"cache" mapstructure:"cache"`
	Extract   extract.Config  `yaml:"extract" mapstructure:"extract"`
	Locale    LocaleConfig    `yaml:"locale" mapstructure:"locale"`
	Pricing   cost.Rates      `yaml:"pricing" mapstructure:"pricing"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// PromptConfig configures the prompt engine.
type PromptConfig struct {
	PrimaryModel      string  `yaml:"primary_model" mapstructure:"primary_model"`
	BackupModel       string  `yaml:"backup_model" mapstructure:"backup_model"`
	InitialBackoff    int     `yaml:"initial_backoff_secs" mapstructure:"initial_backoff_secs"`
	BackoffCeiling    int     `yaml:"backoff_ceiling_secs" mapstructure:"backoff_ceiling_secs"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	FallbackAfter     int     `yaml:"fallback_after" mapstructure:"fallback_after"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// Engine converts the settings to a prompt.Config.
func (p PromptConfig) Engine() prompt.Config {
	return prompt.Config{
		PrimaryModel:      p.PrimaryModel,
		BackupModel:       p.BackupModel,
		Policy:            resilience.FromBackoffConfig(p.InitialBackoff, p.BackoffCeiling, p.BackoffMultiplier, p.FallbackAfter),
		RequestsPerMinute: p.RequestsPerMinute,
	}
}

// LocaleConfig configures date and phone number handling.
type LocaleConfig struct {
	Timezone      string `yaml:"timezone" mapstructure:"timezone"`
	ReferenceHour int    `yaml:"reference_hour" mapstructure:"reference_hour"`
	PhoneRegion   string `yaml:"phone_region" mapstructure:"phone_region"`
}

// Settings converts the locale to form.Settings.
func (l LocaleConfig) Settings() (form.Settings, error) {
	s := form.Settings{ReferenceHour: l.ReferenceHour, PhoneRegion: l.PhoneRegion}
	if l.Timezone != "" {
		loc, err := time.LoadLocation(l.Timezone)
		if err != nil {
			return s, eris.Wrapf(err, "config: load timezone %q", l.Timezone)
		}
		s.Location = loc
	}
	return s, nil
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("FORMFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("prompt.primary_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("prompt.backup_model", "claude-haiku-4-5-20251001")
	v.SetDefault("prompt.initial_backoff_secs", 10)
	v.SetDefault("prompt.backoff_ceiling_secs", 300)
	v.SetDefault("prompt.backoff_multiplier", 2.0)
	v.SetDefault("prompt.fallback_after", 3)
	v.SetDefault("prompt.requests_per_minute", 0)
	v.SetDefault("cache.driver", store.DriverSQLite)
	v.SetDefault("cache.path", "formfill-cache.db")
	v.SetDefault("cache.dsn", "")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("cache.pool.max_conns", 5)
	v.SetDefault("cache.pool.min_conns", 1)
	v.SetDefault("cache.breaker.failure_threshold", 5)
	v.SetDefault("cache.breaker.reset_timeout_secs", 30)
	v.SetDefault("extract.max_transcript_tokens", extract.DefaultMaxTranscriptTokens)
	v.SetDefault("extract.max_options", extract.DefaultMaxOptions)
	v.SetDefault("extract.large_context_models", extract.DefaultConfig().LargeContextModels)
	v.SetDefault("locale.timezone", "America/Los_Angeles")
	v.SetDefault("locale.reference_hour", 13)
	v.SetDefault("locale.phone_region", "US")
	v.SetDefault("batch.max_concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
	if len(cfg.Pricing.Anthropic) == 0 {
		cfg.Pricing = cost.DefaultRates()
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes: "extract"
// (anything that calls the model), "serve", "cache".
func (c *Config) Validate(mode string) error {
	var errs []error
	required := func(ok bool, key string) {
		if !ok {
			errs = append(errs, eris.Errorf("%s is required", key))
		}
	}

	switch mode {
	case "extract":
		required(c.Anthropic.Key != "", "anthropic.key")
		required(c.Prompt.PrimaryModel != "", "prompt.primary_model")
	case "serve":
		required(c.Anthropic.Key != "", "anthropic.key")
		required(c.Prompt.PrimaryModel != "", "prompt.primary_model")
		if c.Server.Port <= 0 {
			errs = append(errs, eris.New("server.port must be > 0"))
		}
	case "cache":
		switch c.Cache.Driver {
		case store.DriverSQLite:
			required(c.Cache.Path != "", "cache.path")
		case store.DriverPostgres:
			required(c.Cache.DSN != "", "cache.dsn")
		case store.DriverRedis:
			required(c.Cache.RedisURL != "", "cache.redis_url")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Cache.Driver {
	case "", store.DriverNone, store.DriverMemory, store.DriverSQLite, store.DriverPostgres, store.DriverRedis:
	default:
		errs = append(errs, eris.Errorf("cache.driver %q is not supported", c.Cache.Driver))
	}
	if c.Batch.MaxConcurrency < 1 || c.Batch.MaxConcurrency > 32 {
		errs = append(errs, eris.New("batch.max_concurrency must be between 1 and 32"))
	}
	if m := c.Prompt.BackoffMultiplier; m != 0 && m <= 1 {
		errs = append(errs, eris.New("prompt.backoff_multiplier must be > 1"))
	}
	if c.Extract.MaxOptions < 0 || c.Extract.MaxTranscriptTokens < 0 {
		errs = append(errs, eris.New("extract limits must be >= 0"))
	}

	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "config: invalid")
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
