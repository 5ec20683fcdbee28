// Package store implements the prompt cache on the supported backends:
// in-process memory, SQLite, Postgres and Redis.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/prompt"
	"github.com/sells-group/formfill-cli/internal/resilience"
)

// Supported cache drivers.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Cache is a prompt cache with a lifecycle.
type Cache interface {
	prompt.Cache
	Close() error
}

// Pruner deletes cache entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Lister pages through cached records, oldest first.
type Lister interface {
	List(ctx context.Context, after time.Time, limit int) ([]prompt.Record, error)
}

// BulkWriter writes many records at once with upsert semantics.
type BulkWriter interface {
	PutMany(ctx context.Context, recs []prompt.Record) (int64, error)
}

// Config selects and configures the cache backend.
type Config struct {
	Driver   string        `yaml:"driver" mapstructure:"driver"`
	Path     string        `yaml:"path" mapstructure:"path"`           // sqlite file
	DSN      string        `yaml:"dsn" mapstructure:"dsn"`             // postgres connection string
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"` // redis://host:port/db
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`             // memory and redis expiry; 0 keeps entries forever
	Pool     PoolConfig    `yaml:"pool" mapstructure:"pool"`
	Breaker  BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of remote stores.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Open builds the configured cache. It returns nil, nil for DriverNone so
// callers can pass the result straight to prompt.NewEngine. Remote stores
// are wrapped in a circuit breaker.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	breaker := resilience.FromCircuitConfig(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutSecs)

	switch cfg.Driver {
	case "", DriverNone:
		zap.L().Info("store: prompt cache disabled")
		return nil, nil
	case DriverMemory:
		return NewMemory(cfg.TTL), nil
	case DriverSQLite:
		st, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	case DriverPostgres:
		st, err := NewPostgres(ctx, cfg.DSN, &cfg.Pool)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return NewGuarded(st, breaker, DriverPostgres), nil
	case DriverRedis:
		st, err := NewRedis(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return NewGuarded(st, breaker, DriverRedis), nil
	default:
		return nil, eris.Errorf("store: unknown cache driver %q", cfg.Driver)
	}
}
