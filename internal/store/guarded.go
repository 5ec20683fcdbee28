package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/prompt"
	"github.com/sells-group/formfill-cli/internal/resilience"
)

// Guarded puts a circuit breaker in front of a remote cache. Once the store
// fails repeatedly, calls are rejected with resilience.ErrCircuitOpen until
// the reset timeout passes; the prompt engine treats that as a cache miss.
type Guarded struct {
	inner Cache
	cb    *resilience.CircuitBreaker
}

var (
	_ Cache      = (*Guarded)(nil)
	_ Pruner     = (*Guarded)(nil)
	_ BulkWriter = (*Guarded)(nil)
)

// NewGuarded wraps inner. name labels state transitions in the log.
func NewGuarded(inner Cache, cfg resilience.CircuitBreakerConfig, name string) *Guarded {
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("store: circuit breaker state change",
			zap.String("store", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &Guarded{inner: inner, cb: resilience.NewCircuitBreaker(cfg)}
}

// State returns the breaker state.
func (g *Guarded) State() resilience.CircuitState {
	return g.cb.State()
}

// Get implements prompt.Cache.
func (g *Guarded) Get(ctx context.Context, hash, model string) (*prompt.Record, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (*prompt.Record, error) {
		return g.inner.Get(ctx, hash, model)
	})
}

// Put implements prompt.Cache.
func (g *Guarded) Put(ctx context.Context, rec prompt.Record) error {
	return g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Put(ctx, rec)
	})
}

// Prune forwards to the wrapped store when it supports pruning.
func (g *Guarded) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	p, ok := g.inner.(Pruner)
	if !ok {
		return 0, eris.New("store: backend does not support prune")
	}
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (int64, error) {
		return p.Prune(ctx, olderThan)
	})
}

// PutMany forwards to the wrapped store when it supports bulk writes.
func (g *Guarded) PutMany(ctx context.Context, recs []prompt.Record) (int64, error) {
	w, ok := g.inner.(BulkWriter)
	if !ok {
		return 0, eris.New("store: backend does not support bulk writes")
	}
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (int64, error) {
		return w.PutMany(ctx, recs)
	})
}

func (g *Guarded) Close() error {
	return g.inner.Close()
}
