package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/formfill-cli/internal/resilience"
)

// Sentinel failure kinds. Match them with errors.Is.
var (
	// ErrPermanent means the backend rejected the request itself (bad
	// request, auth, invalid parameters). It is never retried.
	ErrPermanent = errors.New("prompt: permanent model error")
	// ErrRetriesExhausted means transient failures outlasted the backoff ceiling.
	ErrRetriesExhausted = errors.New("prompt: retries exhausted")
)

// Failure is returned when a prompt could not be answered. It matches its
// kind (ErrPermanent or ErrRetriesExhausted) and the last backend error.
type Failure struct {
	Kind     error
	Model    string
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%v (model %s, %d attempts): %v", f.Kind, f.Model, f.Attempts, f.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (f *Failure) Unwrap() []error {
	return []error{f.Kind, f.Err}
}

// Config holds the engine settings.
type Config struct {
	// PrimaryModel is used by RunDefault.
	PrimaryModel string
	// BackupModel takes over after Policy.FallbackAfter transient failures.
	// Empty disables fallback.
	BackupModel string
	Policy      resilience.BackoffPolicy
	// RequestsPerMinute throttles backend calls. 0 disables throttling.
	RequestsPerMinute int
}

// Engine runs prompts. It is safe for concurrent use.
type Engine struct {
	backend Backend
	cache   Cache
	cfg     Config
	stats   *Stats
	sleeper resilience.Sleeper
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSleeper replaces the real-timer sleeper used between retries.
func WithSleeper(s resilience.Sleeper) Option {
	return func(e *Engine) { e.sleeper = s }
}

// WithStats makes the engine accumulate into a shared Stats.
func WithStats(s *Stats) Option {
	return func(e *Engine) { e.stats = s }
}

// WithClock overrides time.Now for request timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. cache may be nil to disable caching.
func NewEngine(backend Backend, cache Cache, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		cache:   cache,
		cfg:     cfg,
		stats:   NewStats(),
		sleeper: resilience.TimerSleeper{},
		now:     time.Now,
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns the accumulator of this engine.
func (e *Engine) Stats() *Stats { return e.stats }

// PrimaryModel returns the model used by RunDefault.
func (e *Engine) PrimaryModel() string { return e.cfg.PrimaryModel }

// RunDefault runs prompt against the primary model.
func (e *Engine) RunDefault(ctx context.Context, prompt string) (string, error) {
	return e.Run(ctx, prompt, e.cfg.PrimaryModel)
}

// Run returns the model answer to prompt, serving it from the cache when an
// identical (prompt, model) pair was answered before. Transient backend
// failures are retried with exponential backoff; the returned error is a
// *Failure once retrying stops.
func (e *Engine) Run(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		return "", eris.New("prompt: model is required")
	}
	hash := Hash(prompt)
	log := zap.L().With(zap.String("model", model), zap.String("prompt_hash", hash[:12]))

	if rec := e.lookup(ctx, log, hash, prompt, model); rec != nil {
		e.stats.AddCacheHit()
		log.Debug("prompt: serving from cache")
		return rec.Result, nil
	}

	log.Debug("prompt: asking model", zap.String("prompt", loggable(prompt)))

	current := model
	for attempt := 1; ; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "prompt: rate limit wait")
			}
		}

		start := e.now()
		comp, err := e.backend.Generate(ctx, prompt, current)
		elapsed := e.now().Sub(start)

		if err == nil {
			rec := e.record(ctx, prompt, hash, model, current, comp, elapsed)
			e.stats.Add(rec)
			log.Info("prompt: model answered",
				zap.String("answered_by", current),
				zap.Int("attempt", attempt),
				zap.Duration("request_time", elapsed),
				zap.Int64("tokens", rec.TotalTokens()),
			)
			e.store(ctx, log, rec)
			return rec.Result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", eris.Wrap(ctxErr, "prompt: run canceled")
		}

		if !resilience.IsTransient(err) {
			log.Error("prompt: permanent model error",
				zap.String("answered_by", current),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return "", &Failure{Kind: ErrPermanent, Model: current, Attempts: attempt, Err: err}
		}

		delay, ok := e.cfg.Policy.Backoff(attempt)
		if !ok {
			log.Error("prompt: waiting for model too long, giving up",
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return "", &Failure{Kind: ErrRetriesExhausted, Model: current, Attempts: attempt, Err: err}
		}

		log.Warn("prompt: transient model error, sleeping",
			zap.String("answered_by", current),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := e.sleeper.Sleep(ctx, delay); err != nil {
			return "", eris.Wrap(err, "prompt: retry sleep")
		}

		if e.cfg.Policy.ShouldFallback(attempt) && e.cfg.BackupModel != "" && current != e.cfg.BackupModel {
			log.Warn("prompt: switching to backup model",
				zap.String("from", current),
				zap.String("to", e.cfg.BackupModel),
				zap.Int("failures", attempt),
			)
			current = e.cfg.BackupModel
		}
	}
}

// lookup returns a cached record for the exact prompt, or nil. Cache errors
// count as a miss.
func (e *Engine) lookup(ctx context.Context, log *zap.Logger, hash, prompt, model string) *Record {
	if e.cache == nil {
		return nil
	}
	rec, err := e.cache.Get(ctx, hash, model)
	if err != nil {
		log.Warn("prompt: cache read failed, continuing without cache", zap.Error(err))
		return nil
	}
	if rec == nil {
		return nil
	}
	if rec.Prompt != prompt {
		log.Error("prompt: hash collision, ignoring cached record",
			zap.String("cached_prompt", loggable(rec.Prompt)),
			zap.String("prompt", loggable(prompt)),
		)
		return nil
	}
	return rec
}

func (e *Engine) store(ctx context.Context, log *zap.Logger, rec Record) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Put(ctx, rec); err != nil {
		log.Warn("prompt: cache write failed", zap.Error(err))
		return
	}
	log.Debug("prompt: written to cache")
}

// record keys the result by the requested model so a later identical call
// hits the cache even when the backup model answered.
func (e *Engine) record(ctx context.Context, prompt, hash, model, answeredBy string, comp *Completion, elapsed time.Duration) Record {
	return Record{
		ID:               uuid.New(),
		Prompt:           prompt,
		PromptHash:       hash,
		Model:            model,
		AnsweredBy:       answeredBy,
		Result:           strings.TrimSpace(comp.Text),
		PromptTokens:     comp.PromptTokens,
		CompletionTokens: comp.CompletionTokens,
		RequestTime:      elapsed,
		TaskID:           TaskIDFromContext(ctx),
		CreatedAt:        e.now().UTC(),
	}
}

const logLimit = 500

// loggable flattens newlines and truncates long prompts.
func loggable(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= logLimit {
		return s
	}
	return s[:logLimit] + " ... (truncated for logging readability)"
}
