package main

import (
	"context"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/cost"
	"github.com/sells-group/formfill-cli/internal/extract"
	"github.com/sells-group/formfill-cli/internal/prompt"
	"github.com/sells-group/formfill-cli/internal/store"
	anthropicpkg "github.com/sells-group/formfill-cli/pkg/anthropic"
)

// fillEnv holds the cache, prompt engine and form filler shared by the
// extract, batch, networking and serve commands.
type fillEnv struct {
	Cache  store.Cache // may be nil
	Engine *prompt.Engine
	Filler *extract.Filler
	Prices *cost.Calculator
}

// Close releases resources held by the environment.
func (e *fillEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// Report logs usage and estimated cost, and writes the usage line to w.
func (e *fillEnv) Report(w io.Writer) {
	snap := e.Engine.Stats().Snapshot()
	usage := e.Prices.Usage(snap.PerModel)
	zap.L().Info("prompt usage",
		zap.Int("requests", snap.Requests),
		zap.Int("cache_hits", snap.CacheHits),
		zap.Int64("tokens", snap.TotalTokens()),
		zap.Float64("cost_usd", usage.Total),
		zap.Strings("unpriced_models", usage.Unpriced),
	)
	fmt.Fprintf(w, "%s Estimated cost $%.4f.\n", e.Engine.Stats().Summary(), usage.Total)
}

// newBackend builds the model backend. Tests replace it.
var newBackend = func() prompt.Backend {
	var opts []option.RequestOption
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	temperature := cfg.Anthropic.Temperature
	return anthropicpkg.NewGenerator(
		anthropicpkg.NewClient(cfg.Anthropic.Key, opts...),
		anthropicpkg.GeneratorConfig{MaxTokens: cfg.Anthropic.MaxTokens, Temperature: &temperature},
	)
}

// initFiller opens the cache and wires the engine and filler. Callers
// should defer env.Close().
func initFiller(ctx context.Context) (*fillEnv, error) {
	if err := cfg.Validate("extract"); err != nil {
		return nil, err
	}

	cache, err := store.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, eris.Wrap(err, "open prompt cache")
	}

	var pc prompt.Cache
	if cache != nil {
		pc = cache
	}
	engine := prompt.NewEngine(newBackend(), pc, cfg.Prompt.Engine())

	zap.L().Info("form filler ready",
		zap.String("primary_model", cfg.Prompt.PrimaryModel),
		zap.String("backup_model", cfg.Prompt.BackupModel),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	return &fillEnv{
		Cache:  cache,
		Engine: engine,
		Filler: extract.New(engine, cfg.Extract),
		Prices: cost.NewCalculator(cfg.Pricing),
	}, nil
}
