package main

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sells-group/formfill-cli/internal/cost"
	"github.com/sells-group/formfill-cli/internal/extract"
	"github.com/sells-group/formfill-cli/internal/prompt"
	"github.com/sells-group/formfill-cli/internal/store"
)

// scriptedBackend answers prompts with the first rule whose key is part of
// the prompt. Unmatched prompts get fallback.
type scriptedBackend struct {
	mu       sync.Mutex
	rules    []rule
	fallback string
	err      error
	calls    int
}

type rule struct {
	contains string
	answer   string
}

func (b *scriptedBackend) Generate(_ context.Context, p, model string) (*prompt.Completion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	answer := b.fallback
	for _, r := range b.rules {
		if strings.Contains(p, r.contains) {
			answer = r.answer
			break
		}
	}
	return &prompt.Completion{Text: answer, Model: model, PromptTokens: 1000, CompletionTokens: 100}, nil
}

func (b *scriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func newTestEnv(t *testing.T, backend prompt.Backend) *fillEnv {
	t.Helper()
	engine := prompt.NewEngine(backend, store.NewMemory(0), prompt.Config{PrimaryModel: "claude-sonnet-4-5"})
	return &fillEnv{
		Engine: engine,
		Filler: extract.New(engine, extract.DefaultConfig(), extract.WithTokenizer(extract.WordCounter{})),
		Prices: cost.NewCalculator(cost.DefaultRates()),
	}
}
