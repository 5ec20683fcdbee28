// Package extract turns free text into validated form records by prompting a
// model, salvaging its JSON answer and validating it field by field.
package extract

import (
	"context"
	"fmt"
	"time"
)

// Defaults.
const (
	DefaultMaxTranscriptTokens = 2500
	DefaultMaxOptions          = 10
)

// PromptRunner answers prompts. *prompt.Engine satisfies it.
type PromptRunner interface {
	RunDefault(ctx context.Context, prompt string) (string, error)
	PrimaryModel() string
}

// Config tunes prompt construction and batching.
type Config struct {
	// MaxTranscriptTokens caps transcripts before people extraction; longer
	// input is truncated.
	MaxTranscriptTokens int `yaml:"max_transcript_tokens" mapstructure:"max_transcript_tokens"`
	// MaxOptions caps the options listed per select field.
	MaxOptions int `yaml:"max_options" mapstructure:"max_options"`
	// LargeContextModels are model name prefixes that get the bigger
	// per-person batch.
	LargeContextModels []string `yaml:"large_context_models" mapstructure:"large_context_models"`
}

// DefaultConfig returns the built-in limits.
func DefaultConfig() Config {
	return Config{
		MaxTranscriptTokens: DefaultMaxTranscriptTokens,
		MaxOptions:          DefaultMaxOptions,
		LargeContextModels:  []string{"claude-sonnet", "claude-opus", "claude-3-5-sonnet", "claude-3-opus"},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxTranscriptTokens <= 0 {
		c.MaxTranscriptTokens = def.MaxTranscriptTokens
	}
	if c.MaxOptions <= 0 {
		c.MaxOptions = def.MaxOptions
	}
	if c.LargeContextModels == nil {
		c.LargeContextModels = def.LargeContextModels
	}
	return c
}

// Filler fills forms from text. It is safe for concurrent use when its
// runner is.
type Filler struct {
	runner    PromptRunner
	cfg       Config
	tokenizer Tokenizer
	now       func() time.Time
}

// Option configures a Filler.
type Option func(*Filler)

// WithTokenizer replaces the default tiktoken counter.
func WithTokenizer(t Tokenizer) Option {
	return func(f *Filler) { f.tokenizer = t }
}

// WithClock overrides time.Now for the current-time prompt context.
func WithClock(now func() time.Time) Option {
	return func(f *Filler) { f.now = now }
}

// New creates a Filler.
func New(runner PromptRunner, cfg Config, opts ...Option) *Filler {
	f := &Filler{
		runner: runner,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.tokenizer == nil {
		f.tokenizer = DefaultTokenizer()
	}
	return f
}

// ExtractionError reports a model answer that could not be turned into the
// expected shape. Callers surface it as "too little information" rather
// than as a failure of the run.
type ExtractionError struct {
	Op       string // fill_in_form, fill_in_multi_entry_form, ...
	Expected string // "object" or "list"
	Response string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s: model answer is not a JSON %s: %s", e.Op, e.Expected, truncate(e.Response))
}

const logLimit = 500

func truncate(s string) string {
	if len(s) <= logLimit {
		return s
	}
	return s[:logLimit] + " ... (truncated for logging readability)"
}
