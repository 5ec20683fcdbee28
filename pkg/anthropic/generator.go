package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/prompt"
)

// GeneratorConfig configures single-turn text generation.
type GeneratorConfig struct {
	MaxTokens   int64
	Temperature *float64
	// System is sent as a cached system block when non-empty.
	System string
}

// Generator adapts a Client to prompt.Backend: one user message in, the
// response text and token counts out.
type Generator struct {
	client Client
	cfg    GeneratorConfig
}

var _ prompt.Backend = (*Generator)(nil)

// NewGenerator creates a Generator. MaxTokens defaults to 2048.
func NewGenerator(client Client, cfg GeneratorConfig) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Generator{client: client, cfg: cfg}
}

// Generate implements prompt.Backend.
func (g *Generator) Generate(ctx context.Context, text, model string) (*prompt.Completion, error) {
	req := MessageRequest{
		Model:       model,
		MaxTokens:   g.cfg.MaxTokens,
		Messages:    []Message{{Role: "user", Content: text}},
		Temperature: g.cfg.Temperature,
	}
	if g.cfg.System != "" {
		req.System = []SystemBlock{{Text: g.cfg.System, CacheControl: &CacheControl{TTL: "5m"}}}
	}

	resp, err := g.client.CreateMessage(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, eris.Errorf("anthropic: empty response from %s", model)
	}
	if resp.Truncated() {
		zap.L().Warn("anthropic: answer hit max_tokens and may be cut off",
			zap.String("model", model),
			zap.Int64("max_tokens", g.cfg.MaxTokens),
		)
	}

	return &prompt.Completion{
		Text:             resp.Text(),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}
