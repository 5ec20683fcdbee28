package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/formfill-cli/internal/resilience"
)

// Client is the slice of the Messages API the extractor needs.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single Messages API call.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Temperature *float64
}

// SystemBlock is one system prompt block.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl marks a block for provider-side prompt caching.
type CacheControl struct {
	TTL string // "5m" or "1h"
}

// Message is one conversation turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is the part of a Messages API response we keep.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Truncated reports whether the model stopped at the token limit, which
// usually leaves a JSON answer unterminated.
func (r *MessageResponse) Truncated() bool {
	return r.StopReason == "max_tokens"
}

// ContentBlock is one response block; only "text" blocks carry answers.
type ContentBlock struct {
	Type string
	Text string
}

// TokenUsage is the token accounting of one call.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// sdkClient implements Client on top of anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates a Client backed by the SDK. SDK retries are disabled
// because the prompt engine owns the retry schedule and model fallback.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &sdkClient{client: sdk.NewClient(all...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
	}
	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, sdk.NewUserMessage(block))
		}
	}
	for _, b := range req.System {
		param := sdk.TextBlockParam{Text: b.Text}
		if b.CacheControl != nil {
			param.CacheControl = sdk.NewCacheControlEphemeralParam()
			if b.CacheControl.TTL != "" {
				param.CacheControl.TTL = sdk.CacheControlEphemeralTTL(b.CacheControl.TTL)
			}
		}
		params.System = append(params.System, param)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(eris.Wrapf(err, "anthropic: create message with %s", req.Model))
	}

	resp := &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
	for _, b := range msg.Content {
		resp.Content = append(resp.Content, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return resp, nil
}

// classify tags API errors as transient or permanent by HTTP status.
// Errors without a status (network, context) pass through unchanged.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTPStatus(err, apiErr.StatusCode)
	}
	return err
}
