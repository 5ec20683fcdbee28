// Package prompt executes prompts against a text-generation model with
// bounded retries, backup-model fallback and a content-addressed result
// cache.
package prompt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Record is one model invocation: the prompt, the model that answered and
// what it cost. Records are written to the cache once and never mutated.
type Record struct {
	ID               uuid.UUID     `json:"id"`
	Prompt           string        `json:"prompt"`
	PromptHash       string        `json:"prompt_hash"`
	Model            string        `json:"model"`
	AnsweredBy       string        `json:"answered_by"`
	Result           string        `json:"result"`
	PromptTokens     int64         `json:"prompt_tokens"`
	CompletionTokens int64         `json:"completion_tokens"`
	RequestTime      time.Duration `json:"request_time"`
	TaskID           string        `json:"task_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// TotalTokens returns prompt plus completion tokens.
func (r Record) TotalTokens() int64 {
	return r.PromptTokens + r.CompletionTokens
}

// Hash returns the cache key of a prompt: the hex SHA-256 of its text. The
// model is the second half of the key and is stored next to it.
func Hash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Completion is a successful backend answer.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// Backend generates text for a prompt. Implementations classify failures
// with resilience.TransientError and resilience.PermanentError.
type Backend interface {
	Generate(ctx context.Context, prompt, model string) (*Completion, error)
}

// Cache stores records keyed by (prompt hash, model). Get returns nil, nil
// on a miss. Put overwrites an existing entry.
type Cache interface {
	Get(ctx context.Context, hash, model string) (*Record, error)
	Put(ctx context.Context, rec Record) error
}

type taskIDKey struct{}

// WithTaskID tags every record produced under ctx with the given task.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, taskID)
}

// TaskIDFromContext returns the task set by WithTaskID, if any.
func TaskIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}
