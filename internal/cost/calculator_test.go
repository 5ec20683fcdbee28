package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/formfill-cli/internal/prompt"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku":         {Input: 0.80, Output: 4.00},
			"sonnet":        {Input: 3.00, Output: 15.00},
			"sonnet-legacy": {Input: 6.00, Output: 30.00},
		},
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		model  string
		input  int64
		output int64
		want   float64
	}{
		{
			name: "haiku simple",
			model: "haiku", input: 1000000, output: 100000,
			want: 0.80 + 0.40,
		},
		{
			name: "sonnet simple",
			model: "sonnet", input: 2000000, output: 1000000,
			want: 6.00 + 15.00,
		},
		{
			name: "dated snapshot uses prefix",
			model: "haiku-20251001", input: 1000000, output: 0,
			want: 0.80,
		},
		{
			name: "longest prefix wins",
			model: "sonnet-legacy-2024", input: 1000000, output: 0,
			want: 6.00,
		},
		{
			name: "unknown model",
			model: "gpt-4", input: 1000000, output: 1000000,
			want: 0,
		},
		{
			name:  "zero tokens",
			model: "sonnet",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Claude(tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestUsage(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	stats := prompt.NewStats()
	stats.Add(prompt.Record{Model: "sonnet", AnsweredBy: "sonnet", PromptTokens: 1000000})
	stats.Add(prompt.Record{Model: "sonnet", AnsweredBy: "haiku", PromptTokens: 1000000})
	stats.Add(prompt.Record{Model: "haiku", PromptTokens: 0, CompletionTokens: 1000000})
	stats.Add(prompt.Record{Model: "mystery", AnsweredBy: "mystery", PromptTokens: 5})

	b := calc.Usage(stats.Snapshot().PerModel)
	assert.InDelta(t, 3.00+0.80+4.00, b.Total, 1e-9)
	assert.InDelta(t, 3.00, b.PerModel["sonnet"], 1e-9)
	assert.InDelta(t, 4.80, b.PerModel["haiku"], 1e-9)
	assert.Equal(t, []string{"mystery"}, b.Unpriced)
}

func TestUsage_Empty(t *testing.T) {
	t.Parallel()
	b := NewCalculator(testRates()).Usage(nil)
	assert.Zero(t, b.Total)
	assert.Empty(t, b.Unpriced)
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())
	assert.Greater(t, calc.Claude("claude-sonnet-4-5-20250929", 1000, 1000), 0.0)
	assert.Greater(t, calc.Claude("claude-3-5-haiku-latest", 1000, 1000), 0.0)
}
