// Package cost estimates the USD cost of model usage recorded by the prompt
// engine.
package cost

import (
	"sort"
	"strings"

	"github.com/sells-group/formfill-cli/internal/prompt"
)

// Rates holds per-model pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// rate finds the rate for model: an exact key first, else the longest key
// that prefixes model, so "claude-sonnet-4-5" prices dated snapshots too.
func (c *Calculator) rate(model string) (ModelRate, bool) {
	if r, ok := c.rates.Anthropic[model]; ok {
		return r, true
	}
	best := ""
	for k := range c.rates.Anthropic {
		if strings.HasPrefix(model, k) && len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return ModelRate{}, false
	}
	return c.rates.Anthropic[best], true
}

// Claude computes the cost of one call. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	r, ok := c.rate(model)
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*r.Input + (float64(output)/1e6)*r.Output
}

// Breakdown is the cost of accumulated usage.
type Breakdown struct {
	Total    float64            `json:"total_usd"`
	PerModel map[string]float64 `json:"per_model_usd"`
	// Unpriced lists models with no configured rate, sorted.
	Unpriced []string `json:"unpriced,omitempty"`
}

// Usage prices per-model token totals, keyed by the model that answered.
func (c *Calculator) Usage(perModel map[string]prompt.ModelUsage) Breakdown {
	b := Breakdown{PerModel: make(map[string]float64)}
	for model, u := range perModel {
		if _, ok := c.rate(model); !ok {
			b.Unpriced = append(b.Unpriced, model)
			continue
		}
		usd := c.Claude(model, u.PromptTokens, u.CompletionTokens)
		b.PerModel[model] = usd
		b.Total += usd
	}
	sort.Strings(b.Unpriced)
	return b
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5":  {Input: 1.00, Output: 5.00},
			"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4":   {Input: 3.00, Output: 15.00},
			"claude-3-7-sonnet": {Input: 3.00, Output: 15.00},
			"claude-opus-4":     {Input: 15.00, Output: 75.00},
		},
	}
}
