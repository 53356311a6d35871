// Package cost prices provider token usage.
package cost

// Rates holds per-model token pricing.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
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

// Tokens computes the cost of one call to model. Unknown models cost 0.
func (c *Calculator) Tokens(model string, input, output int64) float64 {
	if c == nil {
		return 0
	}
	rate, ok := c.rates.Models[model]
	if !ok {
		return 0
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	return inCost + outCost
}

// Known reports whether model has a configured rate.
func (c *Calculator) Known(model string) bool {
	if c == nil {
		return false
	}
	_, ok := c.rates.Models[model]
	return ok
}

// DefaultRates returns the default pricing for the default provider models.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"gpt-4o-mini":             {Input: 0.15, Output: 0.60},
			"gpt-4o":                  {Input: 5.00, Output: 15.00},
			"claude-3-haiku-20240307": {Input: 0.25, Output: 1.25},
			"gemini-1.5-flash":        {Input: 0.35, Output: 1.05},
			"deepseek-chat":           {Input: 0.14, Output: 0.28},
			"glm-4-flash":             {Input: 0.01, Output: 0.01},
		},
	}
}
