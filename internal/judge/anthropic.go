package judge

import (
	"context"

	"github.com/sells-group/lead-consensus/internal/model"
	"github.com/sells-group/lead-consensus/pkg/anthropic"
)

// AnthropicProvider judges leads through the Messages API.
type AnthropicProvider struct {
	name        string
	model       string
	client      anthropic.Client
	maxTokens   int64
	temperature *float64
}

// NewAnthropicProvider creates a provider backed by client.
func NewAnthropicProvider(name, model string, client anthropic.Client, maxTokens int64, temperature *float64) *AnthropicProvider {
	return &AnthropicProvider{
		name:        name,
		model:       model,
		client:      client,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return p.name }

// Model implements Provider.
func (p *AnthropicProvider) Model() string { return p.model }

// Judge implements Provider.
func (p *AnthropicProvider) Judge(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: p.temperature,
	})
	if err != nil {
		return nil, err
	}

	out := &Response{
		Raw:   resp.Text(),
		Model: p.model,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}

	j, err := ParseJudgment(out.Raw)
	if err != nil {
		return out, &model.ProviderMalformedResponseError{Provider: p.name, Err: err}
	}
	out.Judgment = j
	return out, nil
}
