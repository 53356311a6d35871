package judge

import (
	"context"

	"github.com/sells-group/lead-consensus/internal/model"
	"github.com/sells-group/lead-consensus/pkg/chat"
)

// ChatProvider judges leads through an OpenAI-compatible chat completions
// endpoint (OpenAI, DeepSeek, ZhipuAI, Gemini's compatibility layer).
type ChatProvider struct {
	name        string
	model       string
	client      chat.Client
	maxTokens   int
	temperature *float64
	jsonMode    bool
}

// NewChatProvider creates a provider backed by client. When jsonMode is set
// the request asks the server for a JSON object response.
func NewChatProvider(name, model string, client chat.Client, maxTokens int, temperature *float64, jsonMode bool) *ChatProvider {
	return &ChatProvider{
		name:        name,
		model:       model,
		client:      client,
		maxTokens:   maxTokens,
		temperature: temperature,
		jsonMode:    jsonMode,
	}
}

// Name implements Provider.
func (p *ChatProvider) Name() string { return p.name }

// Model implements Provider.
func (p *ChatProvider) Model() string { return p.model }

// Judge implements Provider.
func (p *ChatProvider) Judge(ctx context.Context, req Request) (*Response, error) {
	creq := chat.ChatCompletionRequest{
		Model: p.model,
		Messages: []chat.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: p.temperature,
	}
	if p.maxTokens > 0 {
		mt := p.maxTokens
		creq.MaxTokens = &mt
	}
	if p.jsonMode {
		creq.ResponseFormat = chat.JSONObject
	}

	resp, err := p.client.ChatCompletion(ctx, creq)
	if err != nil {
		return nil, err
	}

	out := &Response{
		Raw:   resp.Content(),
		Model: p.model,
		Usage: model.TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
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
