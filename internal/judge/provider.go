// Package judge asks LLM providers for a structured opinion on a lead's
// collected contact data.
package judge

import (
	"context"

	"github.com/sells-group/lead-consensus/internal/model"
)

// Request is what every provider receives for one lead.
type Request struct {
	Lead   model.Lead
	Data   *model.RawCollectedData
	System string
	Prompt string
}

// Response is a parsed provider answer.
type Response struct {
	Judgment *model.ProviderJudgment
	Raw      string
	Model    string
	Usage    model.TokenUsage
}

// Provider is a single LLM service able to judge a lead.
type Provider interface {
	Name() string
	Model() string
	Judge(ctx context.Context, req Request) (*Response, error)
}
