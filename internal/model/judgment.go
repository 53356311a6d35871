package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ProviderJudgment is one provider's structured opinion on a lead's contacts.
// Nil fields mean the provider offered no value.
type ProviderJudgment struct {
	Email      *string  `json:"email"`
	Phone      *string  `json:"phone"`
	WhatsApp   *string  `json:"whatsapp"`
	Website    *string  `json:"website"`
	Insight    *string  `json:"insight"`
	Confidence *float64 `json:"confidence"`
}

// Value returns the candidate the judgment holds for field.
func (j *ProviderJudgment) Value(field Field) *string {
	if j == nil {
		return nil
	}
	switch field {
	case FieldEmail:
		return j.Email
	case FieldPhone:
		return j.Phone
	case FieldWhatsApp:
		return j.WhatsApp
	case FieldWebsite:
		return j.Website
	default:
		return nil
	}
}

// Validate checks the judgment against the response schema.
func (j *ProviderJudgment) Validate() error {
	if j == nil {
		return eris.Wrap(ErrMalformedResponse, "judgment is empty")
	}
	if j.Confidence != nil && (*j.Confidence < 0 || *j.Confidence > 1) {
		return eris.Wrapf(ErrMalformedResponse, "confidence %.3f outside [0,1]", *j.Confidence)
	}
	return nil
}

// JudgmentState is the outcome of one provider call.
type JudgmentState string

const (
	JudgmentOK        JudgmentState = "ok"
	JudgmentTimeout   JudgmentState = "timeout"
	JudgmentMalformed JudgmentState = "malformed"
	JudgmentFailed    JudgmentState = "failed"
	JudgmentSkipped   JudgmentState = "skipped"
)

// TokenUsage counts tokens consumed by one provider call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ProviderOutcome pairs a provider with its judgment, or nil when the
// provider failed, timed out or answered outside the schema.
type ProviderOutcome struct {
	Provider string            `json:"provider"`
	Judgment *ProviderJudgment `json:"judgment"`
	State    JudgmentState     `json:"state"`
	Attempts int               `json:"attempts"`
	Duration time.Duration     `json:"duration_ns"`
	Usage    TokenUsage        `json:"usage"`
	CostUSD  float64           `json:"cost_usd"`
	Error    string            `json:"error,omitempty"`
}

// Valid reports whether the outcome carries a usable judgment.
func (o ProviderOutcome) Valid() bool {
	return o.Judgment != nil
}

// ValidJudgments counts outcomes that carry a judgment.
func ValidJudgments(outcomes []ProviderOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Valid() {
			n++
		}
	}
	return n
}
