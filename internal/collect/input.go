package collect

import (
	"context"

	"github.com/sells-group/lead-consensus/internal/model"
)

// InputSource reports the contacts already present on the lead record so
// they can corroborate what other sources and providers find.
type InputSource struct{}

// NewInputSource creates the input source.
func NewInputSource() *InputSource { return &InputSource{} }

// Name implements Source.
func (*InputSource) Name() string { return "input" }

// Supports implements Source.
func (*InputSource) Supports(model.Lead) bool { return true }

// Collect implements Source.
func (*InputSource) Collect(_ context.Context, lead model.Lead) (*Result, error) {
	return &Result{Fields: map[string]*string{
		"phone":   strPtr(lead.Phone),
		"email":   strPtr(lead.Email),
		"website": strPtr(lead.Website),
	}}, nil
}
