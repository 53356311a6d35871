// Package scorer turns a consolidated lead record into a 0-100 quality score
// and a table-driven qualification decision.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/config"
)

// DefaultConfig returns a config.ScorerConfig with sensible defaults.
// Weights sum to 100.
func DefaultConfig() config.ScorerConfig {
	return config.ScorerConfig{
		// Weights (sum = 100).
		CompletenessWeight:  40,
		AgreementWeight:     35,
		CorroborationWeight: 25,

		// Two independent sources fully corroborate a value.
		CorroborationTarget: 2,

		// Tiers, highest first.
		Tiers: []config.QualificationTier{
			{MinScore: 80, Decision: DecisionQualified, Action: ActionContactNow},
			{MinScore: 60, Decision: DecisionQualified, Action: ActionScheduleFollowUp},
			{MinScore: 40, Decision: DecisionNeedsReview, Action: ActionManualReview},
			{MinScore: 0, Decision: DecisionDisqualified, Action: ActionDiscard},
		},
	}
}

// WeightSum returns the sum of all component weights.
func WeightSum(c config.ScorerConfig) float64 {
	return c.CompletenessWeight + c.AgreementWeight + c.CorroborationWeight
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	// All weights must be non-negative.
	weights := []struct {
		name string
		w    float64
	}{
		{"completeness_weight", c.CompletenessWeight},
		{"agreement_weight", c.AgreementWeight},
		{"corroboration_weight", c.CorroborationWeight},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	sum := WeightSum(c)
	if sum <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	// Weights should be close to 100 (allow tolerance for floating-point).
	if math.Abs(sum-100) > 1 {
		errs = append(errs, fmt.Sprintf("weights should sum to 100, got %.1f", sum))
	}

	if c.CorroborationTarget < 1 {
		errs = append(errs, "corroboration_target must be >= 1")
	}

	// Tiers.
	if len(c.Tiers) == 0 {
		errs = append(errs, "at least one tier is required")
	}
	for i, t := range c.Tiers {
		if t.Decision == "" || t.Action == "" {
			errs = append(errs, fmt.Sprintf("tier %d needs a decision and an action", i))
		}
		if i > 0 && t.MinScore >= c.Tiers[i-1].MinScore {
			errs = append(errs, fmt.Sprintf("tier %d min_score must be below tier %d", i, i-1))
		}
	}
	if n := len(c.Tiers); n > 0 && c.Tiers[n-1].MinScore > 0 {
		errs = append(errs, "last tier min_score must be <= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
