package scorer

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/config"
	"github.com/sells-group/lead-consensus/internal/consensus"
	"github.com/sells-group/lead-consensus/internal/model"
)

// Qualification decisions.
const (
	DecisionQualified    = "qualified"
	DecisionNeedsReview  = "needs_review"
	DecisionDisqualified = "disqualified"
	DecisionError        = "error"
)

// Recommended actions.
const (
	ActionContactNow       = "contact_now"
	ActionScheduleFollowUp = "schedule_follow_up"
	ActionManualReview     = "manual_review"
	ActionDiscard          = "discard"
	ActionRetry            = "retry"
	ActionFixInput         = "fix_input"
)

// Scorer computes lead quality from consensus output and raw collected data.
type Scorer struct {
	cfg  config.ScorerConfig
	norm consensus.Normalizer
}

// NewScorer creates a Scorer. Raw source values are normalized with norm so
// they compare equal to consolidated values.
func NewScorer(cfg config.ScorerConfig, norm consensus.Normalizer) *Scorer {
	if cfg.CorroborationTarget < 1 {
		cfg.CorroborationTarget = 1
	}
	return &Scorer{cfg: cfg, norm: norm}
}

// Score rates a consolidated record and assigns its qualification.
func (s *Scorer) Score(cons *model.ConsensusResult, raw *model.RawCollectedData) model.Quality {
	q := model.Quality{Corroborations: make(map[model.Field]int)}

	var consolidated int
	var corroboration float64
	for _, fc := range cons.Fields {
		if fc.Value == nil {
			continue
		}
		consolidated++
		n := s.corroborating(fc.Field, *fc.Value, raw)
		q.Corroborations[fc.Field] = n
		corroboration += math.Min(1, float64(n)/float64(s.cfg.CorroborationTarget))
	}

	q.Completeness = float64(consolidated) / float64(len(model.ContactFields))
	if consolidated > 0 {
		q.Corroboration = corroboration / float64(consolidated)
	}
	if cons.Overall.Defined {
		q.Agreement = math.Max(0, cons.Overall.Kappa)
	}

	// Fixed summation order keeps scores reproducible.
	total := q.Completeness*s.cfg.CompletenessWeight +
		q.Agreement*s.cfg.AgreementWeight +
		q.Corroboration*s.cfg.CorroborationWeight

	// Normalize to 0-100 scale.
	if sum := WeightSum(s.cfg); sum > 0 {
		total = (total / sum) * 100
	}
	q.Score = math.Round(total*100) / 100
	q.Decision, q.Action = s.Qualify(q.Score)

	zap.L().Debug("scorer: scored lead",
		zap.Float64("score", q.Score),
		zap.Float64("completeness", q.Completeness),
		zap.Float64("agreement", q.Agreement),
		zap.Float64("corroboration", q.Corroboration),
		zap.String("decision", q.Decision),
	)

	return q
}

// Qualify maps a score to the first tier whose minimum it reaches.
func (s *Scorer) Qualify(score float64) (decision, action string) {
	for _, t := range s.cfg.Tiers {
		if score >= t.MinScore {
			return t.Decision, t.Action
		}
	}
	if n := len(s.cfg.Tiers); n > 0 {
		return s.cfg.Tiers[n-1].Decision, s.cfg.Tiers[n-1].Action
	}
	return DecisionDisqualified, ActionDiscard
}

// QualifyError returns the decision and action for a lead that failed.
// Invalid input must be fixed before a retry can help.
func QualifyError(err error) (decision, action string) {
	if model.IsValidation(err) {
		return DecisionError, ActionFixInput
	}
	return DecisionError, ActionRetry
}

// corroborating counts distinct sources holding a value that normalizes to
// value. WhatsApp numbers are also corroborated by plain phone values.
func (s *Scorer) corroborating(f model.Field, value string, raw *model.RawCollectedData) int {
	if raw == nil {
		return 0
	}
	kinds := []model.Field{f}
	if f == model.FieldWhatsApp {
		kinds = append(kinds, model.FieldPhone)
	}

	matched := make(map[string]bool)
	for _, kind := range kinds {
		for source, values := range raw.Values(kind) {
			if matched[source] {
				continue
			}
			for _, v := range values {
				v := v
				if n := s.norm.Field(f, &v); n != nil && *n == value {
					matched[source] = true
					break
				}
			}
		}
	}
	return len(matched)
}
