package consensus

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
)

// Config holds the consensus thresholds and field weights.
type Config struct {
	// HighThreshold: overall kappa above it is flagged high_confidence.
	HighThreshold float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	// LowThreshold: overall kappa below it is flagged review_required.
	LowThreshold float64 `yaml:"low_threshold" mapstructure:"low_threshold"`
	// FieldWeights weight per-field kappas in the weighted field score.
	// Missing fields weigh 1.
	FieldWeights map[string]float64 `yaml:"field_weights" mapstructure:"field_weights"`
	// CountryCode is prepended to national phone numbers.
	CountryCode string `yaml:"country_code" mapstructure:"country_code"`
}

// DefaultConfig returns the default thresholds, equal weights and the
// Brazilian country code.
func DefaultConfig() Config {
	return Config{
		HighThreshold: 0.7,
		LowThreshold:  0.4,
		FieldWeights: map[string]float64{
			string(model.FieldEmail):    1,
			string(model.FieldPhone):    1,
			string(model.FieldWhatsApp): 1,
			string(model.FieldWebsite):  1,
		},
		CountryCode: DefaultCountryCode,
	}
}

// Validate checks that the thresholds are ordered and inside [-1, 1].
func (c Config) Validate() error {
	if c.LowThreshold > c.HighThreshold {
		return eris.Errorf("consensus: low threshold %.2f above high threshold %.2f", c.LowThreshold, c.HighThreshold)
	}
	if c.LowThreshold < -1 || c.HighThreshold > 1 {
		return eris.New("consensus: thresholds must lie in [-1, 1]")
	}
	for f, w := range c.FieldWeights {
		if w < 0 {
			return eris.Errorf("consensus: negative weight for field %s", f)
		}
	}
	return nil
}

// Engine reconciles provider outcomes for one lead.
type Engine struct {
	cfg  Config
	norm Normalizer
}

// NewEngine creates an engine with cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, norm: Normalizer{CountryCode: cfg.CountryCode}}
}

// Normalizer returns the engine's value normalizer.
func (e *Engine) Normalizer() Normalizer {
	return e.norm
}

// NewTracker returns a reliability tracker that normalizes like the engine.
func (e *Engine) NewTracker(providers []string) *ReliabilityTracker {
	return NewReliabilityTracker(e.norm, providers)
}

// Reconcile builds the consolidated record for one lead from its provider
// outcomes. ranking breaks value ties and names the most and least reliable
// providers; it may be nil. The result depends only on the outcomes, their
// order and ranking.
//
// Each field is rated with the free-marginal kappa. The overall agreement
// pools the fields with Fleiss' kappa, or equals the field agreement when
// only one field had two or more raters.
func (e *Engine) Reconcile(outcomes []model.ProviderOutcome, ranking []model.ProviderReliability) *model.ConsensusResult {
	res := &model.ConsensusResult{
		ValidRaters: model.ValidJudgments(outcomes),
		Reliability: ranking,
		Flags:       []string{},
	}

	var (
		items     []Item
		single    model.Agreement
		weighted  float64
		weightSum float64
	)
	for _, f := range model.ContactFields {
		ballots := collectBallots(e.norm, f, outcomes)
		votes := Tally(ballots)
		fc := model.FieldConsensus{
			Field:  f,
			Raters: len(ballots),
			Votes:  votes,
		}

		switch len(ballots) {
		case 0:
			fc.Agreement = model.Agreement{Interpretation: InterpretUndefined}
			fc.Flag = model.FlagInsufficientData
		case 1:
			v := ballots[0].Value
			fc.Value = &v
			fc.Agreement = model.Agreement{Interpretation: InterpretUndefined}
			fc.Flag = model.FlagSingleSource
		default:
			item := make(Item, len(votes))
			namespaced := make(Item, len(votes))
			for _, v := range votes {
				item[v.Value] = v.Count
				namespaced[string(f)+":"+v.Value] = v.Count
			}
			items = append(items, namespaced)

			// Candidate values are open-ended; the observed candidates bound
			// the category count from below.
			fc.Agreement = FreeMarginalKappa(item, len(votes))
			single = fc.Agreement
			fc.Value, fc.TieBreak = SelectValue(votes, ranking)
			fc.Flag = e.flag(fc.Agreement.Kappa)

			w := e.weight(f)
			weighted += w * fc.Agreement.Kappa
			weightSum += w
		}
		res.Fields = append(res.Fields, fc)
	}

	if len(items) == 1 {
		res.Overall = single
	} else {
		res.Overall = FleissKappa(items)
	}
	if weightSum > 0 {
		s := weighted / weightSum
		res.WeightedFieldScore = &s
	}

	switch {
	case res.Overall.Defined:
		res.Flags = append(res.Flags, e.flag(res.Overall.Kappa))
	case res.ValidRaters == 1:
		res.Flags = append(res.Flags, model.FlagSingleSource, model.FlagReviewRequired)
	default:
		res.Flags = append(res.Flags, model.FlagInsufficientData, model.FlagReviewRequired)
	}

	res.MostReliable, res.LeastReliable = extremes(ranking)

	for _, o := range outcomes {
		if o.Valid() && o.Judgment.Insight != nil {
			if res.Insights == nil {
				res.Insights = make(map[string]string)
			}
			res.Insights[o.Provider] = *o.Judgment.Insight
		}
	}
	return res
}

func (e *Engine) flag(kappa float64) string {
	switch {
	case kappa > e.cfg.HighThreshold:
		return model.FlagHighConfidence
	case kappa < e.cfg.LowThreshold:
		return model.FlagReviewRequired
	default:
		return model.FlagPartialConsensus
	}
}

func (e *Engine) weight(f model.Field) float64 {
	if w, ok := e.cfg.FieldWeights[string(f)]; ok {
		return w
	}
	return 1
}

// extremes returns the first and last providers of ranking that were rated
// at least once.
func extremes(ranking []model.ProviderReliability) (string, string) {
	var most, least string
	for _, r := range ranking {
		if r.Rated == 0 {
			continue
		}
		if most == "" {
			most = r.Provider
		}
		least = r.Provider
	}
	return most, least
}
