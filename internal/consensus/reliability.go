package consensus

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/model"
)

// ReliabilityTracker ranks providers by how often their values match the
// plurality value across the leads of one batch.
type ReliabilityTracker struct {
	norm Normalizer

	mu      sync.Mutex
	order   map[string]int
	matches map[string]int
	rated   map[string]int
}

// NewReliabilityTracker creates a tracker. providers fixes the order used to
// break ranking ties; unseen providers are appended as they appear.
func NewReliabilityTracker(norm Normalizer, providers []string) *ReliabilityTracker {
	t := &ReliabilityTracker{
		norm:    norm,
		order:   make(map[string]int),
		matches: make(map[string]int),
		rated:   make(map[string]int),
	}
	for _, p := range providers {
		t.register(p)
	}
	return t
}

func (t *ReliabilityTracker) register(p string) {
	if _, ok := t.order[p]; !ok {
		t.order[p] = len(t.order)
	}
}

// Observe scores one lead's outcomes. For every field with at least two
// raters and a strict plurality, each rater is counted as rated and, when
// its value equals the plurality, as a match.
func (t *ReliabilityTracker) Observe(outcomes []model.ProviderOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, o := range outcomes {
		t.register(o.Provider)
	}

	for _, f := range model.ContactFields {
		ballots := collectBallots(t.norm, f, outcomes)
		if len(ballots) < 2 {
			continue
		}
		plurality, ok := strictPlurality(Tally(ballots))
		if !ok {
			continue
		}
		for _, b := range ballots {
			t.rated[b.Provider]++
			if b.Value == plurality {
				t.matches[b.Provider]++
			}
		}
	}
}

// Ranking returns every known provider ordered by match rate desc, matches
// desc, then provider order.
func (t *ReliabilityTracker) Ranking() []model.ProviderReliability {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.ProviderReliability, 0, len(t.order))
	for p := range t.order {
		r := model.ProviderReliability{
			Provider: p,
			Matches:  t.matches[p],
			Rated:    t.rated[p],
		}
		if r.Rated > 0 {
			r.Rate = float64(r.Matches) / float64(r.Rated)
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Rate != b.Rate {
			return a.Rate > b.Rate
		}
		if a.Matches != b.Matches {
			return a.Matches > b.Matches
		}
		return t.order[a.Provider] < t.order[b.Provider]
	})
	return out
}

func strictPlurality(votes []model.Vote) (string, bool) {
	best, second := -1, -1
	var value string
	for _, v := range votes {
		switch {
		case v.Count > best:
			second = best
			best = v.Count
			value = v.Value
		case v.Count > second:
			second = v.Count
		}
	}
	if best <= 0 || best == second {
		return "", false
	}
	return value, true
}

// collectBallots returns the normalized ballots for field f in outcome
// order, skipping outcomes without a judgment or a valid value.
func collectBallots(norm Normalizer, f model.Field, outcomes []model.ProviderOutcome) []Ballot {
	var ballots []Ballot
	for _, o := range outcomes {
		if !o.Valid() {
			continue
		}
		raw := o.Judgment.Value(f)
		v := norm.Field(f, raw)
		if v == nil {
			if raw != nil && strings.TrimSpace(*raw) != "" {
				zap.L().Debug("consensus: value failed normalization, not counted",
					zap.String("provider", o.Provider),
					zap.String("field", string(f)),
					zap.String("value", *raw),
				)
			}
			continue
		}
		ballots = append(ballots, Ballot{Provider: o.Provider, Value: *v})
	}
	return ballots
}
