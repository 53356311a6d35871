package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-consensus/internal/model"
)

func TestTally_FirstSeenOrder(t *testing.T) {
	votes := Tally([]Ballot{
		{"p1", "b"}, {"p2", "a"}, {"p3", "b"}, {"p4", "c"},
	})
	require.Len(t, votes, 3)
	assert.Equal(t, "b", votes[0].Value)
	assert.Equal(t, 2, votes[0].Count)
	assert.Equal(t, []string{"p1", "p3"}, votes[0].Providers)
	assert.Equal(t, "a", votes[1].Value)
	assert.Equal(t, "c", votes[2].Value)
}

func TestSelectValue(t *testing.T) {
	votes := []model.Vote{
		{Value: "a", Count: 2, Providers: []string{"p1", "p2"}},
		{Value: "b", Count: 2, Providers: []string{"p3", "p4"}},
		{Value: "c", Count: 1, Providers: []string{"p5"}},
	}

	t.Run("no ranking falls back to first seen", func(t *testing.T) {
		v, tb := SelectValue(votes, nil)
		assert.Equal(t, "a", *v)
		assert.Equal(t, model.TieBreakFirstSeen, tb)
	})

	t.Run("ranking decides", func(t *testing.T) {
		v, tb := SelectValue(votes, []model.ProviderReliability{
			{Provider: "p4", Matches: 8, Rated: 8, Rate: 1},
			{Provider: "p1", Matches: 6, Rated: 8, Rate: 0.75},
		})
		assert.Equal(t, "b", *v)
		assert.Equal(t, model.TieBreakReliability, tb)
	})

	t.Run("equal standing falls back to first seen", func(t *testing.T) {
		v, tb := SelectValue(votes, []model.ProviderReliability{
			{Provider: "p3", Matches: 4, Rated: 5, Rate: 0.8},
			{Provider: "p2", Matches: 4, Rated: 5, Rate: 0.8},
		})
		assert.Equal(t, "a", *v)
		assert.Equal(t, model.TieBreakFirstSeen, tb)
	})

	t.Run("matches break equal rates", func(t *testing.T) {
		v, tb := SelectValue(votes, []model.ProviderReliability{
			{Provider: "p1", Matches: 2, Rated: 4, Rate: 0.5},
			{Provider: "p3", Matches: 4, Rated: 8, Rate: 0.5},
		})
		assert.Equal(t, "b", *v)
		assert.Equal(t, model.TieBreakReliability, tb)
	})

	t.Run("clear winner", func(t *testing.T) {
		v, tb := SelectValue(votes[1:], nil)
		assert.Equal(t, "b", *v)
		assert.Equal(t, model.TieBreakNone, tb)
	})

	t.Run("empty", func(t *testing.T) {
		v, tb := SelectValue(nil, nil)
		assert.Nil(t, v)
		assert.Equal(t, model.TieBreakNone, tb)
	})
}

func TestReliabilityTracker(t *testing.T) {
	tr := NewEngine(DefaultConfig()).NewTracker([]string{"openai", "anthropic", "gemini"})

	// Lead 1: openai and anthropic agree on email, gemini differs.
	tr.Observe([]model.ProviderOutcome{
		ok("openai", model.ProviderJudgment{Email: sp("a@x.com")}),
		ok("anthropic", model.ProviderJudgment{Email: sp("A@X.com")}),
		ok("gemini", model.ProviderJudgment{Email: sp("z@x.com")}),
	})
	// Lead 2: phone tie (no strict plurality) is not scored; website has
	// only one rater and is not scored either.
	tr.Observe([]model.ProviderOutcome{
		ok("openai", model.ProviderJudgment{Phone: sp("11987654321"), Website: sp("x.com")}),
		ok("gemini", model.ProviderJudgment{Phone: sp("1133334444")}),
		timedOut("anthropic"),
	})
	// Lead 3: gemini and anthropic agree, openai differs.
	tr.Observe([]model.ProviderOutcome{
		ok("openai", model.ProviderJudgment{Website: sp("a.com")}),
		ok("anthropic", model.ProviderJudgment{Website: sp("b.com")}),
		ok("gemini", model.ProviderJudgment{Website: sp("www.b.com")}),
	})

	ranking := tr.Ranking()
	require.Len(t, ranking, 3)
	assert.Equal(t, model.ProviderReliability{Provider: "anthropic", Matches: 2, Rated: 2, Rate: 1}, ranking[0])
	assert.Equal(t, model.ProviderReliability{Provider: "openai", Matches: 1, Rated: 2, Rate: 0.5}, ranking[1])
	assert.Equal(t, model.ProviderReliability{Provider: "gemini", Matches: 1, Rated: 2, Rate: 0.5}, ranking[2])
}

func TestReliabilityTracker_UnknownProvidersAppended(t *testing.T) {
	tr := NewReliabilityTracker(Normalizer{}, []string{"b"})
	tr.Observe([]model.ProviderOutcome{timedOut("a")})

	ranking := tr.Ranking()
	require.Len(t, ranking, 2)
	assert.Equal(t, "b", ranking[0].Provider)
	assert.Equal(t, "a", ranking[1].Provider)
	assert.Zero(t, ranking[1].Rate)
}
