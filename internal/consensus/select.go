package consensus

import (
	"github.com/sells-group/lead-consensus/internal/model"
)

// Ballot is one provider's normalized value for a field.
type Ballot struct {
	Provider string
	Value    string
}

// Tally groups ballots into votes, ordered by first appearance.
func Tally(ballots []Ballot) []model.Vote {
	var votes []model.Vote
	index := make(map[string]int)
	for _, b := range ballots {
		i, ok := index[b.Value]
		if !ok {
			i = len(votes)
			index[b.Value] = i
			votes = append(votes, model.Vote{Value: b.Value})
		}
		votes[i].Count++
		votes[i].Providers = append(votes[i].Providers, b.Provider)
	}
	return votes
}

// SelectValue picks the vote with the highest count. A tie goes to the
// candidate backed by the most reliable provider according to ranking; if
// the ranking cannot separate the tied candidates, the first-seen candidate
// wins. It returns the chosen value and how a tie was broken.
func SelectValue(votes []model.Vote, ranking []model.ProviderReliability) (*string, string) {
	if len(votes) == 0 {
		return nil, model.TieBreakNone
	}

	best := 0
	for _, v := range votes {
		if v.Count > best {
			best = v.Count
		}
	}
	var tied []int
	for i, v := range votes {
		if v.Count == best {
			tied = append(tied, i)
		}
	}
	if len(tied) == 1 {
		v := votes[tied[0]].Value
		return &v, model.TieBreakNone
	}

	standing := make(map[string]model.ProviderReliability, len(ranking))
	for _, r := range ranking {
		standing[r.Provider] = r
	}

	// Each tied candidate is represented by its strongest supporter.
	top := make([]model.ProviderReliability, len(tied))
	for k, i := range tied {
		for _, p := range votes[i].Providers {
			if r, ok := standing[p]; ok && better(r, top[k]) {
				top[k] = r
			}
		}
	}

	winner, level := -1, 0
	for k := range tied {
		switch {
		case winner < 0 || better(top[k], top[winner]):
			winner, level = k, 1
		case !better(top[winner], top[k]):
			level++
		}
	}

	v := votes[tied[winner]].Value
	if level == 1 && top[winner].Rated > 0 {
		return &v, model.TieBreakReliability
	}
	return &v, model.TieBreakFirstSeen
}

// better reports whether a outranks b by match rate, then matches.
func better(a, b model.ProviderReliability) bool {
	if a.Rate != b.Rate {
		return a.Rate > b.Rate
	}
	return a.Matches > b.Matches
}
