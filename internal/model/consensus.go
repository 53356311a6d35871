package model

// Consensus flags.
const (
	FlagHighConfidence   = "high_confidence"
	FlagReviewRequired   = "review_required"
	FlagPartialConsensus = "partial_consensus"
	FlagInsufficientData = "insufficient_data"
	FlagSingleSource     = "single_source_no_consensus"
)

// Tie-break outcomes for field value selection.
const (
	TieBreakNone        = ""
	TieBreakReliability = "reliability"
	TieBreakFirstSeen   = "first_seen"
)

// Agreement is a chance-corrected agreement estimate with its normal
// approximation interval. Defined is false when fewer than two raters
// contributed, in which case the numeric fields are zero.
type Agreement struct {
	Defined        bool    `json:"defined"`
	Kappa          float64 `json:"kappa"`
	StdErr         float64 `json:"std_err"`
	CILower        float64 `json:"ci_lower"`
	CIUpper        float64 `json:"ci_upper"`
	PValue         float64 `json:"p_value"`
	Items          int     `json:"items"`
	Raters         float64 `json:"raters"`
	Interpretation string  `json:"interpretation"`
}

// Vote counts the providers that proposed one normalized candidate.
type Vote struct {
	Value     string   `json:"value"`
	Count     int      `json:"count"`
	Providers []string `json:"providers"`
}

// FieldConsensus is the reconciled outcome for one contact field.
type FieldConsensus struct {
	Field     Field     `json:"field"`
	Value     *string   `json:"value"`
	Raters    int       `json:"raters"`
	Votes     []Vote    `json:"votes"`
	Agreement Agreement `json:"agreement"`
	Flag      string    `json:"flag,omitempty"`
	TieBreak  string    `json:"tie_break,omitempty"`
}

// ProviderReliability is a provider's standing in the batch ranking.
type ProviderReliability struct {
	Provider string  `json:"provider"`
	Matches  int     `json:"matches"`
	Rated    int     `json:"rated"`
	Rate     float64 `json:"rate"`
}

// ConsensusResult is the consolidated record for a lead plus its agreement
// statistics. It is the reusable output of the consensus engine and carries
// no qualification semantics.
type ConsensusResult struct {
	Fields             []FieldConsensus      `json:"fields"`
	Overall            Agreement             `json:"overall"`
	WeightedFieldScore *float64              `json:"weighted_field_score"`
	ValidRaters        int                   `json:"valid_raters"`
	Reliability        []ProviderReliability `json:"reliability"`
	MostReliable       string                `json:"most_reliable,omitempty"`
	LeastReliable      string                `json:"least_reliable,omitempty"`
	Flags              []string              `json:"flags"`
	Insights           map[string]string     `json:"insights,omitempty"`
}

// Field returns the consensus for f, if present.
func (c *ConsensusResult) Field(f Field) (FieldConsensus, bool) {
	for _, fc := range c.Fields {
		if fc.Field == f {
			return fc, true
		}
	}
	return FieldConsensus{}, false
}

// Value returns the consolidated value for f, or "" when absent.
func (c *ConsensusResult) Value(f Field) string {
	fc, ok := c.Field(f)
	if !ok || fc.Value == nil {
		return ""
	}
	return *fc.Value
}

// HasFlag reports whether flag is set on the result.
func (c *ConsensusResult) HasFlag(flag string) bool {
	for _, f := range c.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
