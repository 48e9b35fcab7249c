package models

import "github.com/shopspring/decimal"

// VariationTier classifies how closely a candidate's variation vector
// matches the current event's.
type VariationTier string

const (
	VariationTierExact   VariationTier = "tier_1_exact"
	VariationTierSimilar VariationTier = "tier_2_similar"
)

// ResultTier is the unanimity level among the symmetric candidate set.
type ResultTier string

const (
	ResultTierA      ResultTier = "A" // identical scoreline
	ResultTierB      ResultTier = "B" // same winner + same point_diff, different scoreline
	ResultTierC      ResultTier = "C" // same winner only, averaged point_diff
	ResultTierNone   ResultTier = ""
)

// Confidence percentages and weights per result tier, per §4.3.
const (
	ConfidenceA = 100
	ConfidenceB = 75
	ConfidenceC = 50

	WeightA = 4
	WeightB = 3
	WeightC = 2
)

// VerdictStatus is the outcome of a single matcher run.
type VerdictStatus string

const (
	StatusSuccess      VerdictStatus = "SUCCESS"
	StatusNoMatch      VerdictStatus = "NO_MATCH"
	StatusNoCandidates VerdictStatus = "NO_CANDIDATES"
)

// Candidate is a past event considered by the matcher, annotated with its
// relationship to the current event's variation vector.
type Candidate struct {
	EventID      int64             `json:"event_id"`
	Home         string            `json:"home"`
	Away         string            `json:"away"`
	Competition  string            `json:"competition"`
	VarOne       decimal.Decimal   `json:"var_one"`
	VarX         *decimal.Decimal  `json:"var_x"`
	VarTwo       decimal.Decimal   `json:"var_two"`
	DiffOne      decimal.Decimal   `json:"diff_one"` // candidate minus current, signed
	DiffX        *decimal.Decimal  `json:"diff_x"`
	DiffTwo      decimal.Decimal   `json:"diff_two"`
	WinnerSide   WinnerSide        `json:"winner_side"`
	PointDiff    int               `json:"point_diff"`
	HomeScore    int               `json:"home_score"`
	AwayScore    int               `json:"away_score"`
	Symmetric    bool              `json:"symmetric"`
}

// Verdict is the matcher's structured output for one event evaluation.
type Verdict struct {
	EventID        int64           `json:"event_id"`
	Home           string          `json:"home"`
	Away           string          `json:"away"`
	Competition    string          `json:"competition"`
	Sport          string          `json:"sport"`
	VarOne         decimal.Decimal `json:"var_one"`
	VarX           *decimal.Decimal `json:"var_x"`
	VarTwo         decimal.Decimal `json:"var_two"`
	Candidates     []Candidate     `json:"candidates"`
	VariationTier  VariationTier   `json:"variation_tier,omitempty"`
	ResultTier     ResultTier      `json:"result_tier,omitempty"`
	Status         VerdictStatus   `json:"status"`
	Confidence     int             `json:"confidence,omitempty"`
	PredictedSide  WinnerSide      `json:"predicted_side,omitempty"`
	PredictedDiff  int             `json:"predicted_diff,omitempty"`
}

// SymmetricCandidates returns the subset of Candidates marked symmetric.
func (v *Verdict) SymmetricCandidates() []Candidate {
	out := make([]Candidate, 0, len(v.Candidates))
	for _, c := range v.Candidates {
		if c.Symmetric {
			out = append(out, c)
		}
	}
	return out
}
