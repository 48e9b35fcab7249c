// Package matcher implements the history matcher: given an event's
// variation vector, it searches past events for similarly-shaped odds
// movement and, when the matching candidates unanimously agree on an
// outcome, emits a prediction.
package matcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/repository"
	"github.com/ecarrasco/dropwatch/internal/sportrules"
)

// tolerance is τ from §4.3, inclusive of 0.04.
var tolerance = decimal.NewFromFloat(0.0401)

// exact is the tier-1 tolerance: component-wise equality at 2-decimal
// precision, expressed as a zero-width band so the repository's <= τ
// comparison becomes strict equality.
var exact = decimal.Zero

// Matcher evaluates the history matcher for one event at a time.
type Matcher struct {
	views  repository.AlertViewRepository
	rules  *sportrules.Table
	log    *logrus.Logger
}

// NewMatcher builds a Matcher over the alert-eligible view.
func NewMatcher(views repository.AlertViewRepository, rules *sportrules.Table, log *logrus.Logger) *Matcher {
	return &Matcher{views: views, rules: rules, log: log}
}

// Vector is the current event's variation vector plus the context the
// candidate search needs.
type Vector struct {
	EventID    int64
	Sport      string
	GroundType string
	Home       string
	Away       string
	Competition string
	VarOne     decimal.Decimal
	VarX       *decimal.Decimal
	VarTwo     decimal.Decimal
}

// Evaluate runs the full four-step matcher over v, returning a structured
// Verdict. It never returns an error for "no candidates" or "no match" —
// those are Verdict.Status values, not failures; an error return means
// the candidate query itself failed.
func (m *Matcher) Evaluate(ctx context.Context, v Vector) (*models.Verdict, error) {
	hasDraw := m.rules.HasDraw(v.Sport) && v.VarX != nil

	verdict := &models.Verdict{
		EventID:     v.EventID,
		Home:        v.Home,
		Away:        v.Away,
		Competition: v.Competition,
		Sport:       v.Sport,
		VarOne:      v.VarOne,
		VarX:        v.VarX,
		VarTwo:      v.VarTwo,
	}

	groundType := ""
	if m.rules.GroundAware(v.Sport) {
		groundType = v.GroundType
	}

	var varX *decimal.Decimal
	if hasDraw {
		varX = v.VarX
	}

	tier1, err := m.views.FindCandidates(ctx, v.Sport, groundType, v.VarOne, varX, v.VarTwo, exact, v.EventID)
	if err != nil {
		return nil, fmt.Errorf("tier 1 candidate search: %w", err)
	}

	candidates := tier1
	tier := models.VariationTierExact
	if len(candidates) == 0 {
		tier2, err := m.views.FindCandidates(ctx, v.Sport, groundType, v.VarOne, varX, v.VarTwo, tolerance, v.EventID)
		if err != nil {
			return nil, fmt.Errorf("tier 2 candidate search: %w", err)
		}
		candidates = tier2
		tier = models.VariationTierSimilar
	}

	if len(candidates) == 0 {
		verdict.Status = models.StatusNoCandidates
		if m.log != nil {
			m.log.WithField("event_id", v.EventID).Debug("matcher: no candidates")
		}
		return verdict, nil
	}

	annotateDiffs(candidates, v.VarOne, varX, v.VarTwo)
	markSymmetric(candidates, v.VarOne, varX, v.VarTwo)

	verdict.VariationTier = tier
	verdict.Candidates = candidates

	symmetric := verdict.SymmetricCandidates()
	if tier == models.VariationTierExact {
		// Tier 1 is an exact match by construction; the symmetry filter
		// is defined for tier 2 only, so every tier-1 candidate counts.
		symmetric = candidates
		for i := range verdict.Candidates {
			verdict.Candidates[i].Symmetric = true
		}
	}

	if len(symmetric) == 0 {
		verdict.Status = models.StatusNoMatch
		return verdict, nil
	}

	resultTier, confidence, side, diff, ok := evaluateResultTiers(symmetric)
	if !ok {
		verdict.Status = models.StatusNoMatch
		return verdict, nil
	}

	verdict.Status = models.StatusSuccess
	verdict.ResultTier = resultTier
	verdict.Confidence = confidence
	verdict.PredictedSide = side
	verdict.PredictedDiff = diff
	return verdict, nil
}

// annotateDiffs fills each candidate's signed component-wise difference
// against the current event's vector (candidate minus current).
func annotateDiffs(candidates []models.Candidate, varOne decimal.Decimal, varX *decimal.Decimal, varTwo decimal.Decimal) {
	for i := range candidates {
		c := &candidates[i]
		d1 := c.VarOne.Sub(varOne)
		d2 := c.VarTwo.Sub(varTwo)
		c.DiffOne = d1
		c.DiffTwo = d2
		if varX != nil && c.VarX != nil {
			dx := c.VarX.Sub(*varX)
			c.DiffX = &dx
		}
	}
}

// markSymmetric flags each candidate per the §4.3 step-2 symmetry
// predicate: the candidate's sign pattern matches the current event's
// componentwise, treating zero as matching either sign.
func markSymmetric(candidates []models.Candidate, varOne decimal.Decimal, varX *decimal.Decimal, varTwo decimal.Decimal) {
	for i := range candidates {
		c := &candidates[i]
		match := sameSign(c.VarOne, varOne) && sameSign(c.VarTwo, varTwo)
		if varX != nil && c.VarX != nil {
			match = match && sameSign(*c.VarX, *varX)
		}
		c.Symmetric = match
	}
}

func sameSign(a, b decimal.Decimal) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	return a.Sign() == b.Sign()
}

// evaluateResultTiers evaluates A, B, C in priority order over the
// symmetric candidate set, returning the strongest tier that holds for
// all candidates.
func evaluateResultTiers(candidates []models.Candidate) (tier models.ResultTier, confidence int, side models.WinnerSide, pointDiff int, ok bool) {
	if len(candidates) == 0 {
		return models.ResultTierNone, 0, "", 0, false
	}

	first := candidates[0]

	identicalScoreline := true
	sameWinnerAndDiff := true
	sameWinner := true
	for _, c := range candidates[1:] {
		if c.HomeScore != first.HomeScore || c.AwayScore != first.AwayScore {
			identicalScoreline = false
		}
		if c.WinnerSide != first.WinnerSide || c.PointDiff != first.PointDiff {
			sameWinnerAndDiff = false
		}
		if c.WinnerSide != first.WinnerSide {
			sameWinner = false
		}
	}

	switch {
	case identicalScoreline:
		return models.ResultTierA, models.ConfidenceA, first.WinnerSide, first.PointDiff, true
	case sameWinnerAndDiff:
		return models.ResultTierB, models.ConfidenceB, first.WinnerSide, first.PointDiff, true
	case sameWinner:
		sum := 0
		for _, c := range candidates {
			sum += c.PointDiff
		}
		avg := int(decimal.NewFromInt(int64(sum)).DivRound(decimal.NewFromInt(int64(len(candidates))), 0).IntPart())
		return models.ResultTierC, models.ConfidenceC, first.WinnerSide, avg, true
	default:
		return models.ResultTierNone, 0, "", 0, false
	}
}

// RenderPrediction produces the human-readable line of a SUCCESS verdict.
func RenderPrediction(v *models.Verdict) string {
	if v.Status != models.StatusSuccess {
		return ""
	}
	return fmt.Sprintf("winner=%s, point_diff=%d", v.PredictedSide, v.PredictedDiff)
}
