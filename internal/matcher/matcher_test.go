package matcher

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/sportrules"
)

// fakeViewRepository lets each test hand-build the candidate set returned
// for tier 1 vs tier 2 without a database.
type fakeViewRepository struct {
	tier1    []models.Candidate
	tier2    []models.Candidate
	excluded []int64
}

func (f *fakeViewRepository) FindCandidates(_ context.Context, _, _ string, _ decimal.Decimal, _ *decimal.Decimal, _ decimal.Decimal, tolerance decimal.Decimal, excludeEventID int64) ([]models.Candidate, error) {
	f.excluded = append(f.excluded, excludeEventID)
	if tolerance.IsZero() {
		return cloneCandidates(f.tier1), nil
	}
	return cloneCandidates(f.tier2), nil
}

func (f *fakeViewRepository) Refresh(_ context.Context) error { return nil }
func (f *fakeViewRepository) StaleSince() bool                 { return false }
func (f *fakeViewRepository) MarkStale()                        {}

func cloneCandidates(in []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, len(in))
	copy(out, in)
	return out
}

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
func pd(f float64) *decimal.Decimal {
	v := d(f)
	return &v
}

func TestEvaluate_Scenario1_Tier1ResultA_Tennis2Way(t *testing.T) {
	candidate := func(home, away string) models.Candidate {
		return models.Candidate{Home: home, Away: away, VarOne: d(0.15), VarTwo: d(-0.12), WinnerSide: models.WinnerHome, PointDiff: 1, HomeScore: 2, AwayScore: 1}
	}
	repo := &fakeViewRepository{tier1: []models.Candidate{candidate("P1", "P2"), candidate("P3", "P4")}}
	m := NewMatcher(repo, sportrules.Load(), nil)

	v, err := m.Evaluate(context.Background(), Vector{EventID: 1, Sport: "Tennis", VarOne: d(0.15), VarTwo: d(-0.12)})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, v.Status)
	assert.Equal(t, models.VariationTierExact, v.VariationTier)
	assert.Equal(t, models.ResultTierA, v.ResultTier)
	assert.Equal(t, models.ConfidenceA, v.Confidence)
	assert.Equal(t, models.WinnerHome, v.PredictedSide)
	assert.Equal(t, 1, v.PredictedDiff)
	assert.Len(t, v.Candidates, 2)
}

func TestEvaluate_Scenario2_Tier2ResultC_Football3Way(t *testing.T) {
	p := models.Candidate{VarOne: d(0.12), VarX: pd(-0.05), VarTwo: d(-0.07), WinnerSide: models.WinnerHome, PointDiff: 2, HomeScore: 3, AwayScore: 1}
	q := models.Candidate{VarOne: d(0.13), VarX: pd(-0.06), VarTwo: d(-0.08), WinnerSide: models.WinnerHome, PointDiff: 1, HomeScore: 2, AwayScore: 1}
	r := models.Candidate{VarOne: d(0.14), VarX: pd(-0.04), VarTwo: d(-0.09), WinnerSide: models.WinnerHome, PointDiff: 3, HomeScore: 4, AwayScore: 1}
	repo := &fakeViewRepository{tier2: []models.Candidate{p, q, r}}
	m := NewMatcher(repo, sportrules.Load(), nil)

	v, err := m.Evaluate(context.Background(), Vector{EventID: 1, Sport: "Football", VarOne: d(0.13), VarX: pd(-0.05), VarTwo: d(-0.08)})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, v.Status)
	assert.Equal(t, models.VariationTierSimilar, v.VariationTier)
	assert.Equal(t, models.ResultTierC, v.ResultTier)
	assert.Equal(t, models.ConfidenceC, v.Confidence)
	assert.Equal(t, models.WinnerHome, v.PredictedSide)
	assert.Equal(t, 2, v.PredictedDiff)
}

func TestEvaluate_Scenario3_NoMatch(t *testing.T) {
	a := models.Candidate{VarOne: d(0.10), VarTwo: d(-0.10), WinnerSide: models.WinnerHome, PointDiff: 1, HomeScore: 1, AwayScore: 0}
	b := models.Candidate{VarOne: d(0.10), VarTwo: d(-0.10), WinnerSide: models.WinnerAway, PointDiff: 1, HomeScore: 0, AwayScore: 1}
	repo := &fakeViewRepository{tier1: []models.Candidate{a, b}}
	m := NewMatcher(repo, sportrules.Load(), nil)

	v, err := m.Evaluate(context.Background(), Vector{EventID: 1, Sport: "Basketball", VarOne: d(0.10), VarTwo: d(-0.10)})
	require.NoError(t, err)

	assert.Equal(t, models.StatusNoMatch, v.Status)
	assert.Len(t, v.Candidates, 2)
}

func TestEvaluate_Scenario4_NoCandidates(t *testing.T) {
	repo := &fakeViewRepository{}
	m := NewMatcher(repo, sportrules.Load(), nil)

	v, err := m.Evaluate(context.Background(), Vector{EventID: 1, Sport: "Basketball", VarOne: d(0.99), VarTwo: d(-0.99)})
	require.NoError(t, err)

	assert.Equal(t, models.StatusNoCandidates, v.Status)
	assert.Empty(t, v.Candidates)
}

func TestEvaluate_Scenario5_SymmetryFilterExcludesNonMatchingCandidate(t *testing.T) {
	symmetricA := models.Candidate{VarOne: d(0.10), VarTwo: d(-0.08), WinnerSide: models.WinnerHome, PointDiff: 1, HomeScore: 1, AwayScore: 0}
	symmetricB := models.Candidate{VarOne: d(0.11), VarTwo: d(-0.09), WinnerSide: models.WinnerHome, PointDiff: 1, HomeScore: 1, AwayScore: 0}
	asymmetric := models.Candidate{VarOne: d(-0.10), VarTwo: d(0.08), WinnerSide: models.WinnerAway, PointDiff: 5, HomeScore: 0, AwayScore: 5}
	repo := &fakeViewRepository{tier2: []models.Candidate{symmetricA, symmetricB, asymmetric}}
	m := NewMatcher(repo, sportrules.Load(), nil)

	v, err := m.Evaluate(context.Background(), Vector{EventID: 1, Sport: "Basketball", VarOne: d(0.10), VarTwo: d(-0.08)})
	require.NoError(t, err)

	require.Len(t, v.Candidates, 3)
	symCount := 0
	for _, c := range v.Candidates {
		if c.Symmetric {
			symCount++
		}
	}
	assert.Equal(t, 2, symCount)
	assert.Equal(t, models.StatusSuccess, v.Status)
	assert.Equal(t, models.ResultTierA, v.ResultTier)
}

func TestEvaluate_ExcludesSelfFromCandidates(t *testing.T) {
	// The repository contract (FindCandidates excludeEventID) keeps an
	// event from ever matching itself; the matcher trusts that contract
	// rather than re-filtering, so this only exercises that the event's
	// own ID is passed through.
	repo := &fakeViewRepository{tier1: nil}
	m := NewMatcher(repo, sportrules.Load(), nil)
	v, err := m.Evaluate(context.Background(), Vector{EventID: 42, Sport: "Basketball", VarOne: d(0.1), VarTwo: d(-0.1)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoCandidates, v.Status)
	assert.Equal(t, []int64{42, 42}, repo.excluded)
}
