package sportrules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ParsesEmbeddedTable(t *testing.T) {
	tbl := Load()
	require.NotNil(t, tbl)

	r := tbl.Lookup("Football")
	assert.True(t, r.HasDraw)
	assert.Equal(t, 150*time.Minute, r.Cutoff)

	r = tbl.Lookup("Tennis")
	assert.False(t, r.HasDraw)
	assert.Equal(t, 4*time.Hour, r.Cutoff)
	assert.True(t, r.GroundAware)

	r = tbl.Lookup("Basketball")
	assert.Equal(t, 3*time.Hour, r.Cutoff)
}

func TestLookup_IsCaseInsensitive(t *testing.T) {
	tbl := Load()
	assert.Equal(t, tbl.Lookup("football"), tbl.Lookup("FOOTBALL"))
}

func TestLookup_FallsBackToDefault(t *testing.T) {
	tbl := Load()
	r := tbl.Lookup("Handball")
	assert.Equal(t, 3*time.Hour, r.Cutoff)
	assert.True(t, r.HasDraw)
}

func TestClassifyTennis_DetectsDoublesWhenBothHaveSlash(t *testing.T) {
	assert.Equal(t, "Tennis Doubles", ClassifyTennis("Tennis", "A/B", "C/D"))
	assert.Equal(t, "Tennis", ClassifyTennis("Tennis", "A/B", "C"))
	assert.Equal(t, "Tennis", ClassifyTennis("Tennis", "A", "C"))
}

func TestClassifyTennis_PassesOtherSportsThrough(t *testing.T) {
	assert.Equal(t, "Football", ClassifyTennis("Football", "A/B", "C/D"))
}
