package pareto

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(i int, roi float64, bets int, ruin, dd float64, deployable bool) Candidate {
	return Candidate{
		Index:      i,
		Fitness:    roi,
		Objectives: Objectives{ROI: roi, Bets: bets, Ruin: ruin, MaxDrawdown: dd},
		Deployable: deployable,
	}
}

func TestDominates(t *testing.T) {
	a := Objectives{ROI: 0.1, Bets: 100, Ruin: 0.05, MaxDrawdown: 0.2}
	assert.False(t, Dominates(a, a))

	b := a
	b.Bets = 90
	assert.True(t, Dominates(a, b))
	assert.False(t, Dominates(b, a))

	c := a
	c.Ruin = 0.01
	c.ROI = 0.05
	assert.False(t, Dominates(a, c))
	assert.False(t, Dominates(c, a))
}

func TestFrontierIsNonDominated(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	cands := make([]Candidate, 60)
	for i := range cands {
		cands[i] = cand(i, rng.NormFloat64()*0.1, 30+rng.IntN(300), rng.Float64()*0.3, rng.Float64()*0.5, true)
	}
	front := Frontier(cands)
	require.NotEmpty(t, front)
	for _, f := range front {
		assert.Equal(t, 1, f.Rank)
		for _, c := range cands {
			assert.False(t, Dominates(c.Objectives, f.Objectives), "frontier member %d dominated by %d", f.Index, c.Index)
		}
	}

	fronts := Rank(cands)
	seen := 0
	for _, fr := range fronts {
		seen += len(fr)
	}
	assert.Equal(t, len(cands), seen)
}

func TestCrowdingBoundaries(t *testing.T) {
	front := []Candidate{
		cand(0, 0.30, 50, 0.10, 0.30, true),
		cand(1, 0.20, 100, 0.08, 0.25, true),
		cand(2, 0.19, 105, 0.079, 0.24, true),
		cand(3, 0.10, 200, 0.02, 0.10, true),
	}
	Crowding(front)
	assert.True(t, math.IsInf(front[0].Crowding, 1))
	assert.True(t, math.IsInf(front[3].Crowding, 1))
	assert.False(t, math.IsInf(front[1].Crowding, 1))
	assert.Greater(t, front[1].Crowding, 0.0)

	pair := []Candidate{cand(0, 0.1, 10, 0, 0, true), cand(1, 0.2, 5, 0, 0, true)}
	Crowding(pair)
	assert.True(t, math.IsInf(pair[0].Crowding, 1))
	assert.True(t, math.IsInf(pair[1].Crowding, 1))
}

func TestSelectPrefersDeployable(t *testing.T) {
	cands := []Candidate{
		cand(0, 0.40, 40, 0.30, 0.5, false),
		cand(1, 0.12, 150, 0.05, 0.2, true),
		cand(2, 0.08, 300, 0.04, 0.3, true),
		cand(3, 0.05, 120, 0.01, 0.1, true),
		cand(4, 0.04, 100, 0.02, 0.2, true),
	}
	sel := Select(cands, 3)
	require.NotNil(t, sel.Primary)
	assert.True(t, sel.Deployable)
	assert.False(t, sel.FallbackUsed)
	assert.Equal(t, 1, sel.Primary.Index)
	assert.Equal(t, LabelHighestROI, sel.Primary.Label)
	require.Len(t, sel.Alternatives, 2)
	assert.Equal(t, 2, sel.Alternatives[0].Index)
	assert.Equal(t, LabelHighestVolume, sel.Alternatives[0].Label)
	assert.Equal(t, 3, sel.Alternatives[1].Index)
	assert.Equal(t, LabelLowestRuin, sel.Alternatives[1].Label)
	for _, f := range sel.Frontier {
		assert.NotEqual(t, 0, f.Index)
		assert.NotEqual(t, 4, f.Index)
	}
}

func TestSelectShadowWhenNothingDeployable(t *testing.T) {
	cands := []Candidate{
		cand(0, 0.02, 40, 0.30, 0.5, false),
		cand(1, 0.09, 60, 0.25, 0.4, false),
	}
	sel := Select(cands, 3)
	require.NotNil(t, sel.Primary)
	assert.False(t, sel.Deployable)
	assert.Equal(t, 1, sel.Primary.Index)
	assert.Len(t, sel.Alternatives, 0)
}

func TestSelectFallsBackToFitness(t *testing.T) {
	cands := []Candidate{
		cand(0, math.NaN(), 10, 0.1, 0.1, false),
		cand(1, math.NaN(), 20, 0.1, 0.1, false),
	}
	cands[0].Fitness = 0.1
	cands[1].Fitness = 0.3
	sel := Select(cands, 3)
	require.NotNil(t, sel.Primary)
	assert.True(t, sel.FallbackUsed)
	assert.Equal(t, 1, sel.Primary.Index)
	assert.Len(t, sel.Alternatives, 1)
}

func TestSelectEmpty(t *testing.T) {
	sel := Select(nil, 3)
	assert.Nil(t, sel.Primary)
}
