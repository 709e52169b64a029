package genome

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func TestSchemaShape(t *testing.T) {
	require.Len(t, Names(), NumGenes)
	for i, g := range Schema() {
		assert.Less(t, g.Min, g.Max, g.Name)
		assert.Equal(t, i, Index(g.Name))
	}
	assert.Equal(t, -1, Index("nope"))
}

func TestRelaxedStrictlyContainsIdeal(t *testing.T) {
	ideal := Ideal(50)
	relaxed := Relax(ideal, 0.2, 2)
	assert.Equal(t, StageRelaxed, relaxed.Name)
	assert.Equal(t, 25, relaxed.MinBets)
	for i, g := range ideal.Genes {
		r := relaxed.Genes[i]
		assert.Less(t, r.Min, g.Min, g.Name)
		assert.Greater(t, r.Max, g.Max, g.Name)
	}
}

func TestOperatorsStayInBounds(t *testing.T) {
	rng := testRNG()
	for _, s := range []Stage{Ideal(30), Relax(Ideal(30), 0.2, 2)} {
		pop := make([]Genome, 40)
		for i := range pop {
			pop[i] = Random(s, rng)
			require.True(t, s.Contains(pop[i]), "init")
		}
		for i := 0; i < 500; i++ {
			a, b := pop[rng.IntN(len(pop))], pop[rng.IntN(len(pop))]
			child := Crossover(a, b, EpistaticPairs, 0.7, rng)
			require.True(t, s.Contains(child), "crossover")
			child = Mutate(child, s, 0.9, 2.0, rng)
			require.True(t, s.Contains(child), "mutation")
		}
	}
}

func TestCrossoverKeepsPairsTogether(t *testing.T) {
	rng := testRNG()
	s := Ideal(10)
	a, b := Random(s, rng), Random(s, rng)
	for i := 0; i < 200; i++ {
		child := Crossover(a, b, EpistaticPairs, 1, rng)
		for _, p := range EpistaticPairs {
			fromA := child[p[0]] == a[p[0]] && child[p[1]] == a[p[1]]
			fromB := child[p[0]] == b[p[0]] && child[p[1]] == b[p[1]]
			assert.True(t, fromA || fromB)
		}
		for j, v := range child {
			assert.True(t, v == a[j] || v == b[j])
		}
	}
}

func TestClampHandlesNaN(t *testing.T) {
	s := Ideal(10)
	g := s.Midpoint()
	g[KellyFraction] = 99
	g[MaxStake] = -4
	g[MinEdge] = math.NaN()
	s.Clamp(g)
	assert.True(t, s.Contains(g))
	assert.Equal(t, s.Genes[KellyFraction].Max, g[KellyFraction])
	assert.Equal(t, s.Genes[MaxStake].Min, g[MaxStake])
	assert.Equal(t, s.Genes[MinEdge].Mid(), g[MinEdge])
}

func TestTournamentPrefersFitter(t *testing.T) {
	rng := testRNG()
	fit := []float64{0, 0, 0, 10}
	hits := 0
	for i := 0; i < 1000; i++ {
		if Tournament(fit, 3, rng) == 3 {
			hits++
		}
	}
	assert.Greater(t, hits, 500)
}
