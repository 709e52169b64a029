package checkpoint

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gweber/quotico-sub000/genome"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	s := genome.Ideal(30)
	src := rand.NewPCG(5, 9)
	rng := rand.New(src)
	pop := make([][]float64, 8)
	for i := range pop {
		pop[i] = genome.Random(s, rng)
	}
	state, err := src.MarshalBinary()
	require.NoError(t, err)

	snap := &Snapshot{
		SchemaVersion:  genome.SchemaVersion,
		GeneNames:      genome.Names(),
		Stage:          s.Name,
		Generation:     10,
		Population:     pop,
		FitnessHistory: []float64{-0.5, -0.1, 0.0123456789012345},
		RNG:            state,
		Best:           0.0123456789012345,
		BestGenome:     pop[3],
		Stagnation:     2,
		Seed:           5,
	}
	require.NoError(t, store.Save("EPL/1x2", snap))

	got, err := store.Load("EPL/1x2")
	require.NoError(t, err)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, pop, got.Population)
	assert.Equal(t, snap.FitnessHistory, got.FitnessHistory)
	assert.Equal(t, 10, got.Generation)
	assert.Equal(t, 2, got.Stagnation)
	assert.False(t, Migrate(got, genome.Names(), s))

	restored := rand.NewPCG(0, 0)
	require.NoError(t, restored.UnmarshalBinary(got.RNG))
	for i := 0; i < 16; i++ {
		assert.Equal(t, src.Uint64(), restored.Uint64())
	}

	entries, err := os.ReadDir(store.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "EPL_1x2.json", entries[0].Name())
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	_, err := store.Load("nope")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir, "bad.json"), []byte("{not json"), 0644))
	_, err = store.Load("bad")
	assert.True(t, errors.Is(err, ErrIncompatible))

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir, "empty.json"), []byte(`{"version":1}`), 0644))
	_, err = store.Load("empty")
	assert.True(t, errors.Is(err, ErrIncompatible))

	assert.NoError(t, store.Remove("nope"))
}

func TestMigratePadsMissingGenes(t *testing.T) {
	s := genome.Ideal(30)
	names := genome.Names()
	old := append([]string{"retired_gene"}, names[:genome.NumGenes-1]...)
	row := make([]float64, len(old))
	row[0] = 123
	for i := 1; i < len(old); i++ {
		row[i] = s.Genes[i-1].Min
	}
	row[1+genome.KellyFraction] = 99

	snap := &Snapshot{SchemaVersion: genome.SchemaVersion - 1, GeneNames: old, Population: [][]float64{row}}
	require.True(t, Migrate(snap, names, s))

	g := snap.Population[0]
	require.Len(t, g, genome.NumGenes)
	assert.True(t, s.Contains(g))
	assert.Equal(t, s.Genes[genome.MinEdge].Min, g[genome.MinEdge])
	assert.Equal(t, s.Genes[genome.KellyFraction].Max, g[genome.KellyFraction])
	assert.Equal(t, s.Genes[genome.ComplexityPenalty].Mid(), g[genome.ComplexityPenalty])
	assert.Equal(t, genome.SchemaVersion, snap.SchemaVersion)
	assert.Equal(t, names, snap.GeneNames)
}
