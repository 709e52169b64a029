package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gweber/quotico-sub000/evolve"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "evolver.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[run]
population = 30
mode = "deep"
dry_run = true

[deep]
folds = 3

[stress]
mc_sims = 500

[input]
file = "tips.json"
market = "EPL/1x2"

[output]
file = "out/{market}.json"
`)
	st, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30, st.Run.Population)
	assert.Equal(t, evolve.ModeDeep, st.Run.Mode)
	assert.True(t, st.Run.DryRun)
	assert.Equal(t, 3, st.Run.Folds)
	assert.Equal(t, 500, st.Run.Stress.MCSims)
	assert.Equal(t, "tips.json", st.InputFile)
	assert.Equal(t, "EPL/1x2", st.InputMarket)
	assert.Equal(t, "out/{market}.json", st.OutputFile)

	d := evolve.DefaultConfig()
	assert.Equal(t, d.Generations, st.Run.Generations)
	assert.Equal(t, d.Pessimism, st.Run.Pessimism)
	assert.Equal(t, d.Stress.RuinThreshold, st.Run.Stress.RuinThreshold)
	assert.Equal(t, "strategies", st.RedisStream)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "[run]\nseed = 1\n")
	t.Setenv("EVOLVER_RUN_SEED", "99")
	st, err := loadConfig(path)
	require.NoError(t, err)
	assert.EqualValues(t, 99, st.Run.Seed)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "[run]\nmode = \"turbo\"\n"))
	var re *evolve.RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, evolve.KindInvalidConfig, re.Kind)
}

type countObserver struct{ gens, done int }

func (c *countObserver) Generation(evolve.Progress)      { c.gens++ }
func (c *countObserver) Finished(*evolve.StrategyRecord) { c.done++ }

func TestObserversFanOut(t *testing.T) {
	a, b := &countObserver{}, &countObserver{}
	o := observers{a, b}
	o.Generation(evolve.Progress{})
	o.Finished(&evolve.StrategyRecord{})
	assert.Equal(t, 1, a.gens)
	assert.Equal(t, 1, b.done)
}

func TestReportSkipsDryRunAndCancelled(t *testing.T) {
	dir := t.TempDir()
	st := &settings{OutputFile: filepath.Join(dir, "{market}.json")}
	sink, err := openSinks(st)
	require.NoError(t, err)

	results := map[string]evolve.MarketResult{
		"a": {Market: "a", Record: &evolve.StrategyRecord{RunID: "1", Market: "a", Status: evolve.StatusSuccess}},
		"b": {Market: "b", Record: &evolve.StrategyRecord{RunID: "2", Market: "b", Status: evolve.StatusCancelled}},
		"c": {Market: "c", Record: &evolve.StrategyRecord{RunID: "3", Market: "c", Status: evolve.StatusInsufficientData},
			Err: &evolve.RunError{Kind: evolve.KindInsufficientData}},
	}
	assert.False(t, report(st, results, sink))
	assert.FileExists(t, filepath.Join(dir, "a.json"))
	assert.NoFileExists(t, filepath.Join(dir, "b.json"))
	assert.FileExists(t, filepath.Join(dir, "c.json"))

	st.Run.DryRun = true
	require.NoError(t, os.Remove(filepath.Join(dir, "a.json")))
	assert.False(t, report(st, results, sink))
	assert.NoFileExists(t, filepath.Join(dir, "a.json"))

	results["d"] = evolve.MarketResult{Market: "d", Err: errors.New("boom")}
	assert.True(t, report(st, results, sink))
}
