package stress

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gweber/quotico-sub000/fitness"
	"github.com/gweber/quotico-sub000/genome"
	"github.com/gweber/quotico-sub000/tips"
)

// fixed builds n home tips at one price, winning whenever won(i) holds.
func fixed(n int, implied, conf float64, won func(int) bool) *tips.Dataset {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := make([]tips.Tip, n)
	for i := range recs {
		recs[i] = tips.Tip{
			Side:               tips.Home,
			EdgePct:            (conf/implied - 1) * 100,
			Confidence:         conf,
			ImpliedProbability: implied,
			WasCorrect:         won(i),
			MatchTime:          start.Add(time.Duration(i) * 12 * time.Hour),
		}
	}
	return tips.Vectorize(recs, recs[n-1].MatchTime, 3)
}

func safeData() *tips.Dataset {
	return fixed(600, 0.5, 0.7, func(i int) bool { return i%20 < 13 })
}

func riskyData() *tips.Dataset {
	return fixed(1000, 0.2, 0.9, func(i int) bool { return i%50 < 11 })
}

func baseGenome(s genome.Stage) genome.Genome {
	g := s.Midpoint()
	g[genome.MinEdge] = s.Genes[genome.MinEdge].Min
	g[genome.MinConfidence] = s.Genes[genome.MinConfidence].Min
	return g
}

func newTester() *Tester {
	return &Tester{Config: DefaultConfig(), Cache: NewCache(), Seed: 99}
}

func TestBootstrapOnWinningBets(t *testing.T) {
	bets := []fitness.Bet{{Stake: 10, Profit: 9.9}, {Stake: 10, Profit: -10.1}, {Stake: 10, Profit: 9.9}, {Stake: 10, Profit: 9.9}}
	st := Bootstrap(bets, 500, rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, 500, st.Samples)
	assert.LessOrEqual(t, st.CILow, st.MeanROI)
	assert.LessOrEqual(t, st.MeanROI, st.CIHigh)
	assert.Greater(t, st.ProbPositive, 0.6)

	empty := Bootstrap(nil, 500, rand.New(rand.NewPCG(1, 2)))
	assert.Zero(t, empty.ProbPositive)
}

func TestMonteCarloExtremes(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	losers := make([]fitness.Bet, 100)
	winners := make([]fitness.Bet, 100)
	for i := range losers {
		losers[i] = fitness.Bet{Stake: 50, Profit: -50.5}
		winners[i] = fitness.Bet{Stake: 10, Profit: 9.9, Won: true}
	}
	st := MonteCarlo(losers, MonteCarloOptions{Sims: 100, RuinFloor: 0.5}, rng)
	assert.Equal(t, 1.0, st.RuinProb)
	assert.Greater(t, st.MedianDrawdown, 0.49)

	st = MonteCarlo(winners, MonteCarloOptions{Sims: 100, RuinFloor: 0.5}, rng)
	assert.Zero(t, st.RuinProb)
	assert.Zero(t, st.P95Drawdown)
	assert.Greater(t, st.MedianTerminal, 1.0)
}

func TestMonteCarloEarlyAbort(t *testing.T) {
	losers := make([]fitness.Bet, 200)
	for i := range losers {
		losers[i] = fitness.Bet{Stake: 50, Profit: -50.5}
	}
	st := MonteCarlo(losers, MonteCarloOptions{
		Sims: 2000, MaxBets: 750, RuinFloor: 0.5, AbortAbove: 0.3, CheckEvery: 50,
	}, rand.New(rand.NewPCG(5, 6)))
	assert.True(t, st.Aborted)
	assert.Equal(t, 50, st.Sims)
	assert.Equal(t, 200, st.BetsPerPath)
}

func TestZeroBetGenomeFailsBootstrap(t *testing.T) {
	s := genome.Ideal(30)
	g := baseGenome(s)
	g[genome.MinConfidence] = s.Genes[genome.MinConfidence].Max

	res := newTester().Run(g, s, safeData())
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonBootstrapFailed, res.Reason)
	assert.Zero(t, res.Bets)
	assert.Nil(t, res.Rescue)
}

func TestSafeGenomePasses(t *testing.T) {
	s := genome.Ideal(30)
	g := baseGenome(s)
	g[genome.MaxStake] = s.Genes[genome.MaxStake].Min

	res := newTester().Run(g, s, safeData())
	require.True(t, res.Passed, res.Reason)
	assert.Equal(t, ReasonPassed, res.Reason)
	assert.Equal(t, 1000, res.Bootstrap.Samples)
	assert.Equal(t, 2000, res.MonteCarlo.Sims)
	assert.GreaterOrEqual(t, res.Bootstrap.ProbPositive, 0.6)
	assert.LessOrEqual(t, res.MonteCarlo.RuinProb, 0.15)
	assert.Equal(t, g, res.Genome)
}

func TestRescueNeverPassesSilently(t *testing.T) {
	s := genome.Ideal(30)
	g := baseGenome(s)
	g[genome.KellyFraction] = s.Genes[genome.KellyFraction].Max
	g[genome.MaxStake] = s.Genes[genome.MaxStake].Max

	tester := newTester()
	res := tester.Run(g, s, riskyData())
	require.NotNil(t, res.Rescue)
	rl := res.Rescue

	assert.LessOrEqual(t, rl.Attempts, tester.Config.RescueAttempts)
	require.Len(t, rl.Kelly, rl.Attempts+1)
	for i := 1; i < len(rl.Kelly); i++ {
		assert.LessOrEqual(t, rl.Kelly[i], rl.Kelly[i-1])
		assert.LessOrEqual(t, rl.MaxStake[i], rl.MaxStake[i-1])
	}
	assert.True(t, s.Contains(res.Genome))

	if res.Passed {
		assert.LessOrEqual(t, res.MonteCarlo.RuinProb, tester.Config.RuinThreshold)
	}
	final := rl.Ruin[len(rl.Ruin)-1]
	assert.True(t, final <= tester.Config.RuinThreshold || rl.FloorReached || !res.Passed)
	if final > tester.Config.RuinThreshold {
		assert.Contains(t, []string{ReasonRuinExceededAfterRescue, ReasonBootstrapFailed}, res.Reason)
	}
}

// capped builds a ledger where the big-edge tips stake at the fixed 5%
// bankroll cap and always lose, while thin-edge tips stake in proportion to
// kelly_fraction and always win. Shrinking kelly shifts weight onto the
// losers until the ROI turns negative.
func capped() *tips.Dataset {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := make([]tips.Tip, 500)
	for i := range recs {
		conf, won := 0.54, true
		if i%5 < 2 {
			conf, won = 0.99, false
		}
		recs[i] = tips.Tip{
			Side:               tips.Home,
			EdgePct:            (conf/0.5 - 1) * 100,
			Confidence:         conf,
			ImpliedProbability: 0.5,
			WasCorrect:         won,
			MatchTime:          start.Add(time.Duration(i) * 12 * time.Hour),
		}
	}
	return tips.Vectorize(recs, recs[len(recs)-1].MatchTime, 3)
}

func TestRescueThatLosesBootstrapFails(t *testing.T) {
	s := genome.Ideal(30)
	s.Genes[genome.KellyFraction].Max = 1
	s.Genes[genome.MaxStake].Max = 200
	g := baseGenome(s)
	g[genome.HomeBias] = 1
	g[genome.VolatilityBuffer] = 0
	g[genome.KellyFraction] = 1
	g[genome.MaxStake] = 200

	tester := newTester()
	tester.Config.RuinThreshold = 0.01
	tester.Config.RuinFloor = 0.8
	res := tester.Run(g, s, capped())

	assert.False(t, res.Passed)
	assert.Equal(t, ReasonBootstrapFailed, res.Reason)
	require.NotNil(t, res.Rescue)
	assert.Equal(t, 1, res.Rescue.Attempts)
	assert.Len(t, res.Rescue.Kelly, 2)
	// only the unscaled genome reached Monte-Carlo
	require.Len(t, res.Rescue.Ruin, 1)
	assert.Greater(t, res.Rescue.Ruin[0], 0.01)
	assert.Less(t, res.Bootstrap.ProbPositive, tester.Config.PrefilterProbPositive)
	assert.Equal(t, 0.75, res.Genome[genome.KellyFraction])
}

func TestNoSimulationsNeverPass(t *testing.T) {
	s := genome.Ideal(30)
	g := baseGenome(s)
	g[genome.KellyFraction] = s.Genes[genome.KellyFraction].Max
	g[genome.MaxStake] = s.Genes[genome.MaxStake].Max

	tester := newTester()
	tester.Config.MCSims = 0
	tester.Config.MCPrefilter = 0
	res := tester.Run(g, s, riskyData())
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonConfirmationFailed, res.Reason)
	assert.Zero(t, res.MonteCarlo.Sims)
}

func TestRuinWithoutRescue(t *testing.T) {
	s := genome.Ideal(30)
	g := baseGenome(s)
	g[genome.KellyFraction] = s.Genes[genome.KellyFraction].Max
	g[genome.MaxStake] = s.Genes[genome.MaxStake].Max

	tester := newTester()
	tester.Config.RescueAttempts = 0
	res := tester.Run(g, s, riskyData())
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonRuinExceeded, res.Reason)
}

func TestRunIsDeterministicAndCached(t *testing.T) {
	s := genome.Ideal(30)
	g := baseGenome(s)
	g[genome.MaxStake] = s.Genes[genome.MaxStake].Max
	ds := riskyData()

	a := newTester()
	first := a.Run(g, s, ds)
	n := a.Cache.Len()
	hitsBefore, _ := a.Cache.Stats()
	second := a.Run(g, s, ds)
	hitsAfter, _ := a.Cache.Stats()

	assert.Equal(t, first, second)
	assert.Equal(t, n, a.Cache.Len())
	assert.Greater(t, hitsAfter, hitsBefore)

	b := newTester()
	assert.Equal(t, first, b.Run(g, s, ds))
}

func TestKeyRounding(t *testing.T) {
	g := genome.Ideal(30).Midpoint()
	h := g.Clone()
	h[0] += 1e-9
	assert.Equal(t, Key(g, 200, true), Key(h, 200, true))
	h[0] += 1e-3
	assert.NotEqual(t, Key(g, 200, true), Key(h, 200, true))
	assert.NotEqual(t, Key(g, 200, true), Key(g, 200, false))
	assert.NotEqual(t, Key(g, 200, true), Key(g, 1000, true))
}
