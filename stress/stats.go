package stress

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/gweber/quotico-sub000/fitness"
)

// BootstrapStats summarizes ROI over resampled bet sets.
type BootstrapStats struct {
	Samples      int     `json:"samples"`
	MeanROI      float64 `json:"mean_roi"`
	CILow        float64 `json:"ci_low"`
	CIHigh       float64 `json:"ci_high"`
	ProbPositive float64 `json:"prob_positive"`
}

// MonteCarloStats summarizes simulated bankroll paths over random
// orderings of the same bets.
type MonteCarloStats struct {
	Sims           int     `json:"sims"`
	BetsPerPath    int     `json:"bets_per_path"`
	RuinProb       float64 `json:"ruin_prob"`
	MedianDrawdown float64 `json:"median_drawdown"`
	P95Drawdown    float64 `json:"p95_drawdown"`
	MedianTerminal float64 `json:"median_terminal"`
	Aborted        bool    `json:"aborted,omitempty"`
}

// Bootstrap resamples bets with replacement n times and reports the
// distribution of total ROI.
func Bootstrap(bets []fitness.Bet, n int, rng *rand.Rand) BootstrapStats {
	st := BootstrapStats{Samples: n}
	if len(bets) == 0 || n <= 0 {
		return st
	}
	rois := make([]float64, n)
	positive := 0
	for s := range rois {
		var stake, profit float64
		for range bets {
			b := bets[rng.IntN(len(bets))]
			stake += b.Stake
			profit += b.Profit
		}
		rois[s] = profit / stake
		if rois[s] > 0 {
			positive++
		}
	}
	sort.Float64s(rois)
	st.MeanROI = stat.Mean(rois, nil)
	st.CILow = stat.Quantile(0.025, stat.Empirical, rois, nil)
	st.CIHigh = stat.Quantile(0.975, stat.Empirical, rois, nil)
	st.ProbPositive = float64(positive) / float64(n)
	return st
}

// MonteCarloOptions bounds one simulation.
type MonteCarloOptions struct {
	Sims int
	// MaxBets truncates every path; zero runs all bets.
	MaxBets int
	// RuinFloor is the fraction of the starting bankroll that counts as ruin.
	RuinFloor float64
	// AbortAbove stops the simulation once the running ruin rate exceeds
	// it, checked every CheckEvery paths. Zero disables the check.
	AbortAbove float64
	CheckEvery int
}

// MonteCarlo replays bets in random orders against a unit bankroll. Each
// bet moves the bankroll by profit/NominalBankroll of its current value,
// so sizing stays proportional as in fractional Kelly.
func MonteCarlo(bets []fitness.Bet, opt MonteCarloOptions, rng *rand.Rand) MonteCarloStats {
	st := MonteCarloStats{}
	if len(bets) == 0 || opt.Sims <= 0 {
		return st
	}
	steps := len(bets)
	if opt.MaxBets > 0 && opt.MaxBets < steps {
		steps = opt.MaxBets
	}
	st.BetsPerPath = steps

	returns := make([]float64, len(bets))
	for i, b := range bets {
		returns[i] = b.Profit / fitness.NominalBankroll
	}
	order := make([]int, len(bets))
	for i := range order {
		order[i] = i
	}
	drawdowns := make([]float64, 0, opt.Sims)
	terminal := make([]float64, 0, opt.Sims)
	ruined := 0
	for p := 0; p < opt.Sims; p++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		bank, peak, dd := 1.0, 1.0, 0.0
		for _, k := range order[:steps] {
			bank *= 1 + returns[k]
			if bank > peak {
				peak = bank
			}
			if d := (peak - bank) / peak; d > dd {
				dd = d
			}
			if bank < opt.RuinFloor || bank <= 0 {
				ruined++
				break
			}
		}
		drawdowns = append(drawdowns, math.Min(dd, 1))
		terminal = append(terminal, math.Max(bank, 0))

		done := p + 1
		if opt.AbortAbove > 0 && opt.CheckEvery > 0 && done%opt.CheckEvery == 0 && done < opt.Sims {
			if float64(ruined)/float64(done) > opt.AbortAbove {
				st.Aborted = true
				break
			}
		}
	}
	st.Sims = len(drawdowns)
	st.RuinProb = float64(ruined) / float64(st.Sims)
	sort.Float64s(drawdowns)
	sort.Float64s(terminal)
	st.MedianDrawdown = stat.Quantile(0.5, stat.Empirical, drawdowns, nil)
	st.P95Drawdown = stat.Quantile(0.95, stat.Empirical, drawdowns, nil)
	st.MedianTerminal = stat.Quantile(0.5, stat.Empirical, terminal, nil)
	return st
}
