package tips

import (
	"math"
	"sort"
	"time"
)

const (
	// TimeWeightFloor is the weight of a tip at or beyond the lookback horizon.
	TimeWeightFloor = 0.3
	// MinOdds floors derived decimal odds.
	MinOdds = 1.01

	secondsPerYear = 365.25 * 24 * 3600
)

// Dataset is the column-oriented, read-only form of a tip list. Every
// slice has the same length.
type Dataset struct {
	Side       []Side
	Edge       []float64
	Confidence []float64
	Implied    []float64
	Odds       []float64
	Correct    []bool
	Week       []int32
	Time       []int64
	TimeWeight []float64

	Sharp     []float64
	Momentum  []float64
	Rest      []float64
	H2H       []float64
	Bayes     []float64
	EV        []float64
	Referee   []float64
	Lineup    []float64
	Liquidity []float64
	Entropy   []float64
}

// Len returns the number of tips.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Edge)
}

// Vectorize sorts recs by match time and converts them into parallel
// arrays. The time weight decays linearly from 1 at now to TimeWeightFloor
// at now-lookbackYears; older tips keep the floor weight.
func Vectorize(recs []Tip, now time.Time, lookbackYears float64) *Dataset {
	sorted := make([]Tip, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MatchTime.Before(sorted[j].MatchTime) })

	n := len(sorted)
	d := newDataset(n)
	horizon := lookbackYears * secondsPerYear
	for i, t := range sorted {
		d.Side[i] = t.Side
		d.Edge[i] = t.EdgePct
		d.Confidence[i] = t.Confidence
		d.Implied[i] = t.ImpliedProbability
		d.Odds[i] = math.Max(1/t.ImpliedProbability, MinOdds)
		d.Correct[i] = t.WasCorrect
		year, week := t.MatchTime.UTC().ISOWeek()
		d.Week[i] = int32(year*100 + week)
		d.Time[i] = t.MatchTime.Unix()
		d.TimeWeight[i] = timeWeight(now.Sub(t.MatchTime).Seconds(), horizon)

		s := t.Signals
		d.Sharp[i] = s.SharpBoost
		d.Momentum[i] = s.MomentumBoost
		d.Rest[i] = s.RestBoost
		d.H2H[i] = s.H2HWeight
		d.Bayes[i] = s.BayesConfidence
		d.EV[i] = s.EVSignal
		d.Referee[i] = s.RefereeRisk
		d.Lineup[i] = s.LineupRisk
		d.Liquidity[i] = s.Liquidity
		d.Entropy[i] = s.Entropy
	}
	return d
}

func timeWeight(age, horizon float64) float64 {
	if age <= 0 {
		return 1
	}
	if horizon <= 0 || age >= horizon {
		return TimeWeightFloor
	}
	return 1 - (1-TimeWeightFloor)*age/horizon
}

func newDataset(n int) *Dataset {
	return &Dataset{
		Side:       make([]Side, n),
		Edge:       make([]float64, n),
		Confidence: make([]float64, n),
		Implied:    make([]float64, n),
		Odds:       make([]float64, n),
		Correct:    make([]bool, n),
		Week:       make([]int32, n),
		Time:       make([]int64, n),
		TimeWeight: make([]float64, n),
		Sharp:      make([]float64, n),
		Momentum:   make([]float64, n),
		Rest:       make([]float64, n),
		H2H:        make([]float64, n),
		Bayes:      make([]float64, n),
		EV:         make([]float64, n),
		Referee:    make([]float64, n),
		Lineup:     make([]float64, n),
		Liquidity:  make([]float64, n),
		Entropy:    make([]float64, n),
	}
}

// Range returns the half-open window [i, j) sharing the parent's arrays.
func (d *Dataset) Range(i, j int) *Dataset {
	return &Dataset{
		Side:       d.Side[i:j],
		Edge:       d.Edge[i:j],
		Confidence: d.Confidence[i:j],
		Implied:    d.Implied[i:j],
		Odds:       d.Odds[i:j],
		Correct:    d.Correct[i:j],
		Week:       d.Week[i:j],
		Time:       d.Time[i:j],
		TimeWeight: d.TimeWeight[i:j],
		Sharp:      d.Sharp[i:j],
		Momentum:   d.Momentum[i:j],
		Rest:       d.Rest[i:j],
		H2H:        d.H2H[i:j],
		Bayes:      d.Bayes[i:j],
		EV:         d.EV[i:j],
		Referee:    d.Referee[i:j],
		Lineup:     d.Lineup[i:j],
		Liquidity:  d.Liquidity[i:j],
		Entropy:    d.Entropy[i:j],
	}
}

// SplitByTime cuts the dataset into a training window and a strictly later
// validation window holding frac of the tips.
func (d *Dataset) SplitByTime(frac float64) (train, val *Dataset) {
	n := d.Len()
	cut := n - int(math.Round(float64(n)*frac))
	if cut < 0 {
		cut = 0
	}
	return d.Range(0, cut), d.Range(cut, n)
}

// Fold is one expanding-window split: Train always precedes Val.
type Fold struct {
	Train, Val *Dataset
}

// ExpandingFolds cuts d into k+1 contiguous blocks; fold i trains on
// blocks [0..i] and validates on block i+1.
func (d *Dataset) ExpandingFolds(k int) []Fold {
	n := d.Len()
	if k < 1 || n < k+1 {
		return nil
	}
	block := n / (k + 1)
	folds := make([]Fold, k)
	for i := 0; i < k; i++ {
		cut := block * (i + 1)
		end := cut + block
		if i == k-1 {
			end = n
		}
		folds[i] = Fold{Train: d.Range(0, cut), Val: d.Range(cut, end)}
	}
	return folds
}
