package fitness

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gweber/quotico-sub000/genome"
	"github.com/gweber/quotico-sub000/tips"
)

// betting limits
const (
	NominalBankroll  = 1000.0
	MaxStakeFraction = 0.05
	FrictionRate     = 0.01
	MaxConfidence    = 0.99
	minNetOdds       = 0.01
)

// fitness weights
const (
	weightROI         = 0.5
	weightQuality     = 0.3
	weightCalibration = 0.2
	softPenalty       = 0.5
	buckets           = 10
)

// Params carries what a fitness evaluation needs besides the genome.
type Params struct {
	Stage   genome.Stage
	MinBets int
}

// Metrics summarizes one genome over one dataset.
type Metrics struct {
	Fitness      float64 `json:"fitness"`
	ROI          float64 `json:"roi"`
	WeightedROI  float64 `json:"weighted_roi"`
	QualityROI   float64 `json:"quality_roi"`
	Calibration  float64 `json:"calibration"`
	Complexity   float64 `json:"complexity_penalty"`
	SharpeWeekly float64 `json:"sharpe_weekly"`
	WinRate      float64 `json:"win_rate"`
	Bets         int     `json:"bets"`
	TotalStake   float64 `json:"total_stake"`
	TotalProfit  float64 `json:"total_profit"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

// Bet is one activated tip with its sizing and outcome.
type Bet struct {
	Index  int
	Stake  float64
	Profit float64
	Won    bool
}

// Decisions holds one row per genome and one column per tip. Stake is
// zero wherever the genome does not bet.
type Decisions struct {
	Conf   *mat.Dense
	Stake  *mat.Dense
	Profit *mat.Dense
}

// Decide evaluates every genome row of pop against every tip of ds at once.
// The boost terms are a single weights x signals product; gates and sizing
// are applied element-wise over the resulting matrix. An empty population
// or dataset yields empty Decisions.
func Decide(pop *mat.Dense, ds *tips.Dataset) Decisions {
	n, _ := pop.Dims()
	t := ds.Len()
	if n == 0 || t == 0 {
		return Decisions{}
	}
	signals := mat.NewDense(4, t, nil)
	signals.SetRow(0, ds.Sharp)
	signals.SetRow(1, ds.Momentum)
	signals.SetRow(2, ds.Rest)
	signals.SetRow(3, ds.H2H)

	conf := new(mat.Dense)
	conf.Mul(pop.Slice(0, n, genome.SharpWeight, genome.H2HWeight+1), signals)
	conf.Apply(func(i, j int, boost float64) float64 {
		return adjust(pop.RawRowView(i), ds, j, ds.Confidence[j]+boost)
	}, conf)

	stake := new(mat.Dense)
	stake.Apply(func(i, j int, c float64) float64 {
		return stakeFor(pop.RawRowView(i), ds, j, c)
	}, conf)

	ret := make([]float64, t)
	for j := range ret {
		ret[j] = profit(1, ds.Odds[j], ds.Correct[j])
	}
	pr := new(mat.Dense)
	pr.Apply(func(_, j int, s float64) float64 { return s * ret[j] }, stake)
	return Decisions{Conf: conf, Stake: stake, Profit: pr}
}

// adjust applies venue bias, blends, risk penalties and the clip to the
// boosted confidence c of tip j.
func adjust(g genome.Genome, ds *tips.Dataset, j int, c float64) float64 {
	switch ds.Side[j] {
	case tips.Home:
		c *= g[genome.HomeBias]
	case tips.Draw:
		c *= g[genome.DrawBias]
	case tips.Away:
		c *= g[genome.AwayBias]
	}
	if b := ds.Bayes[j]; b > 0 {
		t := g[genome.BayesTrust]
		c = (1-t)*c + t*b
	}
	if ev := ds.EV[j]; ev != 0 {
		t := g[genome.EVTrust]
		c = (1-t)*c + t*ds.Implied[j]*(1+ev)
	}
	c -= g[genome.RefereePenalty]*ds.Referee[j] +
		g[genome.RotationPenalty]*ds.Lineup[j] +
		g[genome.VariancePenalty]*ds.Entropy[j]
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(MaxConfidence, c))
}

// stakeFor sizes the bet on tip j at adjusted confidence c, or returns 0
// when a gate rejects the tip or the buffered Kelly edge is gone.
func stakeFor(g genome.Genome, ds *tips.Dataset, j int, c float64) float64 {
	if ds.Edge[j] < g[genome.MinEdge] || c < g[genome.MinConfidence] {
		return 0
	}
	if ds.Side[j] == tips.Draw && c < g[genome.DrawThreshold] {
		return 0
	}
	if ds.Lineup[j] > g[genome.LineupGate] {
		return 0
	}
	if ev := ds.EV[j]; ev != 0 && ev < g[genome.EVFloor] {
		return 0
	}
	edge := math.Max(c-ds.Implied[j]-g[genome.VolatilityBuffer], 0)
	stake := g[genome.KellyFraction] * edge / math.Max(ds.Odds[j]-1, minNetOdds) * NominalBankroll
	if liq := ds.Liquidity[j]; liq > 0 {
		stake *= math.Max(0, 1-g[genome.LiquidityTrust]*(1-math.Min(liq, 1)))
	}
	stake *= math.Max(0, 1-g[genome.EntropyTrust]*clip01(ds.Entropy[j]))
	stake = math.Min(stake, math.Min(g[genome.MaxStake], MaxStakeFraction*NominalBankroll))
	if !(stake > 0) {
		return 0
	}
	return stake
}

// profit of a settled bet after friction
func profit(stake, odds float64, won bool) float64 {
	p := -stake
	if won {
		p = stake * (odds - 1)
	}
	return p - FrictionRate*stake
}

func single(g genome.Genome) *mat.Dense {
	return mat.NewDense(1, len(g), g)
}

// Ledger returns every bet the genome places on ds, in dataset order.
func Ledger(g genome.Genome, ds *tips.Dataset) []Bet {
	d := Decide(single(g), ds)
	if d.Stake == nil {
		return nil
	}
	var bets []Bet
	stakes, profits := d.Stake.RawRowView(0), d.Profit.RawRowView(0)
	for j, s := range stakes {
		if s > 0 {
			bets = append(bets, Bet{Index: j, Stake: s, Profit: profits[j], Won: ds.Correct[j]})
		}
	}
	return bets
}

type accumulator struct {
	bets                 int
	wins                 int
	stake, profit        float64
	wStake, wProfit      float64
	qStake, qProfit      float64
	bucketN              [buckets]int
	bucketConf, bucketOK [buckets]float64
}

func (a *accumulator) count(c float64, won bool) {
	a.bets++
	if won {
		a.wins++
	}
	b := int(c * buckets)
	if b >= buckets {
		b = buckets - 1
	}
	a.bucketN[b]++
	a.bucketConf[b] += c
	if won {
		a.bucketOK[b]++
	}
}

func quality(ev float64) float64 {
	return math.Max(0.5, math.Min(1.5, 1+ev))
}

// calibration is 1 - expected calibration error over confidence buckets.
func (a *accumulator) calibration() float64 {
	if a.bets == 0 {
		return 0
	}
	var ece float64
	for b := 0; b < buckets; b++ {
		n := float64(a.bucketN[b])
		if n == 0 {
			continue
		}
		ece += n / float64(a.bets) * math.Abs(a.bucketOK[b]/n-a.bucketConf[b]/n)
	}
	return 1 - ece
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// Complexity is the genome's own complexity weight times the dispersion of
// its normalized gene positions.
func Complexity(g genome.Genome, s genome.Stage) float64 {
	if len(s.Genes) != len(g) {
		return 0
	}
	d := stat.PopStdDev(s.Normalize(g), nil)
	return math.Max(0, g[genome.ComplexityPenalty]) * d
}

func (a *accumulator) fitness(complexity float64, minBets int) float64 {
	scale := math.Max(float64(minBets)*0.1, 1)
	shortfall := softPenalty / (1 + math.Exp((float64(a.bets)-float64(minBets))/scale))
	f := weightROI*ratio(a.wProfit, a.wStake) +
		weightQuality*ratio(a.qProfit, a.qStake) +
		weightCalibration*a.calibration() -
		complexity - shortfall
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return -1
	}
	return f
}

// chunkTips bounds the width of one decision block.
const chunkTips = 4096

// accumulate folds one decision block into accs, one per genome row. Stake
// and profit sums are a product against the per-tip weight columns; only
// the bet count and calibration buckets walk the rows.
func accumulate(d Decisions, ds *tips.Dataset, accs []accumulator) {
	if d.Stake == nil {
		return
	}
	t := ds.Len()
	w := mat.NewDense(t, 3, nil)
	for j := 0; j < t; j++ {
		tw := ds.TimeWeight[j]
		w.SetRow(j, []float64{1, tw, tw * quality(ds.EV[j])})
	}
	var sums, gains mat.Dense
	sums.Mul(d.Stake, w)
	gains.Mul(d.Profit, w)
	for i := range accs {
		a := &accs[i]
		a.stake += sums.At(i, 0)
		a.wStake += sums.At(i, 1)
		a.qStake += sums.At(i, 2)
		a.profit += gains.At(i, 0)
		a.wProfit += gains.At(i, 1)
		a.qProfit += gains.At(i, 2)
		conf := d.Conf.RawRowView(i)
		for j, s := range d.Stake.RawRowView(i) {
			if s > 0 {
				a.count(conf[j], ds.Correct[j])
			}
		}
	}
}

func scan(pop *mat.Dense, ds *tips.Dataset) []accumulator {
	n, _ := pop.Dims()
	accs := make([]accumulator, n)
	for lo := 0; lo < ds.Len(); lo += chunkTips {
		part := ds.Range(lo, min(lo+chunkTips, ds.Len()))
		accumulate(Decide(pop, part), part, accs)
	}
	return accs
}

// Score returns the fitness of a single genome.
func Score(g genome.Genome, ds *tips.Dataset, p Params) float64 {
	return EvaluatePopulation(single(g), ds, p)[0]
}

// EvaluatePopulation scores every row of pop against ds.
func EvaluatePopulation(pop *mat.Dense, ds *tips.Dataset, p Params) []float64 {
	accs := scan(pop, ds)
	out := make([]float64, len(accs))
	for r := range accs {
		out[r] = accs[r].fitness(Complexity(genome.Genome(pop.RawRowView(r)), p.Stage), p.MinBets)
	}
	return out
}

// Evaluate computes the full metric set, including chronological drawdown
// and the weekly Sharpe-like ratio.
func Evaluate(g genome.Genome, ds *tips.Dataset, p Params) Metrics {
	a := scan(single(g), ds)[0]
	weekProfit := make(map[int32]float64)
	weekStake := make(map[int32]float64)
	bank, peak, maxDD := NominalBankroll, NominalBankroll, 0.0
	for _, b := range Ledger(g, ds) {
		weekProfit[ds.Week[b.Index]] += b.Profit
		weekStake[ds.Week[b.Index]] += b.Stake
		bank += b.Profit
		if bank > peak {
			peak = bank
		}
		if dd := (peak - bank) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	complexity := Complexity(g, p.Stage)
	m := Metrics{
		Fitness:     a.fitness(complexity, p.MinBets),
		ROI:         ratio(a.profit, a.stake),
		WeightedROI: ratio(a.wProfit, a.wStake),
		QualityROI:  ratio(a.qProfit, a.qStake),
		Calibration: a.calibration(),
		Complexity:  complexity,
		Bets:        a.bets,
		TotalStake:  a.stake,
		TotalProfit: a.profit,
		MaxDrawdown: maxDD,
	}
	if a.bets > 0 {
		m.WinRate = float64(a.wins) / float64(a.bets)
	}
	m.SharpeWeekly = weeklySharpe(weekProfit, weekStake)
	return m
}

func weeklySharpe(profit, stake map[int32]float64) float64 {
	if len(profit) < 2 {
		return 0
	}
	weeks := make([]int32, 0, len(profit))
	for w := range profit {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i] < weeks[j] })
	rets := make([]float64, len(weeks))
	for i, w := range weeks {
		rets[i] = ratio(profit[w], stake[w])
	}
	mean, sd := stat.MeanStdDev(rets, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return mean / sd
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
