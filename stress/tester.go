package stress

import (
	"log"
	"math/rand/v2"

	"github.com/gweber/quotico-sub000/fitness"
	"github.com/gweber/quotico-sub000/genome"
	"github.com/gweber/quotico-sub000/tips"
)

// verdicts
const (
	ReasonPassed                  = "passed"
	ReasonBootstrapFailed         = "bootstrap_failed"
	ReasonRuinExceeded            = "ruin_exceeded"
	ReasonRuinExceededAfterRescue = "ruin_exceeded_after_rescue"
	ReasonConfirmationFailed      = "confirmation_failed"
)

type Config struct {
	BootstrapPrefilter    int     `json:"bootstrap_prefilter"`
	BootstrapSamples      int     `json:"bootstrap_samples"`
	PrefilterProbPositive float64 `json:"prefilter_prob_positive"`
	MinProbPositive       float64 `json:"min_prob_positive"`
	MCPrefilter           int     `json:"mc_prefilter"`
	MCSims                int     `json:"mc_sims"`
	PrefilterPathBets     int     `json:"prefilter_path_bets"`
	EarlyCheckEvery       int     `json:"early_check_every"`
	RuinThreshold         float64 `json:"ruin_threshold"`
	RuinFloor             float64 `json:"ruin_floor"`
	RescueAttempts        int     `json:"rescue_attempts"`
	RescueStep            float64 `json:"rescue_step"`
	RescueMinImprovement  float64 `json:"rescue_min_improvement"`
}

func DefaultConfig() Config {
	return Config{
		BootstrapPrefilter:    200,
		BootstrapSamples:      1000,
		PrefilterProbPositive: 0.55,
		MinProbPositive:       0.6,
		MCPrefilter:           200,
		MCSims:                2000,
		PrefilterPathBets:     750,
		EarlyCheckEvery:       50,
		RuinThreshold:         0.15,
		RuinFloor:             0.5,
		RescueAttempts:        6,
		RescueStep:            0.75,
		RescueMinImprovement:  0.005,
	}
}

// RescueLog records the risk scaling applied to reach a pass.
type RescueLog struct {
	Attempts     int       `json:"attempts"`
	Scale        float64   `json:"scale"`
	FloorReached bool      `json:"safety_floor_reached"`
	Kelly        []float64 `json:"kelly_fraction"`
	MaxStake     []float64 `json:"max_stake"`
	Ruin         []float64 `json:"ruin_prob"`
}

// Result is the verdict for one genome. Genome is the possibly rescaled
// variant that was finally tested.
type Result struct {
	Passed     bool            `json:"passed"`
	Reason     string          `json:"reason"`
	Bets       int             `json:"bets"`
	Bootstrap  BootstrapStats  `json:"bootstrap"`
	MonteCarlo MonteCarloStats `json:"monte_carlo"`
	Rescue     *RescueLog      `json:"rescue,omitempty"`
	Genome     genome.Genome   `json:"genome"`
}

// Tester runs the staged stress pipeline. A Tester and its Cache belong to
// one worker; the dataset is shared read-only.
type Tester struct {
	Config Config
	Cache  *Cache
	Seed   uint64
}

// Run stress-tests g on ds. Degenerate inputs yield a failed result.
func (t *Tester) Run(g genome.Genome, s genome.Stage, ds *tips.Dataset) Result {
	cfg := t.Config
	cur := s.Clamp(g.Clone())
	res := Result{Genome: cur}

	pre := t.check(cur, ds, true)
	res.Bets, res.Bootstrap, res.MonteCarlo = pre.Bets, pre.Bootstrap, pre.MonteCarlo
	if pre.Skipped {
		res.Reason = ReasonBootstrapFailed
		return res
	}

	if pre.MonteCarlo.RuinProb > cfg.RuinThreshold {
		if cfg.RescueAttempts <= 0 {
			res.Reason = ReasonRuinExceeded
			return res
		}
		rescued, rl, last := t.rescue(cur, s, ds, pre.MonteCarlo.RuinProb)
		res.Rescue = rl
		res.Genome = rescued
		res.MonteCarlo = last.MonteCarlo
		if last.Skipped {
			res.Bets, res.Bootstrap = last.Bets, last.Bootstrap
			res.Reason = ReasonBootstrapFailed
			return res
		}
		if last.MonteCarlo.RuinProb > cfg.RuinThreshold {
			res.Reason = ReasonRuinExceededAfterRescue
			return res
		}
		cur = rescued
	}

	full := t.check(cur, ds, false)
	res.Bets, res.Bootstrap, res.MonteCarlo = full.Bets, full.Bootstrap, full.MonteCarlo
	ran := full.Bootstrap.Samples > 0 && full.MonteCarlo.Sims > 0
	if ran && full.Bets > 0 && full.Bootstrap.ProbPositive >= cfg.MinProbPositive && full.MonteCarlo.RuinProb <= cfg.RuinThreshold {
		res.Passed = true
		res.Reason = ReasonPassed
		return res
	}
	res.Reason = ReasonConfirmationFailed
	return res
}

// rescue shrinks kelly_fraction and max_stake by RescueStep until the
// prefilter ruin rate drops under the threshold, the improvement stalls,
// a risk gene hits its stage floor, or the attempts run out. A scaled
// variant whose bootstrap no longer holds ends the rescue with no ruin
// entry, since its Monte-Carlo never ran.
func (t *Tester) rescue(g genome.Genome, s genome.Stage, ds *tips.Dataset, ruin float64) (genome.Genome, *RescueLog, evaluation) {
	cfg := t.Config
	rl := &RescueLog{
		Scale:    1,
		Kelly:    []float64{g[genome.KellyFraction]},
		MaxStake: []float64{g[genome.MaxStake]},
		Ruin:     []float64{ruin},
	}
	cur := g.Clone()
	var last evaluation
	for rl.Attempts < cfg.RescueAttempts {
		next := cur.Clone()
		next[genome.KellyFraction] *= cfg.RescueStep
		next[genome.MaxStake] *= cfg.RescueStep
		s.Clamp(next)
		kMin, sMin := s.Genes[genome.KellyFraction].Min, s.Genes[genome.MaxStake].Min
		if next[genome.KellyFraction] <= kMin || next[genome.MaxStake] <= sMin {
			rl.FloorReached = true
		}

		rl.Attempts++
		rl.Scale *= cfg.RescueStep
		cur = next
		last = t.check(cur, ds, true)
		rl.Kelly = append(rl.Kelly, cur[genome.KellyFraction])
		rl.MaxStake = append(rl.MaxStake, cur[genome.MaxStake])
		if last.Skipped {
			log.Printf("warning: rescue attempt %d lost the bootstrap (prob_positive=%.3f)", rl.Attempts, last.Bootstrap.ProbPositive)
			return cur, rl, last
		}
		rl.Ruin = append(rl.Ruin, last.MonteCarlo.RuinProb)

		if last.MonteCarlo.RuinProb <= cfg.RuinThreshold || rl.FloorReached {
			break
		}
		if ruin-last.MonteCarlo.RuinProb < cfg.RescueMinImprovement {
			break
		}
		ruin = last.MonteCarlo.RuinProb
	}
	if last.MonteCarlo.RuinProb > cfg.RuinThreshold {
		log.Printf("warning: rescue stopped after %d attempts with ruin %.3f (floor=%v)", rl.Attempts, last.MonteCarlo.RuinProb, rl.FloorReached)
	}
	return cur, rl, last
}

// check runs one bootstrap + Monte-Carlo pass. failFast selects the cheap
// prefilter counts, truncated paths and early abort; otherwise the full
// confirmation counts run.
func (t *Tester) check(g genome.Genome, ds *tips.Dataset, failFast bool) evaluation {
	cfg := t.Config
	n := cfg.BootstrapSamples
	if failFast {
		n = cfg.BootstrapPrefilter
	}
	key := Key(g, n, failFast)
	if c, ok := t.Cache.get(key); ok {
		return c
	}
	rng := rand.New(rand.NewPCG(t.Seed, keyHash(key)))

	bets := fitness.Ledger(g, ds)
	c := evaluation{Bets: len(bets)}
	c.Bootstrap = Bootstrap(bets, n, rng)
	if failFast && (len(bets) == 0 || c.Bootstrap.ProbPositive < cfg.PrefilterProbPositive) {
		c.Skipped = true
		t.Cache.put(key, c)
		return c
	}
	opt := MonteCarloOptions{Sims: cfg.MCSims, RuinFloor: cfg.RuinFloor}
	if failFast {
		opt = MonteCarloOptions{
			Sims:       cfg.MCPrefilter,
			MaxBets:    cfg.PrefilterPathBets,
			RuinFloor:  cfg.RuinFloor,
			AbortAbove: 2 * cfg.RuinThreshold,
			CheckEvery: cfg.EarlyCheckEvery,
		}
	}
	c.MonteCarlo = MonteCarlo(bets, opt, rng)
	t.Cache.put(key, c)
	return c
}
