package tips

import (
	"math"
	"math/rand/v2"
	"time"
)

// SynthConfig describes a generated dataset. Every side carries the
// bookmaker margin; EdgeSide additionally gets a true probability Edge
// above its implied probability.
type SynthConfig struct {
	N           int
	Seed        uint64
	Market      string
	Start       time.Time
	Spacing     time.Duration
	HouseMargin float64
	EdgeSide    Side
	Edge        float64
	Noise       float64
}

// Synthetic generates resolved tips for demos and tests.
func Synthetic(cfg SynthConfig) []Tip {
	if cfg.Spacing == 0 {
		cfg.Spacing = 12 * time.Hour
	}
	if cfg.Noise == 0 {
		cfg.Noise = 0.03
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	out := make([]Tip, cfg.N)
	for i := range out {
		var side Side
		var implied float64
		switch r := rng.Float64(); {
		case r < 0.45:
			side, implied = Home, 0.35+0.3*rng.Float64()
		case r < 0.70:
			side, implied = Draw, 0.22+0.1*rng.Float64()
		default:
			side, implied = Away, 0.2+0.25*rng.Float64()
		}
		truth := implied / (1 + cfg.HouseMargin)
		if side == cfg.EdgeSide && cfg.Edge != 0 {
			truth = implied * (1 + cfg.Edge)
		}
		truth = math.Min(truth, 0.95)
		conf := math.Max(0.01, math.Min(0.99, truth+rng.NormFloat64()*cfg.Noise))
		out[i] = Tip{
			Market:             cfg.Market,
			Side:               side,
			EdgePct:            (conf/implied - 1) * 100,
			Confidence:         conf,
			ImpliedProbability: implied,
			WasCorrect:         rng.Float64() < truth,
			MatchTime:          cfg.Start.Add(time.Duration(i) * cfg.Spacing),
			Signals: Signals{
				SharpBoost:    rng.NormFloat64() * 0.02,
				MomentumBoost: rng.NormFloat64() * 0.02,
				RestBoost:     rng.NormFloat64() * 0.01,
				H2HWeight:     rng.NormFloat64() * 0.01,
				RefereeRisk:   rng.Float64() * 0.2,
				LineupRisk:    rng.Float64() * 0.5,
				Liquidity:     0.5 + 0.5*rng.Float64(),
				Entropy:       rng.Float64() * 0.3,
			},
		}
	}
	return out
}
