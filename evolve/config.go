package evolve

import (
	"fmt"
	"time"

	"github.com/gweber/quotico-sub000/stress"
)

// search modes
const (
	ModeQuick = "quick"
	ModeDeep  = "deep"
)

// SurrogateConfig controls the learned fitness pre-screen.
type SurrogateConfig struct {
	Enabled      bool `json:"enabled"`
	Oversample   int  `json:"oversample"`
	RetrainEvery int  `json:"retrain_every"`
}

// Config is the validated form of one run's settings.
type Config struct {
	Market             string  `json:"market"`
	Population         int     `json:"population"`
	Generations        int     `json:"generations"`
	Seed               uint64  `json:"seed"`
	LookbackYears      float64 `json:"lookback_years"`
	Mode               string  `json:"mode"`
	Workers            int     `json:"workers"`
	Resume             bool    `json:"resume"`
	DryRun             bool    `json:"dry_run"`
	TopK               int     `json:"top_k"`
	EliteFraction      float64 `json:"elite_fraction"`
	LogEvery           int     `json:"log_every"`
	MarketsConcurrency int     `json:"markets_concurrency"`
	ValidationFraction float64 `json:"validation_fraction"`

	MinTips     int     `json:"min_tips"`
	MinBets     int     `json:"min_bets"`
	RelaxPct    float64 `json:"relax_pct"`
	RelaxFactor float64 `json:"relax_factor"`

	TournamentSize      int     `json:"tournament_size"`
	PairProb            float64 `json:"pair_prob"`
	MutationRate        float64 `json:"mutation_rate"`
	MutationScale       float64 `json:"mutation_scale"`
	RadiationRate       float64 `json:"radiation_rate"`
	RadiationScale      float64 `json:"radiation_scale"`
	StagnationThreshold int     `json:"stagnation_threshold"`

	Folds       int     `json:"folds"`
	Pessimism   float64 `json:"pessimism"`
	MinFoldTips int     `json:"min_fold_tips"`

	CheckpointInterval int `json:"checkpoint_interval"`

	Stress    stress.Config   `json:"stress"`
	Surrogate SurrogateConfig `json:"surrogate"`

	// Now anchors time weighting; zero uses the latest tip.
	Now time.Time `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Population:          100,
		Generations:         60,
		Seed:                42,
		LookbackYears:       3,
		Mode:                ModeQuick,
		Workers:             4,
		TopK:                10,
		EliteFraction:       0.1,
		LogEvery:            10,
		MarketsConcurrency:  2,
		ValidationFraction:  0.2,
		MinTips:             200,
		MinBets:             50,
		RelaxPct:            0.2,
		RelaxFactor:         2,
		TournamentSize:      3,
		PairProb:            0.7,
		MutationRate:        0.1,
		MutationScale:       0.1,
		RadiationRate:       0.5,
		RadiationScale:      0.25,
		StagnationThreshold: 15,
		Folds:               4,
		Pessimism:           0.5,
		MinFoldTips:         50,
		CheckpointInterval:  10,
		Stress:              stress.DefaultConfig(),
		Surrogate:           SurrogateConfig{Oversample: 3, RetrainEvery: 5},
	}
}

func invalid(format string, args ...interface{}) *RunError {
	return &RunError{Kind: KindInvalidConfig, Reason: fmt.Sprintf(format, args...)}
}

// Validate rejects settings no run can use.
func (c *Config) Validate() error {
	switch {
	case c.Population < 2:
		return invalid("population must be at least 2, got %d", c.Population)
	case c.Generations < 1:
		return invalid("generations must be at least 1, got %d", c.Generations)
	case c.LookbackYears <= 0:
		return invalid("lookback_years must be positive")
	case c.Mode != ModeQuick && c.Mode != ModeDeep:
		return invalid("unknown mode %q", c.Mode)
	case c.ValidationFraction <= 0 || c.ValidationFraction >= 1:
		return invalid("validation_fraction must be in (0,1), got %g", c.ValidationFraction)
	case c.EliteFraction < 0 || c.EliteFraction >= 1:
		return invalid("elite_fraction must be in [0,1), got %g", c.EliteFraction)
	case c.MinTips < 1:
		return invalid("min_tips must be at least 1")
	case c.TopK < 1:
		return invalid("top_k must be at least 1")
	case c.TournamentSize < 1:
		return invalid("tournament_size must be at least 1")
	case c.RelaxPct <= 0:
		return invalid("relax_pct must be positive")
	case c.Mode == ModeDeep && c.Folds < 2:
		return invalid("deep mode needs at least 2 folds, got %d", c.Folds)
	case c.Stress.RuinThreshold <= 0 || c.Stress.RuinThreshold >= 1:
		return invalid("ruin_threshold must be in (0,1)")
	case c.Stress.RescueStep <= 0 || c.Stress.RescueStep >= 1:
		return invalid("rescue_step must be in (0,1)")
	case c.Stress.RescueAttempts < 0:
		return invalid("rescue_attempts must not be negative")
	case c.Stress.RuinFloor <= 0 || c.Stress.RuinFloor >= 1:
		return invalid("ruin_floor must be in (0,1)")
	case c.Stress.BootstrapPrefilter < 1 || c.Stress.BootstrapSamples < 1:
		return invalid("bootstrap_prefilter and bootstrap_samples must be positive")
	case c.Stress.MCPrefilter < 1 || c.Stress.MCSims < 1:
		return invalid("mc_prefilter and mc_sims must be positive")
	case c.Stress.MinProbPositive < 0 || c.Stress.MinProbPositive > 1:
		return invalid("min_prob_positive must be in [0,1], got %g", c.Stress.MinProbPositive)
	case c.Stress.PrefilterProbPositive < 0 || c.Stress.PrefilterProbPositive > 1:
		return invalid("prefilter_prob_positive must be in [0,1], got %g", c.Stress.PrefilterProbPositive)
	case c.Surrogate.Enabled && c.Surrogate.Oversample < 1:
		return invalid("surrogate oversample must be at least 1")
	}
	return nil
}

func (c *Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}
