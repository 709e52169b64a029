package main

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/gweber/quotico-sub000/evolve"
)

// settings is everything the binary reads from evolver.toml.
type settings struct {
	Run           evolve.Config
	CheckpointDir string

	InputFile   string
	InputDB     string
	InputMarket string

	OutputFile   string
	OutputDB     string
	RedisAddr    string
	RedisStream  string
	MonitorAddr  string
	IRCServer    string
	IRCChannel   string
	IRCNick      string
	IRCClientID  string
	IRCSecret    string
	IRCTokenURL  string
	IRCTokenFile string
}

func setDefaults(v *viper.Viper) {
	d := evolve.DefaultConfig()
	v.SetDefault("run.population", d.Population)
	v.SetDefault("run.generations", d.Generations)
	v.SetDefault("run.seed", int64(d.Seed))
	v.SetDefault("run.lookback_years", d.LookbackYears)
	v.SetDefault("run.mode", d.Mode)
	v.SetDefault("run.workers", d.Workers)
	v.SetDefault("run.top_k", d.TopK)
	v.SetDefault("run.elite_fraction", d.EliteFraction)
	v.SetDefault("run.log_every", d.LogEvery)
	v.SetDefault("run.markets_concurrency", d.MarketsConcurrency)
	v.SetDefault("run.validation_fraction", d.ValidationFraction)
	v.SetDefault("run.min_tips", d.MinTips)
	v.SetDefault("run.min_bets", d.MinBets)
	v.SetDefault("run.relax_pct", d.RelaxPct)
	v.SetDefault("run.relax_factor", d.RelaxFactor)
	v.SetDefault("run.tournament_size", d.TournamentSize)
	v.SetDefault("run.pair_prob", d.PairProb)
	v.SetDefault("run.mutation_rate", d.MutationRate)
	v.SetDefault("run.mutation_scale", d.MutationScale)
	v.SetDefault("run.radiation_rate", d.RadiationRate)
	v.SetDefault("run.radiation_scale", d.RadiationScale)
	v.SetDefault("run.stagnation_threshold", d.StagnationThreshold)

	v.SetDefault("deep.folds", d.Folds)
	v.SetDefault("deep.pessimism", d.Pessimism)
	v.SetDefault("deep.min_fold_tips", d.MinFoldTips)

	s := d.Stress
	v.SetDefault("stress.bootstrap_prefilter", s.BootstrapPrefilter)
	v.SetDefault("stress.bootstrap_samples", s.BootstrapSamples)
	v.SetDefault("stress.prefilter_prob_positive", s.PrefilterProbPositive)
	v.SetDefault("stress.min_prob_positive", s.MinProbPositive)
	v.SetDefault("stress.mc_prefilter", s.MCPrefilter)
	v.SetDefault("stress.mc_sims", s.MCSims)
	v.SetDefault("stress.prefilter_path_bets", s.PrefilterPathBets)
	v.SetDefault("stress.early_check_every", s.EarlyCheckEvery)
	v.SetDefault("stress.ruin_threshold", s.RuinThreshold)
	v.SetDefault("stress.ruin_floor", s.RuinFloor)
	v.SetDefault("stress.rescue_attempts", s.RescueAttempts)
	v.SetDefault("stress.rescue_step", s.RescueStep)
	v.SetDefault("stress.rescue_min_improvement", s.RescueMinImprovement)

	v.SetDefault("checkpoint.dir", "checkpoints")
	v.SetDefault("checkpoint.interval", d.CheckpointInterval)

	v.SetDefault("surrogate.enabled", d.Surrogate.Enabled)
	v.SetDefault("surrogate.oversample", d.Surrogate.Oversample)
	v.SetDefault("surrogate.retrain_every", d.Surrogate.RetrainEvery)

	v.SetDefault("output.redis.stream", "strategies")
	v.SetDefault("irc.server", "irc.chat.twitch.tv:6697")
	v.SetDefault("irc.nick", "quotico")
}

// loadConfig reads evolver.toml from path, or from the working directory
// when path is empty. EVOLVER_<SECTION>_<KEY> overrides any key.
func loadConfig(path string) (*settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("evolver")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("evolver")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	st := &settings{
		CheckpointDir: v.GetString("checkpoint.dir"),
		InputFile:     v.GetString("input.file"),
		InputDB:       v.GetString("input.db.url"),
		InputMarket:   v.GetString("input.market"),
		OutputFile:    v.GetString("output.file"),
		OutputDB:      v.GetString("output.db.url"),
		RedisAddr:     v.GetString("output.redis.addr"),
		RedisStream:   v.GetString("output.redis.stream"),
		MonitorAddr:   v.GetString("monitor.addr"),
		IRCServer:     v.GetString("irc.server"),
		IRCChannel:    v.GetString("irc.channel"),
		IRCNick:       v.GetString("irc.nick"),
		IRCClientID:   v.GetString("irc.client_id"),
		IRCSecret:     v.GetString("irc.client_secret"),
		IRCTokenURL:   v.GetString("irc.token_url"),
		IRCTokenFile:  v.GetString("irc.token_file"),
	}
	c := &st.Run
	c.Population = v.GetInt("run.population")
	c.Generations = v.GetInt("run.generations")
	c.Seed = uint64(v.GetInt64("run.seed"))
	c.LookbackYears = v.GetFloat64("run.lookback_years")
	c.Mode = v.GetString("run.mode")
	c.Workers = v.GetInt("run.workers")
	c.Resume = v.GetBool("run.resume")
	c.DryRun = v.GetBool("run.dry_run")
	c.TopK = v.GetInt("run.top_k")
	c.EliteFraction = v.GetFloat64("run.elite_fraction")
	c.LogEvery = v.GetInt("run.log_every")
	c.MarketsConcurrency = v.GetInt("run.markets_concurrency")
	c.ValidationFraction = v.GetFloat64("run.validation_fraction")
	c.MinTips = v.GetInt("run.min_tips")
	c.MinBets = v.GetInt("run.min_bets")
	c.RelaxPct = v.GetFloat64("run.relax_pct")
	c.RelaxFactor = v.GetFloat64("run.relax_factor")
	c.TournamentSize = v.GetInt("run.tournament_size")
	c.PairProb = v.GetFloat64("run.pair_prob")
	c.MutationRate = v.GetFloat64("run.mutation_rate")
	c.MutationScale = v.GetFloat64("run.mutation_scale")
	c.RadiationRate = v.GetFloat64("run.radiation_rate")
	c.RadiationScale = v.GetFloat64("run.radiation_scale")
	c.StagnationThreshold = v.GetInt("run.stagnation_threshold")

	c.Folds = v.GetInt("deep.folds")
	c.Pessimism = v.GetFloat64("deep.pessimism")
	c.MinFoldTips = v.GetInt("deep.min_fold_tips")
	c.CheckpointInterval = v.GetInt("checkpoint.interval")

	s := &c.Stress
	s.BootstrapPrefilter = v.GetInt("stress.bootstrap_prefilter")
	s.BootstrapSamples = v.GetInt("stress.bootstrap_samples")
	s.PrefilterProbPositive = v.GetFloat64("stress.prefilter_prob_positive")
	s.MinProbPositive = v.GetFloat64("stress.min_prob_positive")
	s.MCPrefilter = v.GetInt("stress.mc_prefilter")
	s.MCSims = v.GetInt("stress.mc_sims")
	s.PrefilterPathBets = v.GetInt("stress.prefilter_path_bets")
	s.EarlyCheckEvery = v.GetInt("stress.early_check_every")
	s.RuinThreshold = v.GetFloat64("stress.ruin_threshold")
	s.RuinFloor = v.GetFloat64("stress.ruin_floor")
	s.RescueAttempts = v.GetInt("stress.rescue_attempts")
	s.RescueStep = v.GetFloat64("stress.rescue_step")
	s.RescueMinImprovement = v.GetFloat64("stress.rescue_min_improvement")

	c.Surrogate.Enabled = v.GetBool("surrogate.enabled")
	c.Surrogate.Oversample = v.GetInt("surrogate.oversample")
	c.Surrogate.RetrainEvery = v.GetInt("surrogate.retrain_every")

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}
