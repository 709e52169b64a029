package evolve

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/gweber/quotico-sub000/checkpoint"
	"github.com/gweber/quotico-sub000/fitness"
	"github.com/gweber/quotico-sub000/genome"
	"github.com/gweber/quotico-sub000/pareto"
	"github.com/gweber/quotico-sub000/stress"
	"github.com/gweber/quotico-sub000/tips"
)

// rngStream separates the search stream from other PCG users of the seed.
const rngStream = 0x5851f42d4c957f2d

// representatives kept per selection
const maxRepresentatives = 3

// Engine evolves one market. Store and Observer are optional.
type Engine struct {
	Config   Config
	Store    *checkpoint.Store
	Observer Observer
}

// stageOutcome is the stress-tested selection of one finished stage.
type stageOutcome struct {
	stage   genome.Stage
	history []float64
	sel     pareto.Selection
	results []stress.Result
	cands   []pareto.Candidate
}

// Run evolves a policy for recs. A *RunError is returned for fatal
// conditions; cancellation and a missing deployable candidate are reported
// through the record status.
func (e *Engine) Run(ctx context.Context, recs []tips.Tip) (*StrategyRecord, error) {
	cfg := &e.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	recs = tips.FilterValid(recs)
	rec := &StrategyRecord{
		RunID:  uuid.NewString(),
		Market: cfg.Market,
		Provenance: Provenance{
			Seed:          cfg.Seed,
			Population:    cfg.Population,
			Generations:   cfg.Generations,
			LookbackYears: cfg.LookbackYears,
			Mode:          cfg.Mode,
			Tips:          len(recs),
			CreatedAt:     time.Now().UTC(),
		},
	}
	if cfg.Mode == ModeDeep {
		rec.Provenance.Folds = cfg.Folds
	}
	if len(recs) < cfg.MinTips {
		rec.Status = StatusInsufficientData
		err := &RunError{
			Kind:   KindInsufficientData,
			Reason: "dataset below minimum size",
			Counts: map[string]int{"tips": len(recs), "min_tips": cfg.MinTips},
		}
		rec.Error = err.Error()
		e.finished(rec)
		return rec, err
	}

	now := cfg.Now
	if now.IsZero() {
		for _, t := range recs {
			if t.MatchTime.After(now) {
				now = t.MatchTime
			}
		}
	}
	ds := tips.Vectorize(recs, now, cfg.LookbackYears)
	train, val := ds.SplitByTime(cfg.ValidationFraction)
	var folds []tips.Fold
	if cfg.Mode == ModeDeep {
		var err error
		if folds, err = buildFolds(train, cfg); err != nil {
			return nil, err
		}
	}
	log.Printf("market=%s tips=%d train=%d validation=%d mode=%s", cfg.Market, ds.Len(), train.Len(), val.Len(), cfg.Mode)

	ideal := genome.Ideal(cfg.MinBets)
	stages := []genome.Stage{ideal, genome.Relax(ideal, cfg.RelaxPct, cfg.RelaxFactor)}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^rngStream)
	rng := rand.New(src)
	sur := newSurrogate(cfg.Surrogate)

	s, first := e.restore(stages, src, rng)
	var out *stageOutcome
	for si := first; si < len(stages); si++ {
		st := stages[si]
		switch {
		case s == nil:
			s = randomState(st, cfg.Population, rng)
		case s.stage.Name != st.Name:
			s = nextStage(s, st)
		}
		var ev evaluator = singleSplit{ds: train, p: fitness.Params{Stage: st, MinBets: st.MinBets}}
		if cfg.Mode == ModeDeep {
			ev = newCrossValidated(folds, st, train.Len(), cfg.Pessimism)
		}
		fit, cancelled := e.search(ctx, s, ev, src, rng, sur)
		if cancelled {
			rec.Status = StatusCancelled
			rec.Provenance.Stage = st.Name
			rec.FitnessHistory = s.history
			e.finished(rec)
			return rec, nil
		}
		out = e.finish(s, fit, train, val)
		if out.sel.Deployable {
			break
		}
		log.Printf("market=%s no deployable candidate in stage=%s", cfg.Market, st.Name)
	}
	if e.Store != nil && !cfg.DryRun {
		if err := e.Store.Remove(e.namespace()); err != nil {
			log.Printf("warning: removing checkpoint for %s: %s", e.namespace(), err)
		}
	}

	e.fill(rec, out, train, val)
	e.finished(rec)
	return rec, nil
}

func (e *Engine) finished(rec *StrategyRecord) {
	if e.Observer != nil {
		e.Observer.Finished(rec)
	}
}

// finish stress-tests the top distinct genomes of the final population on
// the validation window and selects among them.
func (e *Engine) finish(s *searchState, fit []float64, train, val *tips.Dataset) *stageOutcome {
	cfg := &e.Config
	order := rankOrder(fit)
	seen := make(map[string]bool)
	var finalists []genome.Genome
	var finalFit []float64
	for _, i := range order {
		g := genome.Genome(s.pop.RawRowView(i)).Clone()
		key := stress.Key(g, 0, false)
		if seen[key] {
			continue
		}
		seen[key] = true
		finalists = append(finalists, g)
		finalFit = append(finalFit, fit[i])
		if len(finalists) == cfg.TopK {
			break
		}
	}

	results := e.stressAll(finalists, s.stage, val)
	params := fitness.Params{Stage: s.stage, MinBets: s.stage.MinBets}
	cands := make([]pareto.Candidate, len(results))
	passed := 0
	for i, r := range results {
		vm := fitness.Evaluate(r.Genome, val, params)
		ruin := r.MonteCarlo.RuinProb
		if r.MonteCarlo.Sims == 0 {
			ruin = 1
		}
		cands[i] = pareto.Candidate{
			Index:      i,
			Genome:     r.Genome,
			Fitness:    finalFit[i],
			Objectives: pareto.Objectives{ROI: vm.ROI, Bets: vm.Bets, Ruin: ruin, MaxDrawdown: vm.MaxDrawdown},
			Deployable: r.Passed,
		}
		if r.Passed {
			passed++
		}
	}
	sel := pareto.Select(cands, maxRepresentatives)
	log.Printf("market=%s stage=%s finalists=%d passed=%d frontier=%d", cfg.Market, s.stage.Name, len(results), passed, len(sel.Frontier))
	return &stageOutcome{stage: s.stage, history: s.history, sel: sel, results: results, cands: cands}
}

// stressAll runs every finalist through its own Tester on a bounded pool.
func (e *Engine) stressAll(finalists []genome.Genome, st genome.Stage, val *tips.Dataset) []stress.Result {
	out := make([]stress.Result, len(finalists))
	p := pool.New().WithMaxGoroutines(e.Config.workers())
	for i, g := range finalists {
		i, g := i, g
		p.Go(func() {
			t := &stress.Tester{Config: e.Config.Stress, Cache: stress.NewCache(), Seed: e.Config.Seed}
			out[i] = t.Run(g, st, val)
		})
	}
	p.Wait()
	return out
}

// fill copies the selected candidate into the record.
func (e *Engine) fill(rec *StrategyRecord, out *stageOutcome, train, val *tips.Dataset) {
	rec.Provenance.Stage = out.stage.Name
	rec.FitnessHistory = out.history
	rec.Status = StatusNoDeployableCandidate
	if out.sel.Deployable {
		rec.Status = StatusSuccess
	}
	rec.Pareto = &ParetoSummary{
		Primary:      out.sel.Primary,
		Alternatives: out.sel.Alternatives,
		FrontierSize: len(out.sel.Frontier),
		Finalists:    len(out.cands),
		FallbackUsed: out.sel.FallbackUsed,
	}
	if out.sel.Primary == nil {
		return
	}
	p := out.sel.Primary
	g := p.Genome
	params := fitness.Params{Stage: out.stage, MinBets: out.stage.MinBets}
	tm := fitness.Evaluate(g, train, params)
	vm := fitness.Evaluate(g, val, params)
	sr := out.results[p.Index]
	rec.Deployable = p.Deployable
	rec.Genes = g.Map()
	rec.Vector = g.Clone()
	rec.Train = &tm
	rec.Validation = &vm
	rec.Stress = &sr
}
