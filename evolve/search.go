package evolve

import (
	"context"
	"log"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gweber/quotico-sub000/checkpoint"
	"github.com/gweber/quotico-sub000/genome"
)

// worst is the initial best-so-far; it survives JSON unlike -Inf.
const worst = -math.MaxFloat64

// searchState is everything the generation loop carries. gen is the index
// of the next generation to evaluate and pop is its input population.
type searchState struct {
	stage      genome.Stage
	gen        int
	pop        *mat.Dense
	history    []float64
	best       float64
	bestGenome genome.Genome
	stagnation int
}

func randomState(st genome.Stage, n int, rng *rand.Rand) *searchState {
	pop := mat.NewDense(n, genome.NumGenes, nil)
	for r := 0; r < n; r++ {
		pop.SetRow(r, genome.Random(st, rng))
	}
	return &searchState{stage: st, pop: pop, best: worst}
}

// nextStage carries the population into a wider stage and restarts the
// generation count.
func nextStage(prev *searchState, st genome.Stage) *searchState {
	pop := mat.DenseCopyOf(prev.pop)
	rows, _ := pop.Dims()
	for r := 0; r < rows; r++ {
		st.Clamp(pop.RawRowView(r))
	}
	return &searchState{stage: st, pop: pop, best: worst}
}

// rankOrder returns population indices sorted by fitness, best first, ties
// by index.
func rankOrder(fit []float64) []int {
	idx := make([]int, len(fit))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return fit[idx[a]] > fit[idx[b]] })
	return idx
}

// search runs generations until the budget is spent or ctx is cancelled.
// It returns the fitness of the final population.
func (e *Engine) search(ctx context.Context, s *searchState, ev evaluator, src *rand.PCG, rng *rand.Rand, sur *surrogate) (fit []float64, cancelled bool) {
	cfg := &e.Config
	if s.gen >= cfg.Generations {
		s.gen = cfg.Generations - 1
	}
	for {
		if ctx.Err() != nil {
			e.save(s, src)
			log.Printf("market=%s cancelled before stage=%s gen=%d, checkpoint written", cfg.Market, s.stage.Name, s.gen)
			return nil, true
		}
		fit = ev.evaluate(s.pop)
		order := rankOrder(fit)
		top := fit[order[0]]
		if top > s.best {
			s.best = top
			s.bestGenome = genome.Genome(s.pop.RawRowView(order[0])).Clone()
			s.stagnation = 0
		} else {
			s.stagnation++
		}
		s.history = append(s.history, top)
		radiation := cfg.StagnationThreshold > 0 && s.stagnation >= cfg.StagnationThreshold

		p := Progress{
			Market:     cfg.Market,
			Stage:      s.stage.Name,
			Generation: s.gen,
			Best:       top,
			Mean:       stat.Mean(fit, nil),
			Stagnation: s.stagnation,
			Radiation:  radiation,
		}
		if cfg.LogEvery > 0 && s.gen%cfg.LogEvery == 0 {
			log.Printf("market=%s stage=%s gen=%d best=%.4f mean=%.4f", p.Market, p.Stage, p.Generation, p.Best, p.Mean)
		}
		if e.Observer != nil {
			e.Observer.Generation(p)
		}
		sur.observe(s.stage, s.pop, fit)

		if s.gen+1 >= cfg.Generations {
			return fit, false
		}
		s.pop = e.breed(s, fit, order, radiation, rng, sur)
		if radiation {
			log.Printf("market=%s stage=%s gen=%d radiation after %d stagnant generations", cfg.Market, s.stage.Name, s.gen, s.stagnation)
			s.stagnation = 0
		}
		s.gen++
		if cfg.CheckpointInterval > 0 && s.gen%cfg.CheckpointInterval == 0 {
			e.save(s, src)
		}
	}
}

// breed builds the next population: elites copied unchanged, the rest from
// tournament parents through crossover and mutation.
func (e *Engine) breed(s *searchState, fit []float64, order []int, radiation bool, rng *rand.Rand, sur *surrogate) *mat.Dense {
	cfg := &e.Config
	n, cols := s.pop.Dims()
	next := mat.NewDense(n, cols, nil)
	elites := int(math.Round(cfg.EliteFraction * float64(n)))
	elites = min(max(elites, 1), n)
	for i := 0; i < elites; i++ {
		next.SetRow(i, s.pop.RawRowView(order[i]))
	}

	rate, scale := cfg.MutationRate, cfg.MutationScale
	if radiation {
		rate, scale = cfg.RadiationRate, cfg.RadiationScale
	}
	need := n - elites
	want := need
	if sur.ready() {
		want = need * cfg.Surrogate.Oversample
	}
	children := make([]genome.Genome, want)
	for i := range children {
		a := s.pop.RawRowView(genome.Tournament(fit, cfg.TournamentSize, rng))
		b := s.pop.RawRowView(genome.Tournament(fit, cfg.TournamentSize, rng))
		child := genome.Crossover(a, b, genome.EpistaticPairs, cfg.PairProb, rng)
		children[i] = genome.Mutate(child, s.stage, rate, scale, rng)
	}
	if want > need {
		children = sur.pick(children, need, s.stage)
	}
	for i, c := range children {
		next.SetRow(elites+i, c)
	}
	return next
}

func (e *Engine) namespace() string {
	if e.Config.Market == "" {
		return "default"
	}
	return e.Config.Market
}

// save writes a snapshot of s. Dry runs never touch the store.
func (e *Engine) save(s *searchState, src *rand.PCG) {
	if e.Store == nil || e.Config.DryRun {
		return
	}
	state, err := src.MarshalBinary()
	if err != nil {
		log.Printf("warning: checkpoint rng state: %s", err)
		return
	}
	rows, _ := s.pop.Dims()
	pop := make([][]float64, rows)
	for r := range pop {
		pop[r] = append([]float64(nil), s.pop.RawRowView(r)...)
	}
	snap := &checkpoint.Snapshot{
		SchemaVersion:  genome.SchemaVersion,
		GeneNames:      genome.Names(),
		Stage:          s.stage.Name,
		Generation:     s.gen,
		Population:     pop,
		FitnessHistory: append([]float64(nil), s.history...),
		RNG:            state,
		Best:           s.best,
		BestGenome:     s.bestGenome,
		Stagnation:     s.stagnation,
		Seed:           e.Config.Seed,
	}
	if err := e.Store.Save(e.namespace(), snap); err != nil {
		log.Printf("warning: saving checkpoint for %s: %s", e.namespace(), err)
	}
}

// restore loads a compatible checkpoint into a search state, or returns nil
// so the caller starts fresh.
func (e *Engine) restore(stages []genome.Stage, src *rand.PCG, rng *rand.Rand) (*searchState, int) {
	if e.Store == nil || !e.Config.Resume {
		return nil, 0
	}
	ns := e.namespace()
	snap, err := e.Store.Load(ns)
	if err != nil {
		log.Printf("warning: no usable checkpoint for %s, starting fresh: %s", ns, err)
		return nil, 0
	}
	if snap.Seed != e.Config.Seed {
		log.Printf("warning: checkpoint for %s has seed %d, run uses %d; starting fresh", ns, snap.Seed, e.Config.Seed)
		return nil, 0
	}
	si := -1
	for i, st := range stages {
		if st.Name == snap.Stage {
			si = i
		}
	}
	if si < 0 {
		log.Printf("warning: checkpoint for %s has unknown stage %q; starting fresh", ns, snap.Stage)
		return nil, 0
	}
	if err := src.UnmarshalBinary(snap.RNG); err != nil {
		log.Printf("warning: checkpoint for %s has bad rng state, starting fresh: %s", ns, err)
		return nil, 0
	}
	st := stages[si]
	if checkpoint.Migrate(snap, genome.Names(), st) {
		log.Printf("warning: migrated checkpoint for %s to schema %d", ns, genome.SchemaVersion)
	}

	n := e.Config.Population
	if len(snap.Population) > n {
		snap.Population = snap.Population[:n]
	}
	pop := mat.NewDense(n, genome.NumGenes, nil)
	for r := 0; r < n; r++ {
		if r < len(snap.Population) {
			pop.SetRow(r, snap.Population[r])
		} else {
			pop.SetRow(r, genome.Random(st, rng))
		}
	}
	s := &searchState{
		stage:      st,
		gen:        snap.Generation,
		pop:        pop,
		history:    snap.FitnessHistory,
		best:       snap.Best,
		bestGenome: snap.BestGenome,
		stagnation: snap.Stagnation,
	}
	log.Printf("resuming %s at stage=%s gen=%d", ns, st.Name, s.gen)
	return s, si
}
