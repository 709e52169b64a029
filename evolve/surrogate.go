package evolve

import (
	"log"
	"sort"

	deep "github.com/patrikeh/go-deep"
	"github.com/patrikeh/go-deep/training"
	"gonum.org/v1/gonum/mat"

	"github.com/gweber/quotico-sub000/genome"
)

const (
	surrogateMemory = 4000
	surrogateIters  = 40
	surrogateBatch  = 64
)

// surrogate is a small regression net from normalized genome to fitness,
// used to discard unpromising children before they are evaluated. Weight
// initialization and batch training are not seeded, so runs using it are
// not bit-reproducible.
type surrogate struct {
	cfg      SurrogateConfig
	nn       *deep.Neural
	examples training.Examples
	gens     int
}

func newSurrogate(cfg SurrogateConfig) *surrogate {
	if !cfg.Enabled {
		return nil
	}
	if cfg.RetrainEvery < 1 {
		cfg.RetrainEvery = 1
	}
	return &surrogate{cfg: cfg}
}

func (s *surrogate) ready() bool {
	return s != nil && s.nn != nil
}

// observe records one evaluated generation and retrains on schedule.
func (s *surrogate) observe(st genome.Stage, pop *mat.Dense, fit []float64) {
	if s == nil {
		return
	}
	for r := range fit {
		s.examples = append(s.examples, training.Example{
			Input:    st.Normalize(pop.RawRowView(r)),
			Response: []float64{fit[r]},
		})
	}
	if len(s.examples) > surrogateMemory {
		s.examples = s.examples[len(s.examples)-surrogateMemory:]
	}
	s.gens++
	if s.gens%s.cfg.RetrainEvery != 0 {
		return
	}
	nn := deep.NewNeural(&deep.Config{
		Inputs:     genome.NumGenes,
		Layout:     []int{12, 6, 1},
		Activation: deep.ActivationSigmoid,
		Mode:       deep.ModeRegression,
		Weight:     deep.NewNormal(0.5, 0.0),
		Bias:       true,
	})
	optimizer := training.NewAdam(0.005, 0.9, 0.999, 1e-8)
	trainer := training.NewBatchTrainer(optimizer, 0, surrogateBatch, 2)
	x, y := s.examples.Split(0.8)
	trainer.Train(nn, x, y, surrogateIters)
	s.nn = nn
	if s.gens == s.cfg.RetrainEvery {
		log.Printf("surrogate trained on %d genomes", len(s.examples))
	}
}

// pick returns the n children with the highest predicted fitness, keeping
// their original relative order on ties.
func (s *surrogate) pick(children []genome.Genome, n int, st genome.Stage) []genome.Genome {
	if !s.ready() || len(children) <= n {
		return children[:min(n, len(children))]
	}
	pred := make([]float64, len(children))
	for i, c := range children {
		pred[i] = s.nn.Predict(st.Normalize(c))[0]
	}
	idx := make([]int, len(children))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return pred[idx[a]] > pred[idx[b]] })
	out := make([]genome.Genome, n)
	for i := range out {
		out[i] = children[idx[i]]
	}
	return out
}
