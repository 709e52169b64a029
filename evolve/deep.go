package evolve

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gweber/quotico-sub000/fitness"
	"github.com/gweber/quotico-sub000/genome"
	"github.com/gweber/quotico-sub000/tips"
)

// evaluator scores a whole population for one stage.
type evaluator interface {
	evaluate(pop *mat.Dense) []float64
}

type singleSplit struct {
	ds *tips.Dataset
	p  fitness.Params
}

func (e singleSplit) evaluate(pop *mat.Dense) []float64 {
	return fitness.EvaluatePopulation(pop, e.ds, e.p)
}

// crossValidated scores every genome on each fold's validation window and
// aggregates pessimistically: mean minus pessimism times the cross-fold
// standard deviation.
type crossValidated struct {
	folds     []tips.Fold
	params    []fitness.Params
	pessimism float64
}

func newCrossValidated(folds []tips.Fold, st genome.Stage, total int, pessimism float64) crossValidated {
	cv := crossValidated{folds: folds, pessimism: pessimism, params: make([]fitness.Params, len(folds))}
	for i, f := range folds {
		// minimum bets scale with the share of history the window holds
		mb := int(math.Ceil(float64(st.MinBets) * float64(f.Val.Len()) / float64(max(total, 1))))
		cv.params[i] = fitness.Params{Stage: st, MinBets: max(mb, 1)}
	}
	return cv
}

func (e crossValidated) evaluate(pop *mat.Dense) []float64 {
	rows, _ := pop.Dims()
	scores := mat.NewDense(len(e.folds), rows, nil)
	for i, f := range e.folds {
		scores.SetRow(i, fitness.EvaluatePopulation(pop, f.Val, e.params[i]))
	}
	out := make([]float64, rows)
	col := make([]float64, len(e.folds))
	for r := range out {
		mat.Col(col, r, scores)
		mean, sd := stat.MeanStdDev(col, nil)
		if math.IsNaN(sd) {
			sd = 0
		}
		out[r] = mean - e.pessimism*sd
	}
	return out
}

// buildFolds cuts the training window into expanding folds and checks that
// every window is large enough.
func buildFolds(train *tips.Dataset, cfg *Config) ([]tips.Fold, error) {
	folds := train.ExpandingFolds(cfg.Folds)
	if folds == nil {
		return nil, &RunError{
			Kind:   KindInvalidConfig,
			Reason: "too little history for the requested fold count",
			Counts: map[string]int{"tips": train.Len(), "folds": cfg.Folds},
		}
	}
	for i, f := range folds {
		if f.Train.Len() < cfg.MinFoldTips || f.Val.Len() < cfg.MinFoldTips {
			return nil, &RunError{
				Kind:   KindInvalidConfig,
				Reason: "fold window below min_fold_tips",
				Counts: map[string]int{
					"fold":          i,
					"train_tips":    f.Train.Len(),
					"val_tips":      f.Val.Len(),
					"min_fold_tips": cfg.MinFoldTips,
				},
			}
		}
	}
	return folds, nil
}
