package evolve

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gweber/quotico-sub000/fitness"
	"github.com/gweber/quotico-sub000/pareto"
	"github.com/gweber/quotico-sub000/stress"
)

type Status string

const (
	StatusSuccess               Status = "success"
	StatusInsufficientData      Status = "insufficient_data"
	StatusNoDeployableCandidate Status = "no_deployable_candidate"
	StatusCancelled             Status = "cancelled"
)

// error kinds
const (
	KindInsufficientData = "insufficient_data"
	KindInvalidConfig    = "invalid_config"
)

// RunError is a fatal run condition with the counts that caused it.
type RunError struct {
	Kind   string
	Reason string
	Counts map[string]int
}

func (e *RunError) Error() string {
	if len(e.Counts) == 0 {
		return e.Kind + ": " + e.Reason
	}
	keys := make([]string, 0, len(e.Counts))
	for k := range e.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, e.Counts[k])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Reason, strings.Join(parts, " "))
}

// Progress is reported after every evaluated generation.
type Progress struct {
	Market     string  `json:"market"`
	Stage      string  `json:"stage"`
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Mean       float64 `json:"mean"`
	Stagnation int     `json:"stagnation"`
	Radiation  bool    `json:"radiation,omitempty"`
}

// Observer receives run events. Calls come from the run's goroutine and
// must not block for long.
type Observer interface {
	Generation(Progress)
	Finished(*StrategyRecord)
}

// Provenance records how a strategy was produced.
type Provenance struct {
	Seed          uint64    `json:"seed"`
	Stage         string    `json:"stage"`
	Population    int       `json:"population"`
	Generations   int       `json:"generations"`
	LookbackYears float64   `json:"lookback_years"`
	Mode          string    `json:"mode"`
	Folds         int       `json:"folds,omitempty"`
	Tips          int       `json:"tips"`
	CreatedAt     time.Time `json:"created_at"`
}

// ParetoSummary is the candidate overview kept with the record.
type ParetoSummary struct {
	Primary      *pareto.Candidate  `json:"primary,omitempty"`
	Alternatives []pareto.Candidate `json:"alternatives"`
	FrontierSize int                `json:"frontier_size"`
	Finalists    int                `json:"finalists"`
	FallbackUsed bool               `json:"fallback_used"`
}

// StrategyRecord is the single artifact a run produces.
type StrategyRecord struct {
	RunID          string             `json:"run_id"`
	Market         string             `json:"market"`
	Status         Status             `json:"status"`
	Deployable     bool               `json:"deployable"`
	Genes          map[string]float64 `json:"genes,omitempty"`
	Vector         []float64          `json:"vector,omitempty"`
	Train          *fitness.Metrics   `json:"train,omitempty"`
	Validation     *fitness.Metrics   `json:"validation,omitempty"`
	Stress         *stress.Result     `json:"stress,omitempty"`
	Pareto         *ParetoSummary     `json:"pareto,omitempty"`
	FitnessHistory []float64          `json:"fitness_history,omitempty"`
	Provenance     Provenance         `json:"provenance"`
	Error          string             `json:"error,omitempty"`
}
