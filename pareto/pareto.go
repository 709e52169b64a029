package pareto

import (
	"math"
	"sort"

	"github.com/gweber/quotico-sub000/genome"
)

// trade-off labels
const (
	LabelHighestROI     = "highest_roi"
	LabelHighestVolume  = "highest_volume"
	LabelLowestRuin     = "lowest_ruin"
	LabelLowestDrawdown = "lowest_drawdown"
	LabelBalanced       = "balanced"
)

// Objectives are compared with higher ROI and Bets better, lower Ruin and
// MaxDrawdown better.
type Objectives struct {
	ROI         float64 `json:"roi"`
	Bets        int     `json:"bets"`
	Ruin        float64 `json:"ruin_prob"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// vector returns the objectives oriented so that larger is better.
func (o Objectives) vector() [4]float64 {
	return [4]float64{o.ROI, float64(o.Bets), -o.Ruin, -o.MaxDrawdown}
}

func (o Objectives) finite() bool {
	for _, v := range o.vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Candidate is a stress-tested genome. Index is the caller's position for
// mapping back to its own records.
type Candidate struct {
	Index      int           `json:"index"`
	Genome     genome.Genome `json:"genome"`
	Fitness    float64       `json:"fitness"`
	Objectives Objectives    `json:"objectives"`
	Deployable bool          `json:"deployable"`
	Rank       int           `json:"rank"`
	Crowding   float64       `json:"crowding"`
	Label      string        `json:"label,omitempty"`
}

// Dominates reports whether a is at least as good as b on every objective
// and strictly better on one.
func Dominates(a, b Objectives) bool {
	va, vb := a.vector(), b.vector()
	better := false
	for i := range va {
		if va[i] < vb[i] {
			return false
		}
		if va[i] > vb[i] {
			better = true
		}
	}
	return better
}

// Rank assigns non-domination ranks starting at 1 and returns the fronts in
// rank order. Candidates with non-finite objectives are left unranked.
func Rank(cands []Candidate) [][]int {
	var remaining []int
	for i := range cands {
		cands[i].Rank = 0
		if cands[i].Objectives.finite() {
			remaining = append(remaining, i)
		}
	}
	var fronts [][]int
	for rank := 1; len(remaining) > 0; rank++ {
		var front, rest []int
		for _, i := range remaining {
			dominated := false
			for _, j := range remaining {
				if i != j && Dominates(cands[j].Objectives, cands[i].Objectives) {
					dominated = true
					break
				}
			}
			if dominated {
				rest = append(rest, i)
			} else {
				front = append(front, i)
			}
		}
		for _, i := range front {
			cands[i].Rank = rank
		}
		fronts = append(fronts, front)
		remaining = rest
	}
	return fronts
}

// Frontier returns the rank-1 candidates in input order.
func Frontier(cands []Candidate) []Candidate {
	work := make([]Candidate, len(cands))
	copy(work, cands)
	fronts := Rank(work)
	if len(fronts) == 0 {
		return nil
	}
	out := make([]Candidate, 0, len(fronts[0]))
	for _, i := range fronts[0] {
		out = append(out, work[i])
	}
	return out
}

// Crowding sets the crowding distance of every member of front: the sum
// over objectives of the normalized gap between its neighbours. Boundary
// members get +Inf.
func Crowding(front []Candidate) {
	n := len(front)
	for i := range front {
		front[i].Crowding = 0
	}
	if n <= 2 {
		for i := range front {
			front[i].Crowding = math.Inf(1)
		}
		return
	}
	order := make([]int, n)
	for k := 0; k < 4; k++ {
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return front[order[a]].Objectives.vector()[k] < front[order[b]].Objectives.vector()[k]
		})
		lo := front[order[0]].Objectives.vector()[k]
		hi := front[order[n-1]].Objectives.vector()[k]
		front[order[0]].Crowding = math.Inf(1)
		front[order[n-1]].Crowding = math.Inf(1)
		if hi == lo {
			continue
		}
		for p := 1; p < n-1; p++ {
			gap := front[order[p+1]].Objectives.vector()[k] - front[order[p-1]].Objectives.vector()[k]
			front[order[p]].Crowding += gap / (hi - lo)
		}
	}
}

// Selection is the outcome of choosing among stress-tested candidates.
type Selection struct {
	Primary      *Candidate  `json:"primary"`
	Alternatives []Candidate `json:"alternatives"`
	Frontier     []Candidate `json:"frontier"`
	Deployable   bool        `json:"deployable"`
	FallbackUsed bool        `json:"fallback_used"`
}

// Select ranks the deployable candidates, or all of them when none is
// deployable, picks up to limit labelled representatives from the frontier
// and returns the highest-ROI one as primary. When no frontier can be
// formed the candidates are ranked by fitness instead.
func Select(cands []Candidate, limit int) Selection {
	var sel Selection
	if len(cands) == 0 || limit < 1 {
		return sel
	}
	var pool []Candidate
	for _, c := range cands {
		if c.Deployable {
			pool = append(pool, c)
		}
	}
	sel.Deployable = len(pool) > 0
	if !sel.Deployable {
		pool = append(pool, cands...)
	}

	front := Frontier(pool)
	if len(front) == 0 {
		sel.FallbackUsed = true
		front = append([]Candidate(nil), pool...)
		sort.SliceStable(front, func(i, j int) bool { return front[i].Fitness > front[j].Fitness })
		for i := range front {
			front[i].Crowding = 0
		}
	} else {
		Crowding(front)
	}
	sel.Frontier = front

	reps := representatives(front, limit)
	sel.Primary = &reps[0]
	sel.Alternatives = reps[1:]
	return sel
}

// representatives picks the extreme member for each trade-off, then fills
// up with the least crowded remaining members. The first pick is always the
// highest-ROI member.
func representatives(front []Candidate, limit int) []Candidate {
	taken := make(map[int]bool)
	var out []Candidate
	take := func(i int, label string) {
		if taken[i] || len(out) >= limit {
			return
		}
		taken[i] = true
		c := front[i]
		c.Label = label
		out = append(out, c)
	}
	take(best(front, func(a, b Objectives) bool { return a.ROI > b.ROI }), LabelHighestROI)
	take(best(front, func(a, b Objectives) bool { return a.Bets > b.Bets }), LabelHighestVolume)
	take(best(front, func(a, b Objectives) bool { return a.Ruin < b.Ruin }), LabelLowestRuin)
	take(best(front, func(a, b Objectives) bool { return a.MaxDrawdown < b.MaxDrawdown }), LabelLowestDrawdown)

	order := make([]int, len(front))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return front[order[a]].Crowding > front[order[b]].Crowding })
	for _, i := range order {
		take(i, LabelBalanced)
	}
	return out
}

// best returns the index that wins under better; ties go to the higher
// crowding distance.
func best(front []Candidate, better func(a, b Objectives) bool) int {
	b := 0
	for i := 1; i < len(front); i++ {
		if better(front[i].Objectives, front[b].Objectives) {
			b = i
			continue
		}
		if !better(front[b].Objectives, front[i].Objectives) && front[i].Crowding > front[b].Crowding {
			b = i
		}
	}
	return b
}
