package genome

import (
	"fmt"
	"math"
)

const (
	StageIdeal   = "ideal"
	StageRelaxed = "relaxed"
)

// Stage bounds one phase of the search.
type Stage struct {
	Name    string
	Genes   []Gene
	MinBets int
}

// Ideal returns the strict production stage.
func Ideal(minBets int) Stage {
	return Stage{Name: StageIdeal, Genes: Schema(), MinBets: minBets}
}

// Relax widens every range of s by pct of its width on each side, never
// past the gene's hard limits, and divides MinBets by factor. Each relaxed
// range strictly contains the original one.
func Relax(s Stage, pct, factor float64) Stage {
	out := Stage{Name: StageRelaxed, Genes: make([]Gene, len(s.Genes))}
	for i, g := range s.Genes {
		pad := g.Width() * pct
		lo := math.Max(g.Min-pad, g.HardMin)
		hi := math.Min(g.Max+pad, g.HardMax)
		if lo >= g.Min {
			lo = g.Min - pad
		}
		if hi <= g.Max {
			hi = g.Max + pad
		}
		g.Min, g.Max = lo, hi
		out.Genes[i] = g
	}
	if factor < 1 {
		factor = 1
	}
	out.MinBets = int(math.Ceil(float64(s.MinBets) / factor))
	return out
}

// Clamp forces every gene of g into the stage range, in place.
func (s Stage) Clamp(g Genome) Genome {
	for i := range g {
		if i < len(s.Genes) {
			g[i] = s.Genes[i].Clamp(g[i])
		}
	}
	return g
}

// Contains reports whether g lies inside every range of s.
func (s Stage) Contains(g Genome) bool {
	if len(g) != len(s.Genes) {
		return false
	}
	for i, v := range g {
		if v < s.Genes[i].Min || v > s.Genes[i].Max || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Normalize maps g onto [0,1] per gene.
func (s Stage) Normalize(g Genome) []float64 {
	out := make([]float64, len(g))
	for i, v := range g {
		w := s.Genes[i].Width()
		if w > 0 {
			out[i] = (v - s.Genes[i].Min) / w
		}
	}
	return out
}

// Midpoint returns the genome at the center of every range.
func (s Stage) Midpoint() Genome {
	g := make(Genome, len(s.Genes))
	for i, gene := range s.Genes {
		g[i] = gene.Mid()
	}
	return g
}

func (s Stage) String() string {
	return fmt.Sprintf("%s(min_bets=%d)", s.Name, s.MinBets)
}
