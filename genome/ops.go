package genome

import "math/rand/v2"

// Random draws every gene uniformly from the stage range.
func Random(s Stage, rng *rand.Rand) Genome {
	g := make(Genome, len(s.Genes))
	for i, gene := range s.Genes {
		g[i] = gene.Min + rng.Float64()*gene.Width()
	}
	return s.Clamp(g)
}

// Crossover builds one child by uniform crossover. Each epistatic pair is,
// with probability pairProb, copied as a unit from a single parent; every
// other gene comes independently from either parent.
func Crossover(a, b Genome, pairs []Pair, pairProb float64, rng *rand.Rand) Genome {
	child := make(Genome, len(a))
	for i := range child {
		if rng.IntN(2) == 0 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	for _, p := range pairs {
		if rng.Float64() >= pairProb {
			continue
		}
		src := a
		if rng.IntN(2) == 1 {
			src = b
		}
		child[p[0]] = src[p[0]]
		child[p[1]] = src[p[1]]
	}
	return child
}

// Mutate applies Gaussian noise to each gene with probability rate. The
// noise standard deviation is scale times the gene's range width; results
// are clamped to the stage.
func Mutate(g Genome, s Stage, rate, scale float64, rng *rand.Rand) Genome {
	for i, gene := range s.Genes {
		if rng.Float64() >= rate {
			continue
		}
		g[i] += rng.NormFloat64() * scale * gene.Width()
	}
	return s.Clamp(g)
}

// Tournament returns the index of the fittest of k uniformly drawn entries.
func Tournament(fit []float64, k int, rng *rand.Rand) int {
	best := rng.IntN(len(fit))
	for i := 1; i < k; i++ {
		c := rng.IntN(len(fit))
		if fit[c] > fit[best] {
			best = c
		}
	}
	return best
}
