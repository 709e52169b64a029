package genome

import "math"

// SchemaVersion changes whenever genes are added, removed or reordered.
const SchemaVersion = 3

// Gene is one named search parameter. Min/Max bound the ideal stage;
// HardMin/HardMax are the physical limits a relaxed stage may reach.
type Gene struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	HardMin float64 `json:"-"`
	HardMax float64 `json:"-"`
}

func (g Gene) Width() float64 {
	return g.Max - g.Min
}

func (g Gene) Mid() float64 {
	return (g.Min + g.Max) / 2
}

func (g Gene) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return g.Mid()
	}
	return math.Max(g.Min, math.Min(g.Max, v))
}

// gene indices
const (
	MinEdge = iota
	MinConfidence
	SharpWeight
	MomentumWeight
	RestWeight
	H2HWeight
	KellyFraction
	MaxStake
	HomeBias
	DrawBias
	AwayBias
	DrawThreshold
	VolatilityBuffer
	BayesTrust
	EVTrust
	RefereePenalty
	LineupGate
	RotationPenalty
	LiquidityTrust
	EntropyTrust
	VariancePenalty
	EVFloor
	ComplexityPenalty

	NumGenes
)

var schema = [NumGenes]Gene{
	MinEdge:           {Name: "min_edge", Min: 0, Max: 12, HardMin: -5, HardMax: 25},
	MinConfidence:     {Name: "min_confidence", Min: 0.35, Max: 0.80, HardMin: 0, HardMax: 0.95},
	SharpWeight:       {Name: "sharp_weight", Min: 0, Max: 0.30, HardMin: 0, HardMax: 0.6},
	MomentumWeight:    {Name: "momentum_weight", Min: 0, Max: 0.30, HardMin: 0, HardMax: 0.6},
	RestWeight:        {Name: "rest_weight", Min: 0, Max: 0.20, HardMin: 0, HardMax: 0.5},
	H2HWeight:         {Name: "h2h_weight", Min: 0, Max: 0.20, HardMin: 0, HardMax: 0.5},
	KellyFraction:     {Name: "kelly_fraction", Min: 0.05, Max: 0.50, HardMin: 0.01, HardMax: 1},
	MaxStake:          {Name: "max_stake", Min: 5, Max: 50, HardMin: 1, HardMax: 100},
	HomeBias:          {Name: "home_bias", Min: 0.85, Max: 1.15, HardMin: 0.5, HardMax: 1.5},
	DrawBias:          {Name: "draw_bias", Min: 0.80, Max: 1.20, HardMin: 0.5, HardMax: 1.5},
	AwayBias:          {Name: "away_bias", Min: 0.85, Max: 1.15, HardMin: 0.5, HardMax: 1.5},
	DrawThreshold:     {Name: "draw_threshold", Min: 0.25, Max: 0.60, HardMin: 0, HardMax: 0.9},
	VolatilityBuffer:  {Name: "volatility_buffer", Min: 0, Max: 0.08, HardMin: 0, HardMax: 0.2},
	BayesTrust:        {Name: "bayes_trust", Min: 0, Max: 0.8, HardMin: 0, HardMax: 1},
	EVTrust:           {Name: "ev_trust", Min: 0, Max: 0.8, HardMin: 0, HardMax: 1},
	RefereePenalty:    {Name: "referee_penalty", Min: 0, Max: 0.15, HardMin: 0, HardMax: 0.4},
	LineupGate:        {Name: "lineup_gate", Min: 0.3, Max: 1.0, HardMin: 0, HardMax: 1.5},
	RotationPenalty:   {Name: "rotation_penalty", Min: 0, Max: 0.15, HardMin: 0, HardMax: 0.4},
	LiquidityTrust:    {Name: "liquidity_trust", Min: 0, Max: 1, HardMin: 0, HardMax: 1.2},
	EntropyTrust:      {Name: "entropy_trust", Min: 0, Max: 1, HardMin: 0, HardMax: 1.2},
	VariancePenalty:   {Name: "variance_penalty", Min: 0, Max: 0.15, HardMin: 0, HardMax: 0.4},
	EVFloor:           {Name: "ev_floor", Min: -0.10, Max: 0.05, HardMin: -0.5, HardMax: 0.2},
	ComplexityPenalty: {Name: "complexity_penalty", Min: 0, Max: 0.10, HardMin: 0, HardMax: 0.3},
}

// Schema returns a copy of the ideal gene table.
func Schema() []Gene {
	out := make([]Gene, NumGenes)
	copy(out, schema[:])
	return out
}

// Names returns the gene names in vector order.
func Names() []string {
	out := make([]string, NumGenes)
	for i, g := range schema {
		out[i] = g.Name
	}
	return out
}

// Index returns the position of a gene name, or -1.
func Index(name string) int {
	for i, g := range schema {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// Pair names two genes that interact and are inherited together.
type Pair [2]int

// EpistaticPairs are the gene combinations crossover keeps intact.
var EpistaticPairs = []Pair{
	{MinEdge, MinConfidence},
	{KellyFraction, MaxStake},
	{DrawBias, DrawThreshold},
	{BayesTrust, EVTrust},
}

// Genome is a value-typed parameter vector in schema order.
type Genome []float64

func (g Genome) Clone() Genome {
	out := make(Genome, len(g))
	copy(out, g)
	return out
}

// Map returns the genome keyed by gene name.
func (g Genome) Map() map[string]float64 {
	out := make(map[string]float64, len(g))
	for i, v := range g {
		if i < NumGenes {
			out[schema[i].Name] = v
		}
	}
	return out
}
