package tips

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Side is the outcome class a tip recommends.
type Side int8

const (
	Home Side = iota
	Draw
	Away
)

func (s Side) String() string {
	switch s {
	case Home:
		return "home"
	case Draw:
		return "draw"
	case Away:
		return "away"
	default:
		return fmt.Sprintf("side(%d)", int8(s))
	}
}

func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "home", "1":
		return Home, nil
	case "draw", "x":
		return Draw, nil
	case "away", "2":
		return Away, nil
	}
	return 0, fmt.Errorf("unknown side %q", v)
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p, err := ParseSide(v)
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// Signals are the pre-computed auxiliary scalars attached to a tip by the
// upstream model.
type Signals struct {
	SharpBoost      float64 `json:"sharp_boost"`
	MomentumBoost   float64 `json:"momentum_boost"`
	RestBoost       float64 `json:"rest_boost"`
	H2HWeight       float64 `json:"h2h_weight"`
	BayesConfidence float64 `json:"bayes_confidence"`
	EVSignal        float64 `json:"ev_signal"`
	RefereeRisk     float64 `json:"referee_risk"`
	LineupRisk      float64 `json:"lineup_risk"`
	Liquidity       float64 `json:"liquidity"`
	Entropy         float64 `json:"entropy"`
}

// Tip is one resolved historical recommendation.
type Tip struct {
	Market             string    `json:"market"`
	Side               Side      `json:"recommended_side"`
	EdgePct            float64   `json:"edge_pct"`
	Confidence         float64   `json:"confidence"`
	ImpliedProbability float64   `json:"implied_probability"`
	WasCorrect         bool      `json:"was_correct"`
	MatchTime          time.Time `json:"match_timestamp"`
	Signals            Signals   `json:"signals"`
}

// Valid reports whether the tip can be priced at all.
func (t Tip) Valid() bool {
	return t.ImpliedProbability > 0 && t.ImpliedProbability < 1 && !t.MatchTime.IsZero() && t.Side >= Home && t.Side <= Away
}
