package tips

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx"
)

// LoadFile reads tips from a JSON array or a JSON-lines file.
func LoadFile(path string) ([]Tip, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	blob = bytes.TrimSpace(blob)
	if len(blob) == 0 {
		return nil, nil
	}
	if blob[0] == '[' {
		var recs []Tip
		if err := json.Unmarshal(blob, &recs); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return FilterValid(recs), nil
	}
	var recs []Tip
	sc := bufio.NewScanner(bytes.NewReader(blob))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var t Tip
		if err := json.Unmarshal(text, &t); err != nil {
			return nil, fmt.Errorf("decoding %s line %d: %w", path, line, err)
		}
		recs = append(recs, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return FilterValid(recs), nil
}

// FilterValid returns the tips that can be priced, in a new slice.
func FilterValid(recs []Tip) []Tip {
	out := make([]Tip, 0, len(recs))
	var dropped int
	for _, t := range recs {
		if !t.Valid() {
			dropped++
			continue
		}
		out = append(out, t)
	}
	if dropped > 0 {
		log.Printf("warning: dropped %d unpriceable tips", dropped)
	}
	return out
}

// PgSource reads resolved tips out of Postgres.
type PgSource struct {
	Pool  *pgx.ConnPool
	Table string
}

func ConnectPg(url string) (*pgx.ConnPool, error) {
	cfg, err := pgx.ParseConnectionString(url)
	if err != nil {
		return nil, err
	}
	return pgx.NewConnPool(pgx.ConnPoolConfig{ConnConfig: cfg})
}

const tipColumns = "market, recommended_side, edge_pct, confidence, implied_probability, was_correct, match_timestamp, " +
	"sharp_boost, momentum_boost, rest_boost, h2h_weight, bayes_confidence, ev_signal, " +
	"referee_risk, lineup_risk, liquidity, entropy"

// Load returns every resolved tip for market newer than since, ordered by
// match time. An empty market selects all markets.
func (s *PgSource) Load(ctx context.Context, market string, since time.Time) (recs []Tip, err error) {
	table := s.Table
	if table == "" {
		table = "resolved_tips"
	}
	query := "SELECT " + tipColumns + " FROM " + table + " WHERE was_correct IS NOT NULL AND match_timestamp > $1 AND ($2 = '' OR market = $2) ORDER BY match_timestamp"
	rows, err := s.Pool.QueryEx(ctx, query, nil, since, market)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var t Tip
		var side string
		if err = rows.Scan(&t.Market, &side, &t.EdgePct, &t.Confidence, &t.ImpliedProbability, &t.WasCorrect, &t.MatchTime,
			&t.Signals.SharpBoost, &t.Signals.MomentumBoost, &t.Signals.RestBoost, &t.Signals.H2HWeight,
			&t.Signals.BayesConfidence, &t.Signals.EVSignal, &t.Signals.RefereeRisk, &t.Signals.LineupRisk,
			&t.Signals.Liquidity, &t.Signals.Entropy); err != nil {
			return
		}
		if t.Side, err = ParseSide(side); err != nil {
			return
		}
		recs = append(recs, t)
	}
	if err = rows.Err(); err != nil {
		return
	}
	recs = FilterValid(recs)
	return
}

// GroupByMarket splits tips into per-market slices, preserving order.
func GroupByMarket(recs []Tip) map[string][]Tip {
	out := make(map[string][]Tip)
	for _, t := range recs {
		out[t.Market] = append(out[t.Market], t)
	}
	return out
}
