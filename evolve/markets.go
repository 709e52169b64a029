package evolve

import (
	"context"
	"hash/fnv"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/gweber/quotico-sub000/checkpoint"
	"github.com/gweber/quotico-sub000/tips"
)

// MarketResult is the outcome of one market's run.
type MarketResult struct {
	Market string
	Record *StrategyRecord
	Err    error
}

// MarketSeed derives a market's seed from the base seed.
func MarketSeed(seed uint64, market string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(market))
	return seed + h.Sum64()
}

// RunMarkets evolves every market independently, at most
// cfg.MarketsConcurrency at a time. Each market gets its own seed and
// checkpoint namespace.
func RunMarkets(ctx context.Context, cfg Config, byMarket map[string][]tips.Tip, store *checkpoint.Store, obs Observer) map[string]MarketResult {
	markets := make([]string, 0, len(byMarket))
	for m := range byMarket {
		markets = append(markets, m)
	}
	sort.Strings(markets)

	p := pool.NewWithResults[MarketResult]().WithMaxGoroutines(max(cfg.MarketsConcurrency, 1))
	for _, m := range markets {
		m := m
		mcfg := cfg
		mcfg.Market = m
		mcfg.Seed = MarketSeed(cfg.Seed, m)
		p.Go(func() MarketResult {
			e := &Engine{Config: mcfg, Store: store, Observer: obs}
			rec, err := e.Run(ctx, byMarket[m])
			return MarketResult{Market: m, Record: rec, Err: err}
		})
	}
	out := make(map[string]MarketResult, len(markets))
	for _, r := range p.Wait() {
		out[r.Market] = r
	}
	return out
}
