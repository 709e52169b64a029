package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gweber/quotico-sub000/announce"
	"github.com/gweber/quotico-sub000/checkpoint"
	"github.com/gweber/quotico-sub000/evolve"
	"github.com/gweber/quotico-sub000/monitor"
	"github.com/gweber/quotico-sub000/publish"
	"github.com/gweber/quotico-sub000/tips"
)

func main() {
	configPath := flag.String("config", "", "path to evolver.toml")
	synthetic := flag.Int("synthetic", 0, "evolve on this many generated tips instead of the configured input")
	flag.Parse()

	st, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalln("error:", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	byMarket, err := loadTips(ctx, st, *synthetic)
	if err != nil {
		log.Fatalln("error:", err)
	}
	sink, err := openSinks(st)
	if err != nil {
		log.Fatalln("error:", err)
	}

	var obs observers
	if st.MonitorAddr != "" {
		hub := monitor.NewHub()
		srv := &http.Server{Addr: st.MonitorAddr, Handler: monitor.Router(hub)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("error: monitor: %s", err)
			}
		}()
		defer srv.Close()
		log.Printf("monitor listening on %s", st.MonitorAddr)
		obs = append(obs, hub)
	}
	var irc *announce.IRC
	ircCtx, ircStop := context.WithCancel(context.Background())
	defer ircStop()
	if st.IRCChannel != "" && st.IRCClientID != "" {
		tokens := announce.NewTokenPass(ircCtx, st.IRCClientID, st.IRCSecret, st.IRCTokenURL, st.IRCTokenFile)
		irc = announce.NewIRC(st.IRCServer, st.IRCChannel, st.IRCNick, tokens)
		go irc.Run(ircCtx)
		obs = append(obs, irc)
	}

	store := &checkpoint.Store{Dir: st.CheckpointDir}
	results := evolve.RunMarkets(ctx, st.Run, byMarket, store, obs)
	failed := report(st, results, sink)

	if irc != nil {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		irc.Drain(dctx)
		cancel()
	}
	if failed {
		os.Exit(1)
	}
}

func loadTips(ctx context.Context, st *settings, synthetic int) (map[string][]tips.Tip, error) {
	var recs []tips.Tip
	switch {
	case synthetic > 0:
		market := st.InputMarket
		if market == "" {
			market = "synthetic"
		}
		recs = tips.Synthetic(tips.SynthConfig{
			N:           synthetic,
			Seed:        st.Run.Seed,
			Market:      market,
			Start:       time.Now().UTC().Add(-time.Duration(synthetic) * 12 * time.Hour),
			HouseMargin: 0.05,
			EdgeSide:    tips.Home,
			Edge:        0.1,
		})
	case st.InputFile != "":
		var err error
		if recs, err = tips.LoadFile(st.InputFile); err != nil {
			return nil, err
		}
	case st.InputDB != "":
		pool, err := tips.ConnectPg(st.InputDB)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		since := time.Now().UTC().Add(-time.Duration(st.Run.LookbackYears * 365.25 * 24 * float64(time.Hour)))
		src := &tips.PgSource{Pool: pool}
		if recs, err = src.Load(ctx, st.InputMarket, since); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("no input configured: set input.file or input.db.url, or pass -synthetic")
	}
	byMarket := tips.GroupByMarket(recs)
	if st.InputMarket != "" {
		byMarket = map[string][]tips.Tip{st.InputMarket: byMarket[st.InputMarket]}
	}
	log.Printf("loaded %d tips across %d markets", len(recs), len(byMarket))
	return byMarket, nil
}

func openSinks(st *settings) (publish.Multi, error) {
	var sinks publish.Multi
	if st.OutputFile != "" {
		sinks = append(sinks, publish.FileSink{Path: st.OutputFile})
	}
	if st.OutputDB != "" {
		db, err := publish.ConnectPg(st.OutputDB)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
	}
	if st.RedisAddr != "" {
		sinks = append(sinks, publish.NewRedisSink(st.RedisAddr, st.RedisStream))
	}
	return sinks, nil
}

// report publishes every finished record and logs the rest. It returns
// true when a market failed for a reason other than missing data.
func report(st *settings, results map[string]evolve.MarketResult, sink publish.Sink) bool {
	markets := make([]string, 0, len(results))
	for m := range results {
		markets = append(markets, m)
	}
	sort.Strings(markets)
	var failed bool
	for _, m := range markets {
		r := results[m]
		var re *evolve.RunError
		if r.Err != nil {
			log.Printf("error: market %s: %s", m, r.Err)
			if !errors.As(r.Err, &re) || re.Kind != evolve.KindInsufficientData {
				failed = true
			}
		}
		if r.Record == nil {
			continue
		}
		log.Printf("market %s: %s", m, announce.Format(r.Record))
		switch {
		case r.Record.Status == evolve.StatusCancelled:
			log.Printf("market %s cancelled, rerun with run.resume to continue", m)
		case st.Run.DryRun:
			log.Printf("dry run, not publishing %s", r.Record.RunID)
		default:
			// publishing outlives the signal so a finished record is not lost
			pctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sink.Publish(pctx, r.Record); err != nil {
				log.Printf("error: %s", err)
				failed = true
			}
			cancel()
		}
	}
	return failed
}

// observers fans events out to every configured observer.
type observers []evolve.Observer

func (o observers) Generation(p evolve.Progress) {
	for _, x := range o {
		x.Generation(p)
	}
}

func (o observers) Finished(rec *evolve.StrategyRecord) {
	for _, x := range o {
		x.Finished(rec)
	}
}
