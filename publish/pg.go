package publish

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jackc/pgx"

	"github.com/gweber/quotico-sub000/evolve"
)

const stmtRecord = "insert_strategy_record"

const insertRecord = "INSERT INTO strategy_records (run_id, market, status, deployable, record) VALUES ($1, $2, $3, $4, $5)"

// PgSink stores records in the strategy_records table.
type PgSink struct {
	*pgx.ConnPool
}

func ConnectPg(url string) (*PgSink, error) {
	cfg, err := pgx.ParseConnectionString(url)
	if err != nil {
		return nil, err
	}
	pool, err := pgx.NewConnPool(pgx.ConnPoolConfig{
		ConnConfig: cfg,
		AfterConnect: func(conn *pgx.Conn) error {
			_, err := conn.Prepare(stmtRecord, insertRecord)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return &PgSink{ConnPool: pool}, nil
}

// recordArgs flattens rec into the insert's parameters.
func recordArgs(rec *evolve.StrategyRecord) ([]interface{}, error) {
	blob, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return []interface{}{rec.RunID, rec.Market, string(rec.Status), rec.Deployable, string(blob)}, nil
}

func (db *PgSink) Publish(ctx context.Context, rec *evolve.StrategyRecord) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	if _, err := db.ExecEx(ctx, stmtRecord, nil, args...); err != nil {
		return err
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		log.Printf("warning: storing record %s took %s", rec.RunID, d)
	}
	return nil
}
