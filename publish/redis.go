package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gweber/quotico-sub000/evolve"
)

// RedisSink appends records to a per-market stream and a global stream.
type RedisSink struct {
	Client *redis.Client
	Stream string
}

func NewRedisSink(addr, stream string) *RedisSink {
	if stream == "" {
		stream = "strategies"
	}
	return &RedisSink{Client: redis.NewClient(&redis.Options{Addr: addr}), Stream: stream}
}

func (r *RedisSink) streams(market string) []string {
	return []string{fmt.Sprintf("%s.%s", r.Stream, market), r.Stream}
}

func recordValues(rec *evolve.StrategyRecord) (map[string]interface{}, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	return map[string]interface{}{
		"data":       string(data),
		"run_id":     rec.RunID,
		"market":     rec.Market,
		"status":     string(rec.Status),
		"deployable": rec.Deployable,
	}, nil
}

func (r *RedisSink) Publish(ctx context.Context, rec *evolve.StrategyRecord) error {
	values, err := recordValues(rec)
	if err != nil {
		return err
	}
	for _, key := range r.streams(rec.Market) {
		if err := r.Client.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: values}).Err(); err != nil {
			return fmt.Errorf("xadd %s: %w", key, err)
		}
	}
	return nil
}

func (r *RedisSink) Close() error {
	return r.Client.Close()
}
