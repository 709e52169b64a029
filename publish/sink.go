// Package publish delivers finished strategy records to their consumers.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/gweber/quotico-sub000/evolve"
)

// Sink receives one finished record.
type Sink interface {
	Publish(ctx context.Context, rec *evolve.StrategyRecord) error
}

// Multi publishes to every sink in order. All sinks are attempted; the
// failures are joined into one error.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, rec *evolve.StrategyRecord) error {
	var failed []string
	for _, s := range m {
		if err := s.Publish(ctx, rec); err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("publishing %s: %s", rec.RunID, strings.Join(failed, "; "))
	}
	return nil
}
