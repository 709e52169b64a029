package announce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gweber/quotico-sub000/evolve"
	"github.com/gweber/quotico-sub000/fitness"
	"github.com/gweber/quotico-sub000/stress"
)

func TestFormat(t *testing.T) {
	rec := &evolve.StrategyRecord{
		RunID:      "abc",
		Market:     "EPL/1x2",
		Status:     evolve.StatusSuccess,
		Deployable: true,
		Validation: &fitness.Metrics{ROI: 0.042, Bets: 120},
		Stress:     &stress.Result{MonteCarlo: stress.MonteCarloStats{Sims: 100, RuinProb: 0.031}},
		Provenance: evolve.Provenance{Stage: "ideal"},
	}
	assert.Equal(t, "EPL/1x2: success stage=ideal roi=4.2% bets=120 ruin=3.1% deployable run=abc", Format(rec))

	rec = &evolve.StrategyRecord{RunID: "x", Market: "BL1", Status: evolve.StatusInsufficientData, Error: "too few tips"}
	assert.Equal(t, "BL1: insufficient_data (too few tips) run=x", Format(rec))
}

func TestFinishedQueuesWithoutBlocking(t *testing.T) {
	a := NewIRC("irc.example.org:6697", "quotico", "bot", nil)
	assert.Equal(t, "#quotico", a.Channel)
	for i := 0; i < queueSize+5; i++ {
		a.Finished(&evolve.StrategyRecord{RunID: "r"})
	}
	assert.Len(t, a.lines, queueSize)
}

func TestTokenPassCachesToken(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "token.json")
	p := NewTokenPass(context.Background(), "id", "secret", srv.URL, file)
	tok, err := p.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
	_, err = p.Token()
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	_, err = os.Stat(file)
	require.NoError(t, err)
	again := NewTokenPass(context.Background(), "id", "secret", srv.URL, file)
	tok, err = again.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
