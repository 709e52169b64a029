package publish

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gweber/quotico-sub000/evolve"
)

func record() *evolve.StrategyRecord {
	return &evolve.StrategyRecord{
		RunID:      "run-1",
		Market:     "EPL/1x2",
		Status:     evolve.StatusSuccess,
		Deployable: true,
		Genes:      map[string]float64{"min_edge": 4.5},
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	s := FileSink{Path: filepath.Join(dir, "out", "{market}.json")}
	require.NoError(t, s.Publish(context.Background(), record()))

	blob, err := os.ReadFile(filepath.Join(dir, "out", "EPL_1x2.json"))
	require.NoError(t, err)
	var got evolve.StrategyRecord
	require.NoError(t, json.Unmarshal(blob, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, evolve.StatusSuccess, got.Status)
	assert.Equal(t, 4.5, got.Genes["min_edge"])

	_, err = os.Stat(filepath.Join(dir, "out", "EPL_1x2.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

type sinkFunc func(*evolve.StrategyRecord) error

func (f sinkFunc) Publish(_ context.Context, rec *evolve.StrategyRecord) error { return f(rec) }

func TestMultiAttemptsEverySink(t *testing.T) {
	var calls int
	ok := sinkFunc(func(*evolve.StrategyRecord) error { calls++; return nil })
	bad := sinkFunc(func(*evolve.StrategyRecord) error { calls++; return errors.New("down") })

	err := Multi{bad, ok, bad}.Publish(context.Background(), record())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run-1")
	assert.Contains(t, err.Error(), "down; down")
	assert.Equal(t, 3, calls)

	assert.NoError(t, Multi{ok}.Publish(context.Background(), record()))
	assert.NoError(t, Multi(nil).Publish(context.Background(), record()))
}

func TestRecordEncodings(t *testing.T) {
	args, err := recordArgs(record())
	require.NoError(t, err)
	require.Len(t, args, 5)
	assert.Equal(t, "run-1", args[0])
	assert.Equal(t, "success", args[2])
	assert.JSONEq(t, args[4].(string), mustJSON(t, record()))

	values, err := recordValues(record())
	require.NoError(t, err)
	assert.Equal(t, "EPL/1x2", values["market"])
	assert.Equal(t, true, values["deployable"])

	r := &RedisSink{Stream: "strategies"}
	assert.Equal(t, []string{"strategies.EPL/1x2", "strategies"}, r.streams("EPL/1x2"))
}

func mustJSON(t *testing.T, v interface{}) string {
	blob, err := json.Marshal(v)
	require.NoError(t, err)
	return string(blob)
}
