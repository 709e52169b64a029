package publish

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gweber/quotico-sub000/evolve"
)

// FileSink writes each record as indented JSON. Path may contain {market},
// which is replaced by the record's market with path separators removed.
type FileSink struct {
	Path string
}

func (f FileSink) path(market string) string {
	m := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(market)
	return strings.ReplaceAll(f.Path, "{market}", m)
}

func (f FileSink) Publish(ctx context.Context, rec *evolve.StrategyRecord) error {
	blob, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	path := f.path(rec.Market)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(blob, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
