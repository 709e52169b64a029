package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gweber/quotico-sub000/genome"
)

// Version is the snapshot file format version.
const Version = 1

// Snapshot is the resumable state of one search. Generation is the index of
// the next generation to evaluate; Population is that generation's input.
type Snapshot struct {
	Version        int         `json:"version"`
	SchemaVersion  int         `json:"schema_version"`
	GeneNames      []string    `json:"gene_names"`
	Stage          string      `json:"stage"`
	Generation     int         `json:"generation"`
	Population     [][]float64 `json:"population"`
	FitnessHistory []float64   `json:"fitness_history"`
	RNG            []byte      `json:"rng"`
	Best           float64     `json:"best"`
	BestGenome     []float64   `json:"best_genome,omitempty"`
	Stagnation     int         `json:"stagnation"`
	Seed           uint64      `json:"seed"`
	SavedAt        time.Time   `json:"saved_at"`
}

// Store keeps one snapshot per namespace under Dir.
type Store struct {
	Dir string
}

func (s Store) path(ns string) string {
	if ns == "" {
		ns = "default"
	}
	ns = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, ns)
	return filepath.Join(s.Dir, ns+".json")
}

// Save writes snap atomically, replacing any previous snapshot of ns.
func (s Store) Save(ns string, snap *Snapshot) error {
	snap.Version = Version
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	path := s.path(ns)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ErrIncompatible marks a snapshot that cannot be resumed.
var ErrIncompatible = errors.New("incompatible checkpoint")

// Load reads the snapshot of ns. A missing file returns an error satisfying
// errors.Is(err, os.ErrNotExist).
func (s Store) Load(ns string) (*Snapshot, error) {
	b, err := os.ReadFile(s.path(ns))
	if err != nil {
		return nil, err
	}
	snap := new(Snapshot)
	if err := json.Unmarshal(b, snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	if snap.Version != Version {
		return nil, fmt.Errorf("%w: file version %d", ErrIncompatible, snap.Version)
	}
	if len(snap.Population) == 0 {
		return nil, fmt.Errorf("%w: empty population", ErrIncompatible)
	}
	return snap, nil
}

// Remove deletes the snapshot of ns, if any.
func (s Store) Remove(ns string) error {
	err := os.Remove(s.path(ns))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Migrate maps every genome of snap onto the current gene order. Genes the
// snapshot lacks get the stage midpoint, unknown genes are dropped, and all
// values are clamped into the stage. It reports whether anything changed.
func Migrate(snap *Snapshot, names []string, st genome.Stage) bool {
	changed := snap.SchemaVersion != genome.SchemaVersion || !slices.Equal(snap.GeneNames, names)
	from := make(map[string]int, len(snap.GeneNames))
	for i, n := range snap.GeneNames {
		from[n] = i
	}
	remap := func(old []float64) []float64 {
		if old == nil {
			return nil
		}
		g := st.Midpoint()
		for i, n := range names {
			if j, ok := from[n]; ok && j < len(old) {
				g[i] = old[j]
			}
		}
		return st.Clamp(g)
	}
	if changed {
		for i, row := range snap.Population {
			snap.Population[i] = remap(row)
		}
		snap.BestGenome = remap(snap.BestGenome)
		snap.GeneNames = append([]string(nil), names...)
		snap.SchemaVersion = genome.SchemaVersion
		return true
	}
	for _, row := range snap.Population {
		st.Clamp(row)
	}
	return false
}
