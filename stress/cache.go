package stress

import (
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gweber/quotico-sub000/genome"
)

// KeyPrecision is the rounding step applied to genes before caching.
const KeyPrecision = 1e-6

// evaluation is one cached stress evaluation at a fixed sample count.
type evaluation struct {
	Bets       int
	Bootstrap  BootstrapStats
	MonteCarlo MonteCarloStats
	// Skipped is set when the bootstrap prefilter failed and the Monte-Carlo
	// stage never ran.
	Skipped bool
}

// Cache memoizes evaluations by rounded genome, sample count and fail-fast
// flag. Entries are written once; concurrent readers are safe.
type Cache struct {
	mu     sync.RWMutex
	m      map[string]evaluation
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCache() *Cache {
	return &Cache{m: make(map[string]evaluation)}
}

func (c *Cache) get(key string) (evaluation, bool) {
	if c == nil {
		return evaluation{}, false
	}
	c.mu.RLock()
	v, ok := c.m[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *Cache) put(key string, v evaluation) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if _, ok := c.m[key]; !ok {
		c.m[key] = v
	}
	c.mu.Unlock()
}

// Len returns the number of cached evaluations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Key renders the cache key for g.
func Key(g genome.Genome, n int, failFast bool) string {
	var sb strings.Builder
	for _, v := range g {
		sb.WriteString(strconv.FormatInt(int64(math.Round(v/KeyPrecision)), 36))
		sb.WriteByte(',')
	}
	sb.WriteString(strconv.Itoa(n))
	if failFast {
		sb.WriteString(",ff")
	}
	return sb.String()
}

func keyHash(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}
