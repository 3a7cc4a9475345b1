// Package cache memoizes render stages by content address. Entries are
// written once per key and never replaced; callers must treat cached
// values as immutable. Caches are bounded and evict least recently used
// entries.
package cache

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "seisterrain3d_cache_requests_total",
	Help: "Number of cache lookups by cache and result.",
}, []string{"cache", "result"})

var cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "seisterrain3d_cache_evictions_total",
	Help: "Number of entries evicted from a full cache.",
}, []string{"cache"})

// Key hashes a namespace and an ordered tuple of parts into a cache key.
// Parts are formatted with %v, so they must print deterministically.
func Key(namespace string, parts ...interface{}) string {
	d := xxhash.New()
	d.WriteString(namespace)
	for _, p := range parts {
		d.Write([]byte{0})
		d.WriteString(fmt.Sprintf("%T=%v", p, p))
	}
	return namespace + ":" + strconv.FormatUint(d.Sum64(), 16)
}

// DefaultMaxEntries is used when a cache is created without a bound
const DefaultMaxEntries = 64

// Cache is a bounded write-once map from key to value, safe for concurrent
// use. When full, the least recently used entry is evicted; an entry is
// never replaced while it is held.
type Cache[V any] struct {
	name  string
	items *lru.Cache[string, V]

	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
}

// New creates an empty cache holding at most maxEntries values; name labels
// its metrics. A non-positive maxEntries means DefaultMaxEntries.
func New[V any](name string, maxEntries int) *Cache[V] {
	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache[V]{
		name:      name,
		hits:      cacheRequests.WithLabelValues(name, "hit"),
		misses:    cacheRequests.WithLabelValues(name, "miss"),
		evictions: cacheEvictions.WithLabelValues(name),
	}
	// Only fails for a non-positive size
	c.items, _ = lru.NewWithEvict[string, V](maxEntries, func(string, V) {
		c.evictions.Inc()
	})
	return c
}

// Name returns the cache's metric label
func (c *Cache[V]) Name() string {
	return c.name
}

// Get returns the value stored under key
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.items.Get(key)
}

// Put stores v under key unless the key is already set, and returns the
// value the cache holds afterwards
func (c *Cache[V]) Put(key string, v V) V {
	if existing, ok, _ := c.items.PeekOrAdd(key, v); ok {
		return existing
	}
	return v
}

// GetOrCompute returns the cached value for key, or computes and stores it.
// Errors are returned and not cached. The boolean reports a cache hit.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		c.hits.Inc()
		return v, true, nil
	}
	c.misses.Inc()

	v, err := compute()
	if err != nil {
		var zero V
		return zero, false, err
	}
	return c.Put(key, v), false, nil
}

// Len returns the number of entries
func (c *Cache[V]) Len() int {
	return c.items.Len()
}
