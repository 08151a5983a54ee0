package journalindex

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/netdata/journal-engine/metrics"
)

// shardCount follows the teacher's own sharded-lock granularity convention:
// enough shards to cut contention under concurrent lookups without paying
// for a shard per file.
const shardCount = 32

// CacheKey is the full identity SPEC_FULL.md §4.9 keys the index cache by:
// file identity, facet set, timestamp field, and schema version. Two builds
// of the same file with different facet sets or timestamp fields are
// different cache entries, not the same one returned unconditionally.
type CacheKey struct {
	Path           string
	FacetSetHash   uint64
	TimestampField string
	SchemaVersion  uint32
}

// NewCacheKey derives a CacheKey for a lookup against facetFields and
// timestampField, against the current SchemaVersion.
func NewCacheKey(path string, facetFields []string, timestampField string) CacheKey {
	return CacheKey{
		Path:           path,
		FacetSetHash:   hashFacetSet(facetFields),
		TimestampField: timestampField,
		SchemaVersion:  SchemaVersion,
	}
}

func keyForIndex(idx *FileIndex) CacheKey {
	return CacheKey{
		Path:           idx.FilePath,
		FacetSetHash:   hashFacetSet(idx.FacetFields),
		TimestampField: idx.TimestampField,
		SchemaVersion:  idx.SchemaVersion,
	}
}

func hashFacetSet(fields []string) uint64 {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	h := fnv.New64a()
	for _, f := range sorted {
		_, _ = h.Write([]byte(f))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

type shard struct {
	mu      sync.Mutex
	entries map[CacheKey]*FileIndex
}

// Cache is a hybrid memory+disk cache of FileIndex values, generalizing the
// teacher's single-mutex FileCache into per-shard locking keyed by
// CacheKey. A miss in memory falls through to the on-disk sidecar (via
// Load) before the caller has to pay for a full rebuild; a disk sidecar
// built for a different facet set or timestamp field is treated as a miss
// rather than trusted.
type Cache struct {
	shards [shardCount]*shard

	hits   counter
	misses counter
}

type counter struct {
	mu sync.Mutex
	n  uint64
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[CacheKey]*FileIndex)}
	}
	return c
}

// shardFor routes purely on path so every CacheKey for the same file lands
// in the same shard, letting Evict drop every facet-set/timestamp-field
// variant of a removed file with one shard lock.
func (c *Cache) shardFor(path string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return c.shards[h.Sum32()%shardCount]
}

// Get returns a cached FileIndex for key, checking the in-memory shard
// first and falling back to the on-disk sidecar via Load. A disk hit is
// promoted into memory so subsequent lookups avoid the sidecar read; a
// sidecar whose facet set, timestamp field, or schema version doesn't
// match key is a miss, not a stale hit.
func (c *Cache) Get(key CacheKey) (*FileIndex, bool) {
	s := c.shardFor(key.Path)
	s.mu.Lock()
	idx, ok := s.entries[key]
	s.mu.Unlock()
	if ok {
		c.hits.inc()
		metrics.IndexCacheLookupsTotal.WithLabelValues("hit").Inc()
		return idx, true
	}

	idx, err := Load(key.Path)
	if err != nil || keyForIndex(idx) != key {
		c.misses.inc()
		metrics.IndexCacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	c.hits.inc()
	metrics.IndexCacheLookupsTotal.WithLabelValues("hit_disk").Inc()
	s.mu.Lock()
	s.entries[key] = idx
	s.mu.Unlock()
	return idx, true
}

// Put installs idx into the in-memory shard and persists it to disk.
// Persistence failures are returned but the in-memory entry is kept either
// way, since a rebuilt index is still useful for the lifetime of the
// process even if it could not be written to disk.
func (c *Cache) Put(idx *FileIndex) error {
	key := keyForIndex(idx)
	s := c.shardFor(key.Path)
	s.mu.Lock()
	s.entries[key] = idx
	s.mu.Unlock()
	return Save(idx)
}

// Evict drops every cached variant of path (any facet set or timestamp
// field) from memory without touching its sidecar files, used when a
// registry.Event reports the file was removed.
func (c *Cache) Evict(path string) {
	s := c.shardFor(path)
	s.mu.Lock()
	for key := range s.entries {
		if key.Path == path {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

// Stats reports cumulative hit/miss counts since the Cache was created.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.value(), c.misses.value()
}
