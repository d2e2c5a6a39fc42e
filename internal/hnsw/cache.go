package hnsw

import lru "github.com/hashicorp/golang-lru/v2"

// defaultCacheCapacity bounds the decoded-vector cache. mmap reads are
// O(1) already; the cache exists to avoid repeatedly copying/decoding the
// same hot vectors out of the mapping during a single search_layer burst,
// the same role internal/storage.Storage.vectorCache played in the
// teacher's sparse file format.
const defaultCacheCapacity = 4096

// vectorCache wraps an LRU of decoded float32 vectors keyed by internal
// ID: the cache is consulted first, and the mmap store is read only on
// a miss. There is no lock or second cache check around the miss path.
type vectorCache struct {
	cache *lru.Cache[uint64, []float32]
}

func newVectorCache(capacity int) *vectorCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	c, _ := lru.New[uint64, []float32](capacity)
	return &vectorCache{cache: c}
}

func (c *vectorCache) get(id uint64) ([]float32, bool) {
	return c.cache.Get(id)
}

func (c *vectorCache) put(id uint64, v []float32) {
	c.cache.Add(id, v)
}

func (c *vectorCache) evict(id uint64) {
	c.cache.Remove(id)
}
