package dataloader

import (
	"container/list"
	"fmt"
	"sync"
)

// SampleCache is an LRU cache for preprocessed samples, keyed by image
// path and rotation angle. It is safe for concurrent use by prefetch
// workers.
type SampleCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	lru     *list.List
	lruMap  map[string]*list.Element
	maxSize int

	hits   int64
	misses int64
}

// NewSampleCache creates a cache holding up to maxSize samples. A zero
// or negative size disables caching.
func NewSampleCache(maxSize int) *SampleCache {
	return &SampleCache{
		entries: make(map[string][]float32),
		lru:     list.New(),
		lruMap:  make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

// Key builds the cache key for a sample.
func Key(path string, angle int) string {
	return fmt.Sprintf("%s#%d", path, angle)
}

// Get retrieves a cached sample, marking it most recently used.
func (sc *SampleCache) Get(key string) ([]float32, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if data, exists := sc.entries[key]; exists {
		sc.lru.MoveToFront(sc.lruMap[key])
		sc.hits++
		return data, true
	}
	sc.misses++
	return nil, false
}

// Put stores a sample, evicting the least recently used entries when
// the cache is full.
func (sc *SampleCache) Put(key string, data []float32) {
	if sc.maxSize <= 0 {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if _, exists := sc.entries[key]; exists {
		sc.entries[key] = data
		sc.lru.MoveToFront(sc.lruMap[key])
		return
	}

	sc.lruMap[key] = sc.lru.PushFront(key)
	sc.entries[key] = data

	for len(sc.entries) > sc.maxSize {
		oldest := sc.lru.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(string)
		sc.lru.Remove(oldest)
		delete(sc.lruMap, evicted)
		delete(sc.entries, evicted)
	}
}

// Len returns the number of cached samples.
func (sc *SampleCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.entries)
}

// Clear empties the cache, keeping cumulative statistics.
func (sc *SampleCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.entries = make(map[string][]float32)
	sc.lru = list.New()
	sc.lruMap = make(map[string]*list.Element)
}

// CacheStats holds hit and miss counters.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// Stats returns a snapshot of cache statistics.
func (sc *SampleCache) Stats() CacheStats {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	stats := CacheStats{
		Size:    len(sc.entries),
		MaxSize: sc.maxSize,
		Hits:    sc.hits,
		Misses:  sc.misses,
	}
	if total := sc.hits + sc.misses; total > 0 {
		stats.HitRate = float64(sc.hits) / float64(total) * 100
	}
	return stats
}

func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
