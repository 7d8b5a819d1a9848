package dataloader

import (
	"strings"
	"testing"
)

func TestSampleCacheBasicOperations(t *testing.T) {
	cache := NewSampleCache(4)

	if _, ok := cache.Get("a"); ok {
		t.Error("expected miss on empty cache")
	}

	data := []float32{1, 2, 3}
	cache.Put("a", data)
	got, ok := cache.Get("a")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("unexpected cached data %v", got)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cache.Len())
	}
}

func TestSampleCacheLRUEviction(t *testing.T) {
	cache := NewSampleCache(2)
	cache.Put("a", []float32{1})
	cache.Put("b", []float32{2})

	// Touch "a" so "b" becomes the eviction candidate.
	cache.Get("a")
	cache.Put("c", []float32{3})

	if _, ok := cache.Get("b"); ok {
		t.Error("expected least recently used entry to be evicted")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("new entry missing")
	}
}

func TestSampleCacheDisabled(t *testing.T) {
	cache := NewSampleCache(0)
	cache.Put("a", []float32{1})
	if cache.Len() != 0 {
		t.Error("disabled cache stored an entry")
	}
}

func TestSampleCachePutExisting(t *testing.T) {
	cache := NewSampleCache(2)
	cache.Put("a", []float32{1})
	cache.Put("a", []float32{9})
	got, ok := cache.Get("a")
	if !ok || got[0] != 9 {
		t.Errorf("expected updated value 9, got %v", got)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry after update, got %d", cache.Len())
	}
}

func TestSampleCacheClear(t *testing.T) {
	cache := NewSampleCache(4)
	cache.Put("a", []float32{1})
	cache.Get("a")
	cache.Clear()
	if cache.Len() != 0 {
		t.Error("clear did not empty the cache")
	}
	// Statistics stay cumulative across Clear.
	if cache.Stats().Hits != 1 {
		t.Errorf("expected hit count preserved, got %d", cache.Stats().Hits)
	}
}

func TestSampleCacheStats(t *testing.T) {
	cache := NewSampleCache(4)
	cache.Put("a", []float32{1})
	cache.Get("a")
	cache.Get("missing")

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 50 {
		t.Errorf("expected 50%% hit rate, got %g", stats.HitRate)
	}
	if !strings.Contains(stats.String(), "Hit Rate: 50.0%") {
		t.Errorf("unexpected stats string %q", stats.String())
	}
}

func TestKey(t *testing.T) {
	if Key("/data/img.png", 90) != "/data/img.png#90" {
		t.Errorf("unexpected key %q", Key("/data/img.png", 90))
	}
}
