package cache_test

import (
	"testing"
	"time"

	"github.com/parquedb/parquedb/cache"
)

func TestGetPutRoundTrip(t *testing.T) {
	c := cache.New(cache.Options{Capacity: 100})
	key := cache.Key{Path: "data/posts/compacted/1-10.parquet", ETag: "abc"}
	c.Put(key, []byte("hello"), 5)

	v, ok := c.Get(key, false)
	if !ok || string(v.([]byte)) != "hello" {
		t.Fatalf("expected cache hit with value hello, got %v, %v", v, ok)
	}
}

func TestETagMismatchMisses(t *testing.T) {
	c := cache.New(cache.Options{Capacity: 100})
	c.Put(cache.Key{Path: "p", ETag: "v1"}, "data", 1)

	_, ok := c.Get(cache.Key{Path: "p", ETag: "v2"}, false)
	if ok {
		t.Fatalf("expected miss for stale etag")
	}
}

func TestBypassAlwaysMisses(t *testing.T) {
	c := cache.New(cache.Options{Capacity: 100})
	key := cache.Key{Path: "p", ETag: "v1"}
	c.Put(key, "data", 1)

	_, ok := c.Get(key, true)
	if ok {
		t.Fatalf("expected bypass to miss even though entry exists")
	}
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.New(cache.Options{Capacity: 2})
	c.Put(cache.Key{Path: "a"}, 1, 1)
	c.Put(cache.Key{Path: "b"}, 2, 1)
	c.Get(cache.Key{Path: "a"}, false) // touch a, making b the LRU victim
	c.Put(cache.Key{Path: "c"}, 3, 1)

	if _, ok := c.Get(cache.Key{Path: "b"}, false); ok {
		t.Fatalf("expected b to be evicted as least recently used")
	}
	if _, ok := c.Get(cache.Key{Path: "a"}, false); !ok {
		t.Fatalf("expected a to survive eviction")
	}
	if _, ok := c.Get(cache.Key{Path: "c"}, false); !ok {
		t.Fatalf("expected c to be present")
	}
}

func TestTTLExpires(t *testing.T) {
	c := cache.New(cache.Options{Capacity: 100, TTL: time.Millisecond})
	c.Put(cache.Key{Path: "p"}, "v", 1)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(cache.Key{Path: "p"}, false); ok {
		t.Fatalf("expected entry to expire past TTL")
	}
}

func TestInvalidateRemovesAllEtagsForPath(t *testing.T) {
	c := cache.New(cache.Options{Capacity: 100})
	c.Put(cache.Key{Path: "p", ETag: "v1"}, "a", 1)
	c.Invalidate("p")

	if _, ok := c.Get(cache.Key{Path: "p", ETag: "v1"}, false); ok {
		t.Fatalf("expected invalidate to remove entry regardless of etag")
	}
}
