// Package cache implements the bucketed, per-bucket LRU metadata
// cache described in spec.md §4.3.
//
// The reference implementation's doubly-linked list is raw pointer
// splicing, which the REDESIGN FLAGS call out as a use-after-free
// hazard around eviction. Here each bucket is a container/list.List
// (the same idiom aalhour-rockyardkv/internal/cache/lru_cache.go uses
// for its block cache), so splicing to MRU and evicting from LRU are
// both safe list operations instead of raw pointer surgery.
package cache

import (
	"container/list"
	"sync"

	"github.com/dedis/rcsfs/internal/meta"
	"github.com/dedis/rcsfs/internal/vpath"
)

// DefaultBucketCount matches the reference implementation's bucket
// table size.
const DefaultBucketCount = 128

// DefaultSoftLimit matches the reference implementation's eviction
// threshold.
const DefaultSoftLimit = 256

// Cache is a fixed-size table of per-bucket LRU lists of
// *meta.Metadata, keyed by the 8-bit XOR hash of the virtual path
// modulo the bucket count.
type Cache struct {
	mu        sync.Mutex
	buckets   []*list.List
	softLimit int
	count     int
}

// New creates a Cache with bucketCount buckets (DefaultBucketCount if
// <= 0) and a soft eviction limit of softLimit entries
// (DefaultSoftLimit if <= 0).
func New(bucketCount, softLimit int) *Cache {
	if bucketCount <= 0 {
		bucketCount = DefaultBucketCount
	}
	if softLimit <= 0 {
		softLimit = DefaultSoftLimit
	}
	c := &Cache{
		buckets:   make([]*list.List, bucketCount),
		softLimit: softLimit,
	}
	for i := range c.buckets {
		c.buckets[i] = list.New()
	}
	return c
}

func (c *Cache) bucketFor(vp string) *list.List {
	idx := int(vpath.Hash(vp)) % len(c.buckets)
	return c.buckets[idx]
}

// getLocked scans the bucket for vp. Callers must hold c.mu.
func (c *Cache) getLocked(b *list.List, vp string) (*meta.Metadata, bool) {
	for e := b.Front(); e != nil; e = e.Next() {
		md := e.Value.(*meta.Metadata)
		if md.VPath == vp {
			b.MoveToFront(e)
			return md, true
		}
	}
	return nil, false
}

// Get returns the cached record for vpath and promotes it to
// most-recently-used, or reports a miss.
func (c *Cache) Get(vp string) (*meta.Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(c.bucketFor(vp), vp)
}

// Add inserts md at the head of its bucket's LRU list. Add does not
// check for an existing entry at the same path — callers (the
// resolver, the creation engine) must ensure they never insert the
// same virtual path twice, since a duplicate would shadow the
// original until it, too, is evicted, leaking the shadowed one.
func (c *Cache) Add(md *meta.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucketFor(md.VPath).PushFront(md)
	c.count++
	c.evictLocked()
}

// Drop removes the record for vpath if present, reporting whether it
// was found.
func (c *Cache) Drop(vp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bucketFor(vp)
	for e := b.Front(); e != nil; e = e.Next() {
		md := e.Value.(*meta.Metadata)
		if md.VPath == vp {
			b.Remove(e)
			c.count--
			return true
		}
	}
	return false
}

// FindMaximalMatch returns the largest k such that the record for the
// first k path components is cached, along with that record. k == 0
// matches the root. ok is false only if even the root is not cached
// (which should not happen once the resolver has been used at all).
func (c *Cache) FindMaximalMatch(components []string) (k int, md *meta.Metadata, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := len(components); k >= 0; k-- {
		vp := vpath.JoinVirtual(components[:k])
		b := c.bucketFor(vp)
		if m, found := c.getLocked(b, vp); found {
			return k, m, true
		}
	}
	return 0, nil, false
}

// Count returns the number of records currently cached.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Cleanup forces an eviction pass regardless of the soft limit,
// evicting the least-recently-used half of each bucket's entries.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictHalfLocked()
}

// evictLocked triggers an eviction pass once the soft limit has been
// reached. Eviction works per bucket rather than globally: a single
// hot bucket reaching the limit shouldn't have its entries evicted
// disproportionately relative to colder buckets, and scanning bucket
// lists independently is O(bucket depth) rather than requiring a
// separate global recency index.
func (c *Cache) evictLocked() {
	if c.count < c.softLimit {
		return
	}
	c.evictHalfLocked()
}

func (c *Cache) evictHalfLocked() {
	for _, b := range c.buckets {
		n := b.Len()
		toEvict := n / 2
		for i := 0; i < toEvict; i++ {
			e := b.Back()
			if e == nil {
				break
			}
			b.Remove(e)
			c.count--
		}
	}
}
