package cache

import (
	"fmt"
	"testing"

	"github.com/dedis/rcsfs/internal/meta"
)

func md(vp string) *meta.Metadata {
	return &meta.Metadata{VPath: vp, Versions: []meta.Version{{VID: 1}}}
}

func TestGetAddMiss(t *testing.T) {
	c := New(4, 16)
	if _, ok := c.Get("/a"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Add(md("/a"))
	got, ok := c.Get("/a")
	if !ok {
		t.Fatal("expected hit after Add")
	}
	if got.VPath != "/a" {
		t.Errorf("got %q, want /a", got.VPath)
	}
}

func TestGetPromotesToFront(t *testing.T) {
	c := New(1, 64) // force all entries into the same bucket
	c.Add(md("/a"))
	c.Add(md("/b"))
	c.Add(md("/c"))

	// Touch /a so it becomes MRU; /b is now the coldest.
	if _, ok := c.Get("/a"); !ok {
		t.Fatal("expected hit for /a")
	}

	c.Cleanup() // evicts LRU half of the bucket: 3 entries -> evict 1 (the LRU, /b)
	if _, ok := c.Get("/b"); ok {
		t.Error("/b should have been evicted as least-recently-used")
	}
	if _, ok := c.Get("/a"); !ok {
		t.Error("/a should have survived eviction (it was MRU)")
	}
	if _, ok := c.Get("/c"); !ok {
		t.Error("/c should have survived eviction")
	}
}

func TestDrop(t *testing.T) {
	c := New(4, 16)
	c.Add(md("/a"))
	if !c.Drop("/a") {
		t.Fatal("expected Drop to report found")
	}
	if _, ok := c.Get("/a"); ok {
		t.Fatal("expected miss after Drop")
	}
	if c.Drop("/a") {
		t.Fatal("expected second Drop to report not found")
	}
}

func TestFindMaximalMatch(t *testing.T) {
	c := New(8, 64)
	c.Add(md("/"))
	c.Add(md("/a"))
	c.Add(md("/a/b"))

	k, found, ok := c.FindMaximalMatch([]string{"a", "b", "c"})
	if !ok {
		t.Fatal("expected a match")
	}
	if k != 2 {
		t.Errorf("k = %d, want 2", k)
	}
	if found.VPath != "/a/b" {
		t.Errorf("found.VPath = %q, want /a/b", found.VPath)
	}
}

func TestFindMaximalMatchRootOnly(t *testing.T) {
	c := New(8, 64)
	c.Add(md("/"))

	k, found, ok := c.FindMaximalMatch([]string{"x", "y"})
	if !ok || k != 0 {
		t.Fatalf("k=%d ok=%v, want k=0 ok=true", k, ok)
	}
	if found.VPath != "/" {
		t.Errorf("found.VPath = %q, want /", found.VPath)
	}
}

func TestCleanupEvictsUnderPressure(t *testing.T) {
	c := New(1, 8)
	for i := 0; i < 20; i++ {
		c.Add(md(fmt.Sprintf("/f%d", i)))
	}
	if c.Count() >= 20 {
		t.Errorf("expected automatic eviction once soft limit reached, count = %d", c.Count())
	}
}
