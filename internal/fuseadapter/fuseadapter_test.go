package fuseadapter

import (
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/dedis/rcsfs/internal/cache"
	"github.com/dedis/rcsfs/internal/engine"
	"github.com/dedis/rcsfs/internal/rcserr"
	"github.com/dedis/rcsfs/internal/resolver"
	"github.com/dedis/rcsfs/internal/store"
	"github.com/dedis/rcsfs/internal/xattrs"
)

func newFixture(t *testing.T) *FileSystem {
	t.Helper()
	root := store.Root{Path: t.TempDir()}
	if err := root.Bootstrap(1000, 1000); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	c := cache.New(8, 64)
	r := resolver.New(root, c)
	e := engine.New(root, c, r)
	x := xattrs.New(root, c, r, e)
	return New(root, r, e, x)
}

func TestRenameRefusedCrossDevice(t *testing.T) {
	fs := newFixture(t)
	status := fs.Rename("a", "b", &fuse.Context{})
	if want := fuse.Status(rcserr.CrossDevice.Errno()); status != want {
		t.Errorf("got status %v, want %v (EXDEV)", status, want)
	}
}

func TestLinkRefusedPermission(t *testing.T) {
	fs := newFixture(t)
	status := fs.Link("a", "b", &fuse.Context{})
	if want := fuse.Status(rcserr.PermissionDenied.Errno()); status != want {
		t.Errorf("got status %v, want %v (EPERM)", status, want)
	}
}

func TestCreateThenGetAttr(t *testing.T) {
	fs := newFixture(t)
	ctx := &fuse.Context{}
	ctx.Owner.Uid = 1000
	ctx.Owner.Gid = 1000

	f, status := fs.Create("a", 0, 0644, ctx)
	if status != fuse.OK {
		t.Fatalf("Create status = %v", status)
	}
	if f == nil {
		t.Fatal("expected non-nil file handle")
	}

	attr, status := fs.GetAttr("a", ctx)
	if status != fuse.OK {
		t.Fatalf("GetAttr status = %v", status)
	}
	if attr.Owner.Uid != 1000 {
		t.Errorf("got uid %d, want 1000", attr.Owner.Uid)
	}
}

func TestUnlinkMarksDeleted(t *testing.T) {
	fs := newFixture(t)
	ctx := &fuse.Context{}
	if _, status := fs.Create("a", 0, 0644, ctx); status != fuse.OK {
		t.Fatalf("Create: %v", status)
	}
	if status := fs.Unlink("a", ctx); status != fuse.OK {
		t.Fatalf("Unlink: %v", status)
	}
	if _, status := fs.GetAttr("a", ctx); status == fuse.OK {
		t.Error("expected GetAttr to fail after unlink")
	}
}

func TestUnlinkSurvivesCacheEviction(t *testing.T) {
	fs := newFixture(t)
	ctx := &fuse.Context{}
	if _, status := fs.Create("a", 0, 0644, ctx); status != fuse.OK {
		t.Fatalf("Create: %v", status)
	}
	if status := fs.Unlink("a", ctx); status != fuse.OK {
		t.Fatalf("Unlink: %v", status)
	}

	// Simulate the cached record falling out of the bounded LRU: the
	// tombstone must have been durably persisted to metadata.a, not
	// only set on the in-memory record.
	fs.Engine.Cache.Drop("/a")

	if _, status := fs.GetAttr("a", ctx); status == fuse.OK {
		t.Error("expected GetAttr to still report the file deleted after cache eviction")
	}
}

func TestRmdirRefusesNonEmpty(t *testing.T) {
	fs := newFixture(t)
	ctx := &fuse.Context{}
	if status := fs.Mkdir("d", 0755, ctx); status != fuse.OK {
		t.Fatalf("Mkdir: %v", status)
	}
	if _, status := fs.Create("d/f", 0, 0644, ctx); status != fuse.OK {
		t.Fatalf("Create child: %v", status)
	}
	if status := fs.Rmdir("d", ctx); status == fuse.OK {
		t.Error("expected Rmdir to refuse a non-empty directory")
	}
}
