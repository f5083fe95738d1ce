// Command rcsfs mounts a copy-on-write versioning filesystem backed by
// a private version store, per spec.md's external interfaces (§6) and
// SPEC_FULL.md §10's kernel-filesystem binding.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"

	"github.com/dedis/rcsfs/internal/cache"
	"github.com/dedis/rcsfs/internal/config"
	"github.com/dedis/rcsfs/internal/engine"
	"github.com/dedis/rcsfs/internal/fuseadapter"
	"github.com/dedis/rcsfs/internal/resolver"
	"github.com/dedis/rcsfs/internal/store"
	"github.com/dedis/rcsfs/internal/xattrs"
)

func main() {
	cfg := config.Load()

	root := store.Root{Path: cfg.StorePath}
	if err := root.Bootstrap(uint32(os.Getuid()), uint32(os.Getgid())); err != nil {
		log.Fatalf("rcsfs: bootstrapping version store at %s: %v", cfg.StorePath, err)
	}

	c := cache.New(cache.DefaultBucketCount, cache.DefaultSoftLimit)
	r := resolver.New(root, c)
	e := engine.New(root, c, r)
	x := xattrs.New(root, c, r, e)

	adapter := fuseadapter.New(root, r, e, x)

	nfs := pathfs.NewPathNodeFs(adapter, nil)
	conn := nodefs.NewFileSystemConnector(nfs.Root(), nodefs.NewOptions())
	server, err := fuse.NewServer(conn.RawFS(), cfg.MountPoint, &fuse.MountOptions{
		SingleThreaded: true,
		FsName:         "rcsfs",
		Name:           "rcsfs",
	})
	if err != nil {
		log.Fatalf("rcsfs: mounting at %s: %v", cfg.MountPoint, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("rcsfs: unmounting %s", cfg.MountPoint)
		if err := server.Unmount(); err != nil {
			log.Printf("rcsfs: unmount failed: %v", err)
		}
	}()

	log.Printf("rcsfs: mounted %s on %s", cfg.StorePath, cfg.MountPoint)
	server.Serve()
}
