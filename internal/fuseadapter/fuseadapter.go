// Package fuseadapter implements the POSIX adapter of spec.md §4.8:
// a thin github.com/hanwen/go-fuse/v2/fuse/pathfs.FileSystem that
// translates kernel callbacks into core-package operations and
// rcserr values into fuse.Status, carrying no policy of its own.
package fuseadapter

import (
	"context"
	"os"
	"strings"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"

	"github.com/dedis/rcsfs/internal/engine"
	"github.com/dedis/rcsfs/internal/meta"
	"github.com/dedis/rcsfs/internal/rcserr"
	"github.com/dedis/rcsfs/internal/resolver"
	"github.com/dedis/rcsfs/internal/selector"
	"github.com/dedis/rcsfs/internal/store"
	"github.com/dedis/rcsfs/internal/xattrs"
)

// FileSystem implements pathfs.FileSystem over the core versioning
// packages. Every method here does argument translation only: path
// splitting, fuse.Context uid/gid extraction, rcserr-to-fuse.Status
// mapping. All policy lives in internal/resolver, internal/engine,
// and internal/xattrs.
type FileSystem struct {
	pathfs.FileSystem // embeds the no-op default for methods we don't override

	Root     store.Root
	Resolver *resolver.Resolver
	Engine   *engine.Engine
	Xattrs   *xattrs.Protocol
}

// New builds a FileSystem over the given core components.
func New(root store.Root, r *resolver.Resolver, e *engine.Engine, x *xattrs.Protocol) *FileSystem {
	return &FileSystem{
		FileSystem: pathfs.NewDefaultFileSystem(),
		Root:       root,
		Resolver:   r,
		Engine:     e,
		Xattrs:     x,
	}
}

func vp(name string) string {
	if name == "" {
		return "/"
	}
	return "/" + name
}

func toStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	if e, ok := err.(*rcserr.Error); ok {
		return fuse.Status(e.Errno())
	}
	return fuse.EIO
}

// GetAttr resolves name and stats its real path, reporting the
// stored permission bits merged with lstat's type bits (the same
// merge rule internal/xattrs uses for rcs.metadata_dump).
func (fs *FileSystem) GetAttr(name string, context *fuse.Context) (*fuse.Attr, fuse.Status) {
	path := vp(name)
	md, err := fs.Resolver.TranslateToMetadata(path, selector.Options{})
	if err != nil {
		return nil, toStatus(err)
	}

	eff, ok := selector.Select(md, meta.Latest(), meta.Latest(), selector.Options{})
	if !ok {
		return nil, fuse.ENOENT
	}
	info, serr := os.Lstat(eff.RFile)
	if serr != nil {
		return nil, fuse.ToStatus(serr)
	}

	attr := &fuse.Attr{
		Size:  uint64(info.Size()),
		Mode:  uint32(eff.Mode&os.ModePerm) | statTypeBits(info.Mode()),
		Nlink: 1,
		Owner: fuse.Owner{Uid: eff.UID, Gid: eff.GID},
		Mtime: uint64(info.ModTime().Unix()),
	}
	return attr, fuse.OK
}

func statTypeBits(m os.FileMode) uint32 {
	switch {
	case m.IsDir():
		return 0040000
	case m&os.ModeSymlink != 0:
		return 0120000
	default:
		return 0100000
	}
}

// Chmod bumps a subversion with the new permission bits, per
// spec.md §4.6's chmod/chown policy.
func (fs *FileSystem) Chmod(name string, mode uint32, context *fuse.Context) fuse.Status {
	path := vp(name)
	_, err := fs.Engine.NewSubversion(path, os.FileMode(mode&0777), context.Owner.Uid, context.Owner.Gid)
	return toStatus(err)
}

// Chown bumps a subversion with the new owner, reusing the current
// mode.
func (fs *FileSystem) Chown(name string, uid uint32, gid uint32, context *fuse.Context) fuse.Status {
	path := vp(name)
	md, err := fs.Resolver.TranslateToMetadata(path, selector.Options{})
	if err != nil {
		return toStatus(err)
	}
	head, ok := md.Head()
	if !ok {
		return fuse.ENOENT
	}
	_, err = fs.Engine.NewSubversion(path, head.Mode, uid, gid)
	return toStatus(err)
}

// Truncate pushes a new version, then truncates the new real file.
func (fs *FileSystem) Truncate(name string, size uint64, fctx *fuse.Context) fuse.Status {
	path := vp(name)
	v, err := fs.Engine.NewVersion(context.Background(), path, true, fctx.Owner.Uid, fctx.Owner.Gid)
	if err != nil {
		return toStatus(err)
	}
	if err := os.Truncate(v.RFile, int64(size)); err != nil {
		return fuse.ToStatus(err)
	}
	return fuse.OK
}

// Mkdir materializes a new directory.
func (fs *FileSystem) Mkdir(name string, mode uint32, context *fuse.Context) fuse.Status {
	_, err := fs.Engine.NewDirectory(vp(name), engine.NewFileArgs{
		Mode: os.FileMode(mode & 0777), UID: context.Owner.Uid, GID: context.Owner.Gid,
	})
	return toStatus(err)
}

// Symlink materializes a new symlink.
func (fs *FileSystem) Symlink(value string, linkName string, context *fuse.Context) fuse.Status {
	_, err := fs.Engine.NewSymlink(vp(linkName), value, engine.NewFileArgs{
		Mode: 0777, UID: context.Owner.Uid, GID: context.Owner.Gid,
	})
	return toStatus(err)
}

// Readlink reads the symlink's effective real target.
func (fs *FileSystem) Readlink(name string, context *fuse.Context) (string, fuse.Status) {
	real, err := fs.Resolver.Resolve(vp(name), selector.Options{})
	if err != nil {
		return "", toStatus(err)
	}
	target, rerr := os.Readlink(real)
	if rerr != nil {
		return "", fuse.ToStatus(rerr)
	}
	return target, fuse.OK
}

// Rename is refused with a cross-device error: clients must fall
// back to copy+delete, since the one-record-per-path invariant
// cannot survive an in-place rename.
func (fs *FileSystem) Rename(oldName string, newName string, context *fuse.Context) fuse.Status {
	return fuse.Status(rcserr.CrossDevice.Errno())
}

// Link is refused: hard links would let two virtual paths share one
// version record, breaking the one-record-per-path invariant.
func (fs *FileSystem) Link(oldName string, newName string, context *fuse.Context) fuse.Status {
	return fuse.Status(rcserr.PermissionDenied.Errno())
}

// Unlink marks the file deleted rather than removing bytes.
func (fs *FileSystem) Unlink(name string, context *fuse.Context) fuse.Status {
	return fs.markDeleted(vp(name))
}

// Rmdir verifies the directory has no live children, then marks it
// deleted.
func (fs *FileSystem) Rmdir(name string, context *fuse.Context) fuse.Status {
	path := vp(name)
	real, err := fs.Resolver.Resolve(path, selector.Options{})
	if err != nil {
		return toStatus(err)
	}
	entries, rerr := os.ReadDir(real)
	if rerr != nil {
		return fuse.ToStatus(rerr)
	}
	for _, e := range entries {
		basename, ok := store.SplitMetaFileName(e.Name())
		if !ok {
			continue
		}
		childPath := path
		if childPath == "/" {
			childPath = "/" + basename
		} else {
			childPath = childPath + "/" + basename
		}
		if md, merr := fs.Resolver.TranslateToMetadata(childPath, selector.Options{}); merr == nil && !md.Deleted {
			return fuse.Status(rcserr.NotEmpty.Errno())
		}
	}
	return fs.markDeleted(path)
}

func (fs *FileSystem) markDeleted(path string) fuse.Status {
	return toStatus(fs.Engine.Delete(path))
}

// GetXAttr, ListXAttr, SetXAttr, and RemoveXAttr delegate entirely to
// internal/xattrs.
func (fs *FileSystem) GetXAttr(name string, attribute string, context *fuse.Context) ([]byte, fuse.Status) {
	data, err := fs.Xattrs.Get(vp(name), attribute)
	return data, toStatus(err)
}

func (fs *FileSystem) ListXAttr(name string, context *fuse.Context) ([]string, fuse.Status) {
	names, err := fs.Xattrs.List(vp(name))
	return names, toStatus(err)
}

func (fs *FileSystem) SetXAttr(name string, attr string, data []byte, flags int, context *fuse.Context) fuse.Status {
	return toStatus(fs.Xattrs.Set(vp(name), attr, data, context.Owner.Uid))
}

func (fs *FileSystem) RemoveXAttr(name string, attr string, context *fuse.Context) fuse.Status {
	return toStatus(fs.Xattrs.Remove(vp(name), attr))
}

// Open pushes a new version first when opening for writing (per
// spec.md §4.8), then opens the (possibly new) real file.
func (fs *FileSystem) Open(name string, flags uint32, fctx *fuse.Context) (nodefs.File, fuse.Status) {
	path := vp(name)
	if flags&(uint32(os.O_WRONLY)|uint32(os.O_RDWR)) != 0 {
		if _, err := fs.Engine.NewVersion(context.Background(), path, true, fctx.Owner.Uid, fctx.Owner.Gid); err != nil {
			return nil, toStatus(err)
		}
	}
	real, err := fs.Resolver.Resolve(path, selector.Options{})
	if err != nil {
		return nil, toStatus(err)
	}
	f, oerr := os.OpenFile(real, int(flags), 0)
	if oerr != nil {
		return nil, fuse.ToStatus(oerr)
	}
	return nodefs.NewLoopbackFile(f), fuse.OK
}

// Create materializes a new regular file and returns it open.
func (fs *FileSystem) Create(name string, flags uint32, mode uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	path := vp(name)
	v, err := fs.Engine.NewRegularFile(path, engine.NewFileArgs{
		Mode: os.FileMode(mode & 0777), UID: context.Owner.Uid, GID: context.Owner.Gid,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	f, oerr := os.OpenFile(v.RFile, int(flags)|os.O_CREATE, 0600)
	if oerr != nil {
		return nil, fuse.ToStatus(oerr)
	}
	return nodefs.NewLoopbackFile(f), fuse.OK
}

// OpenDir enumerates entries whose name starts with "metadata." and
// whose corresponding virtual path is not deleted, per spec.md §4.8's
// getdir policy.
func (fs *FileSystem) OpenDir(name string, context *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	path := vp(name)
	real, err := fs.Resolver.Resolve(path, selector.Options{})
	if err != nil {
		return nil, toStatus(err)
	}
	raw, rerr := os.ReadDir(real)
	if rerr != nil {
		return nil, fuse.ToStatus(rerr)
	}

	var out []fuse.DirEntry
	for _, e := range raw {
		basename, ok := store.SplitMetaFileName(e.Name())
		if !ok || basename == "" {
			continue
		}
		childPath := joinChild(path, basename)
		md, merr := fs.Resolver.TranslateToMetadata(childPath, selector.Options{})
		if merr != nil || md.Deleted {
			continue
		}
		head, ok := md.Head()
		if !ok {
			continue
		}
		out = append(out, fuse.DirEntry{Name: basename, Mode: uint32(head.Mode&os.ModePerm) | 0100000})
	}
	return out, fuse.OK
}

func joinChild(dir, basename string) string {
	if dir == "/" {
		return "/" + basename
	}
	return strings.TrimSuffix(dir, "/") + "/" + basename
}

func (fs *FileSystem) String() string { return "rcsfs" }
