// Package xattrs implements the extended-attribute protocol of
// spec.md §4.7: the three reserved attribute names
// (rcs.locked_version, rcs.metadata_dump, rcs.purge) plus transparent
// pass-through of everything else to the real file via
// github.com/pkg/xattr, the same library rclone, gcsfuse, and minio
// use for this.
package xattrs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/xattr"

	"github.com/dedis/rcsfs/internal/atomicfile"
	"github.com/dedis/rcsfs/internal/cache"
	"github.com/dedis/rcsfs/internal/engine"
	"github.com/dedis/rcsfs/internal/meta"
	"github.com/dedis/rcsfs/internal/rcserr"
	"github.com/dedis/rcsfs/internal/resolver"
	"github.com/dedis/rcsfs/internal/selector"
	"github.com/dedis/rcsfs/internal/store"
	"github.com/dedis/rcsfs/internal/vpath"
)

const (
	attrLockedVersion = "rcs.locked_version"
	attrMetadataDump  = "rcs.metadata_dump"
	attrPurge         = "rcs.purge"
)

// Reserved reports whether name is one of the three attributes this
// package intercepts, rather than passing through to the real file.
func Reserved(name string) bool {
	switch name {
	case attrLockedVersion, attrMetadataDump, attrPurge:
		return true
	}
	return false
}

// Protocol implements the get/set/remove/list operations for the
// reserved attributes, and forwards everything else to the real file.
type Protocol struct {
	Root     store.Root
	Cache    *cache.Cache
	Resolver *resolver.Resolver
	Engine   *engine.Engine
}

// New builds a Protocol sharing the given core components.
func New(root store.Root, c *cache.Cache, r *resolver.Resolver, e *engine.Engine) *Protocol {
	return &Protocol{Root: root, Cache: c, Resolver: r, Engine: e}
}

// List advertises rcs.locked_version and rcs.metadata_dump (but not
// rcs.purge, a write-only control channel), plus every name the real
// file itself carries.
func (p *Protocol) List(vp string) ([]string, error) {
	names := []string{attrLockedVersion, attrMetadataDump}

	real, err := p.Resolver.Resolve(vp, selector.Options{})
	if err != nil {
		return nil, err
	}
	passthrough, err := xattr.LList(real)
	if err != nil && !isUnsupported(err) {
		return nil, rcserr.Wrap("listxattr", vp, err)
	}
	return append(names, passthrough...), nil
}

// Get dispatches to the reserved-attribute handler, or passes through
// to the real file's attribute table.
func (p *Protocol) Get(vp, name string) ([]byte, error) {
	switch name {
	case attrLockedVersion:
		return p.getLockedVersion(vp)
	case attrMetadataDump:
		return p.getMetadataDump(vp)
	case attrPurge:
		return nil, rcserr.New(rcserr.PermissionDenied, "getxattr", vp)
	}
	real, err := p.Resolver.Resolve(vp, selector.Options{})
	if err != nil {
		return nil, err
	}
	data, err := xattr.LGet(real, name)
	if err != nil {
		return nil, rcserr.Wrap("getxattr", vp, err)
	}
	return data, nil
}

// Set dispatches to the reserved-attribute handler, or passes through.
func (p *Protocol) Set(vp, name string, value []byte, uid uint32) error {
	switch name {
	case attrLockedVersion:
		return p.setLockedVersion(vp, value, uid)
	case attrMetadataDump:
		return rcserr.New(rcserr.PermissionDenied, "setxattr", vp)
	case attrPurge:
		return p.setPurge(vp, value)
	}
	real, err := p.Resolver.Resolve(vp, selector.Options{})
	if err != nil {
		return err
	}
	if err := xattr.LSet(real, name, value); err != nil {
		return rcserr.Wrap("setxattr", vp, err)
	}
	return nil
}

// Remove refuses on all three reserved names (per spec.md's table,
// remove is refused for every one of them) and passes through
// otherwise.
func (p *Protocol) Remove(vp, name string) error {
	if Reserved(name) {
		return rcserr.New(rcserr.PermissionDenied, "removexattr", vp)
	}
	real, err := p.Resolver.Resolve(vp, selector.Options{})
	if err != nil {
		return err
	}
	if err := xattr.LRemove(real, name); err != nil {
		return rcserr.Wrap("removexattr", vp, err)
	}
	return nil
}

// getLockedVersion returns "<vid>.<svid>" of the effective pin, or of
// the head version if no pin is active.
func (p *Protocol) getLockedVersion(vp string) ([]byte, error) {
	md, err := p.Resolver.TranslateToMetadata(vp, selector.Options{})
	if err != nil {
		return nil, err
	}
	vid, svid := md.PinVID, md.PinSVID
	if !md.HasPin() {
		head, ok := md.Head()
		if !ok {
			return nil, rcserr.New(rcserr.NoSuchEntry, "getxattr", vp)
		}
		vid, svid = meta.Exact(head.VID), meta.Exact(head.SVID)
	}
	return []byte(fmt.Sprintf("%d.%d", selVal(vid), selVal(svid))), nil
}

func selVal(s meta.Sel) int64 {
	if s.IsLatest() {
		return -1
	}
	return s.Value()
}

// setLockedVersion implements spec.md §4.7's locked-version set: parse
// "<d>.<d>" strictly, accept (-1,-1)/(vid,-1)/(vid,svid), enforce the
// owner-or-root access check, then persist the pin file (removing it for
// (-1,-1)) and update the in-memory record.
func (p *Protocol) setLockedVersion(vp string, value []byte, callerUID uint32) error {
	s := strings.TrimRight(string(value), "\x00")
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return rcserr.New(rcserr.InvalidArgument, "setxattr", vp)
	}
	rawVID, err1 := strconv.ParseInt(parts[0], 10, 64)
	rawSVID, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return rcserr.New(rcserr.InvalidArgument, "setxattr", vp)
	}

	md, err := p.Resolver.TranslateToMetadata(vp, selector.Options{})
	if err != nil {
		return err
	}

	var wantVID, wantSVID meta.Sel
	if rawVID < 0 {
		wantVID = meta.Latest()
	} else {
		wantVID = meta.Exact(rawVID)
	}
	if rawSVID < 0 {
		wantSVID = meta.Latest()
	} else {
		if wantVID.IsLatest() {
			return rcserr.New(rcserr.InvalidArgument, "setxattr", vp)
		}
		wantSVID = meta.Exact(rawSVID)
	}

	// A direct lookup, not selector.Select: Select's fallback silently
	// substitutes the head version whenever md already has any pin
	// active, which would let a set to a nonexistent vid/svid succeed
	// against a dangling target instead of being rejected.
	target, ok := selector.Lookup(md, wantVID, wantSVID)
	if !ok {
		return rcserr.New(rcserr.InvalidArgument, "setxattr", vp)
	}
	if callerUID != 0 && callerUID != target.UID {
		return rcserr.New(rcserr.PermissionDenied, "setxattr", vp)
	}

	dirBase := filepath.Dir(target.RFile)
	name := vpath.Basename(vp, "/")
	path := filepath.Join(dirBase, store.DflFileName(name))
	var werr error
	if wantVID.IsLatest() && wantSVID.IsLatest() {
		werr = atomicfile.Remove(path)
	} else {
		werr = writeDfl(path, meta.EncodeDefaultFile(wantVID, wantSVID))
	}
	if werr != nil {
		return rcserr.Wrap("setxattr", vp, werr)
	}

	md.PinVID, md.PinSVID = wantVID, wantSVID
	return nil
}

// getMetadataDump produces the "|"-joined per-version record string
// described in spec.md §4.7, merging stored permission bits with
// lstat-derived stat type bits (S_IFDIR, S_IFLNK, else S_IFREG), size,
// and mtime. If lstat fails, the record shows a regular file with size
// 0 and mtime 0.
func (p *Protocol) getMetadataDump(vp string) ([]byte, error) {
	md, err := p.Resolver.TranslateToMetadata(vp, selector.Options{SeeDeleted: true})
	if err != nil {
		return nil, err
	}

	records := make([]string, 0, len(md.Versions))
	for _, v := range md.Versions {
		perm := uint32(v.Mode & os.ModePerm)
		mode := perm | syscall.S_IFREG
		size := int64(0)
		mtime := int64(0)
		if info, err := os.Lstat(v.RFile); err == nil {
			switch {
			case info.IsDir():
				mode = perm | syscall.S_IFDIR
			case info.Mode()&os.ModeSymlink != 0:
				mode = perm | syscall.S_IFLNK
			}
			size = info.Size()
			mtime = info.ModTime().Unix()
		}
		records = append(records, fmt.Sprintf("%d:%d:%o:%d:%d:%d:%d",
			v.VID, v.SVID, mode, v.UID, v.GID, size, mtime))
	}
	return []byte(strings.Join(records, "|")), nil
}

// setPurge implements spec.md §4.7's purge policy: "A" destroys every
// version and the record itself; a decimal n keeps the newest V-n
// versions (inclusive cut, see SPEC_FULL.md's resolution of the Open
// Question) and unlinks the rest.
func (p *Protocol) setPurge(vp string, value []byte) error {
	payload := strings.TrimRight(string(value), "\x00")

	md, err := p.Resolver.TranslateToMetadata(vp, selector.Options{SeeDeleted: true})
	if err != nil {
		return err
	}

	dir := vpath.Dirname(vp, "/")
	dirBase, err := p.Resolver.Resolve(dir, selector.Options{})
	if err != nil {
		return err
	}
	name := vpath.Basename(vp, "/")

	total := len(md.Versions)
	var keep int
	if payload == "A" {
		keep = 0
	} else {
		n, perr := strconv.Atoi(payload)
		if perr != nil || n < 0 {
			return rcserr.New(rcserr.InvalidArgument, "setxattr", vp)
		}
		if n >= total {
			keep = 0
		} else {
			keep = total - n
		}
	}

	toRemove := md.Versions[keep:]
	for _, v := range toRemove {
		if err := os.Remove(v.RFile); err != nil && !os.IsNotExist(err) {
			return rcserr.Wrap("purge", vp, err)
		}
	}

	if keep == 0 {
		metaPath := filepath.Join(dirBase, store.MetaFileName(name))
		if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
			return rcserr.Wrap("purge", vp, err)
		}
		_ = os.Remove(filepath.Join(dirBase, store.DflFileName(name)))
		p.Cache.Drop(vp)
		return nil
	}

	md.Versions = append([]meta.Version(nil), md.Versions[:keep]...)
	data := meta.EncodeMetadataFile(md.Versions, md.Deleted)
	metaPath := filepath.Join(dirBase, store.MetaFileName(name))
	if err := writeDfl(metaPath, data); err != nil {
		return rcserr.Wrap("purge", vp, err)
	}
	return nil
}

func writeDfl(path string, data []byte) error {
	return atomicfile.WriteFile(path, data, 0600)
}

func isUnsupported(err error) bool {
	if errno, ok := err.(*xattr.Error); ok {
		return errno.Err == syscall.ENOTSUP || errno.Err == syscall.EOPNOTSUPP
	}
	return false
}
