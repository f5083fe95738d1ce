// Package store names the on-disk layout of the version store
// (spec.md §6): the metadata/pin/version file naming convention
// mirrored under every real directory, and the root bootstrap.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dedis/rcsfs/internal/atomicfile"
	"github.com/dedis/rcsfs/internal/meta"
)

const (
	metaPrefix = "metadata."
	dflPrefix  = "dfl-meta."
)

// MetaFileName returns the metadata file name for a virtual entry
// named basename in some real directory.
func MetaFileName(basename string) string { return metaPrefix + basename }

// DflFileName returns the pin file name for a virtual entry named
// basename in some real directory.
func DflFileName(basename string) string { return dflPrefix + basename }

// VersionFileName returns the real file name for version vid of a
// virtual entry named basename: "<vid in 8 hex digits>.<basename>".
func VersionFileName(vid int64, basename string) string {
	return fmt.Sprintf("%08X.%s", vid, basename)
}

// SplitMetaFileName reports whether name is a metadata file name, and
// if so, the virtual basename it describes.
func SplitMetaFileName(name string) (basename string, ok bool) {
	if !strings.HasPrefix(name, metaPrefix) {
		return "", false
	}
	return name[len(metaPrefix):], true
}

// Root identifies the version store's backing directory on the real
// file system. It is threaded explicitly through the resolver and
// engine rather than kept as a package-level global, per the
// REDESIGN FLAGS.
type Root struct {
	Path string
}

// MetaPath returns the real path of the root metadata file
// ("<root>/metadata.").
func (r Root) MetaPath() string { return filepath.Join(r.Path, MetaFileName("")) }

// DflPath returns the real path of the root pin file
// ("<root>/dfl-meta.").
func (r Root) DflPath() string { return filepath.Join(r.Path, DflFileName("")) }

// Bootstrap ensures the version store root exists and has a root
// metadata file, creating a fresh one (a single version pointing at
// the root directory itself) if the directory is new. It is
// idempotent: mounting an existing store leaves it untouched.
func (r Root) Bootstrap(uid, gid uint32) error {
	if err := os.MkdirAll(r.Path, 0700); err != nil {
		return err
	}
	if _, err := os.Stat(r.MetaPath()); err == nil {
		return nil // already bootstrapped
	} else if !os.IsNotExist(err) {
		return err
	}

	root := meta.Version{
		VID:      1,
		SVID:     0,
		Mode:     0700,
		UID:      uid,
		GID:      gid,
		Basename: "",
	}
	data := meta.EncodeMetadataFile([]meta.Version{root}, false)
	return atomicfile.WriteFile(r.MetaPath(), data, 0600)
}
