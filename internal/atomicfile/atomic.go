// Package atomicfile provides the low-level best-effort atomic file
// rewrite used by the metadata codec.
//
// This is adapted from the temp-file-then-rename idiom in
// dedis/tlc/go/model/qscod/fs/atomic.go (WriteFileOnce) and
// dedis/tlc/go/lib/fs/verst (writeVerFile). The teacher's WriteFileOnce
// is exclusive: it fails if the target already exists, because verst
// treats each version file as write-once. Metadata files here are
// rewritten in full on every mutation (§4.2 of the spec is explicit
// that writing is "a full rewrite, never an in-place edit"), so
// WriteFile below replaces the target via os.Rename instead of
// os.Link, trading verst's write-once guarantee for plain overwrite.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile atomically (best-effort) replaces the file at filename
// with data: it writes to a temporary file in the same directory,
// syncs it, then renames it into place. No caller ever observes a
// short or zero-length file at filename.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	dir, name := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	pattern := fmt.Sprintf(".%s-*.tmp", name)
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		tmp.Close()
		if !ok {
			os.Remove(tmpName)
		}
	}()

	if n, err := tmp.Write(data); err != nil {
		return err
	} else if n < len(data) {
		return fmt.Errorf("atomicfile: short write to %s", tmpName)
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	ok = true
	return nil
}

// Remove removes the file at filename, treating absence as success —
// the caller (internal/xattrs, clearing a pin) never needs to
// distinguish "removed" from "was already gone".
func Remove(filename string) error {
	err := os.Remove(filename)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
