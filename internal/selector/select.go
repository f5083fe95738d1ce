// Package selector implements the version-selection policy of
// spec.md §4.4: given a metadata record and a requested (vid, svid),
// decide which Version is effective.
//
// Per the REDESIGN FLAGS, the process-level "see deleted" override is
// an explicit Options field here, never global state: every call site
// that needs to look through a tombstone (principally the creation
// engine resurrecting a deleted file) passes SeeDeleted: true on that
// one call, instead of toggling and restoring a shared flag around a
// block of code.
package selector

import "github.com/dedis/rcsfs/internal/meta"

// Options controls selection behavior beyond the requested version.
type Options struct {
	// SeeDeleted allows Select to return a version even when the
	// record's Deleted flag is set, used when resurrecting a path.
	SeeDeleted bool
}

// Select picks the effective Version of md for the requested (vid,
// svid), following spec.md §4.4 steps 1-4. ok is false when no
// version satisfies the request (including the deleted-without-
// SeeDeleted case).
func Select(md *meta.Metadata, vid, svid meta.Sel, opts Options) (v meta.Version, ok bool) {
	if vid.IsLatest() {
		if md.Deleted && !opts.SeeDeleted {
			return meta.Version{}, false
		}
		if !md.HasPin() {
			return md.Head()
		}
		vid, svid = md.PinVID, md.PinSVID
	}

	if v, ok := matchExact(md.Versions, vid, svid); ok {
		return v, true
	}
	return fallback(md, opts)
}

// Lookup finds the version in md satisfying (vid, svid) by direct
// lookup only, with no fallback-to-head recovery: a miss is always
// ok == false. Used to validate a pin target (spec.md §4.7: "reject
// if no version matches") before accepting it — Select's fallback
// would otherwise silently substitute the head version once md
// already has any pin active, regardless of whether the newly
// requested target actually exists.
func Lookup(md *meta.Metadata, vid, svid meta.Sel) (meta.Version, bool) {
	if vid.IsLatest() {
		return md.Head()
	}
	return matchExact(md.Versions, vid, svid)
}

// matchExact walks the (decreasing) version list for the entry whose
// (vid, svid) matches the request exactly, with no recovery of any
// kind on a miss.
func matchExact(versions []meta.Version, vid, svid meta.Sel) (meta.Version, bool) {
	target := vid.Value()

	idx := -1
	for i, cand := range versions {
		if cand.VID <= target {
			idx = i
			break
		}
	}
	if idx < 0 || versions[idx].VID != target {
		return meta.Version{}, false
	}

	if svid.IsLatest() {
		return versions[idx], true
	}
	wantSVID := svid.Value()

	for i := idx; i < len(versions); i++ {
		cand := versions[i]
		if cand.VID != target {
			break // ran past the run of entries sharing this vid
		}
		if cand.SVID > wantSVID {
			continue
		}
		if cand.SVID == wantSVID {
			return cand, true
		}
		break // decreasing order: svid values only get smaller from here
	}
	return meta.Version{}, false
}

// fallback implements the "silent recovery from dangling pin" rule:
// if md has an active pin and the requested version can't be found,
// fall back to the real head instead of reporting absence (invariant
// 3). Without a pin, a miss is a miss.
func fallback(md *meta.Metadata, opts Options) (meta.Version, bool) {
	if !md.HasPin() {
		return meta.Version{}, false
	}
	if md.Deleted && !opts.SeeDeleted {
		return meta.Version{}, false
	}
	return md.Head()
}
