package meta

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParseMetadataFile decodes the contents of a metadata.<name> file
// (spec.md §4.2). Malformed lines are skipped rather than treated as
// an error — this is a deliberate best-effort recovery policy, not an
// oversight: a partially-corrupt metadata file should still yield
// whatever history remains intact rather than losing the whole file.
//
// The in-memory list is built newest-first by prepending each valid
// line in file order (the file itself is written oldest-first).
func ParseMetadataFile(data []byte) (versions []Version, deleted bool) {
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ":", 6)
		if len(fields) != 6 {
			continue
		}

		vid, errVID := strconv.ParseInt(fields[0], 10, 64)
		svid, errSVID := strconv.ParseInt(fields[1], 10, 64)
		modeRaw, errMode := strconv.ParseUint(fields[2], 8, 32)
		uid, errUID := strconv.ParseUint(fields[3], 10, 32)
		gid, errGID := strconv.ParseUint(fields[4], 10, 32)
		basename := fields[5]

		if errVID != nil || errSVID != nil || errMode != nil || errUID != nil || errGID != nil {
			continue
		}
		if vid < 0 || svid < 0 {
			continue
		}

		if vid == 0 {
			if svid == 0 && modeRaw == 0 && uid == 0 && gid == 0 && basename == "" {
				deleted = true
			}
			// vid == 0 never names a real version (invariant 1: vid >= 1);
			// anything else with vid == 0 is silently dropped.
			continue
		}

		v := Version{
			VID:      vid,
			SVID:     svid,
			Mode:     os.FileMode(modeRaw) & 0777,
			UID:      uint32(uid),
			GID:      uint32(gid),
			Basename: basename,
		}
		versions = append([]Version{v}, versions...)
	}
	return versions, deleted
}

// EncodeMetadataFile renders versions (newest-first, as held in
// memory) and the deleted flag into the on-disk oldest-first line
// format, including the deletion sentinel when appropriate.
func EncodeMetadataFile(versions []Version, deleted bool) []byte {
	var b strings.Builder
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		fmt.Fprintf(&b, "%d:%d:%04o:%d:%d:%s\n", v.VID, v.SVID, v.Mode&0777, v.UID, v.GID, v.Basename)
	}
	if deleted {
		b.WriteString("0:0:0000:0:0:\n")
	}
	return []byte(b.String())
}

// ParseDefaultFile decodes a dfl-meta.<name> file: a single line
// "<vid>.<svid>\n". Per spec.md §4.2/§7, any parse failure is treated
// identically to the file being absent — the caller gets ok == false
// and should behave as if there is no pin, never surfacing a
// user-visible error for a corrupt pin file.
//
// A literal -1 in either field is the LATEST sentinel, matching the
// wire-format convention named in the GLOSSARY; everywhere else in
// this package that sentinel is represented by the Sel sum type
// instead of a raw integer.
func ParseDefaultFile(data []byte) (pinVID, pinSVID Sel, ok bool) {
	s := strings.TrimSpace(string(data))
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return Latest(), Latest(), false
	}
	vid, errVID := strconv.ParseInt(parts[0], 10, 64)
	svid, errSVID := strconv.ParseInt(parts[1], 10, 64)
	if errVID != nil || errSVID != nil {
		return Latest(), Latest(), false
	}

	if vid < 0 {
		pinVID = Latest()
	} else {
		pinVID = Exact(vid)
	}
	if svid < 0 {
		pinSVID = Latest()
	} else {
		pinSVID = Exact(svid)
	}
	return pinVID, pinSVID, true
}

// EncodeDefaultFile renders a pin as the single-line dfl-meta.<name>
// format. Callers should not call this for a cleared pin
// (Latest,Latest): per spec.md §4.2, writing the pin to LATEST means
// removing the file (internal/xattrs does this with atomicfile.Remove),
// not writing "-1.-1" here.
func EncodeDefaultFile(pinVID, pinSVID Sel) []byte {
	vid := int64(-1)
	if !pinVID.IsLatest() {
		vid = pinVID.Value()
	}
	svid := int64(-1)
	if !pinSVID.IsLatest() {
		svid = pinSVID.Value()
	}
	return []byte(fmt.Sprintf("%d.%d\n", vid, svid))
}
