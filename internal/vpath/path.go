// Package vpath implements the small set of path manipulations the
// versioning engine needs: splitting a virtual path into components,
// joining pieces back into a string, prefix testing, and the
// bucket-placement hash used by the metadata cache.
//
// None of this depends on the real file system; it operates purely on
// strings and component slices.
package vpath

import "strings"

// Split breaks path into an ordered sequence of non-empty components,
// using sep as the separator. Leading, trailing, and repeated
// separators collapse: Split("/a//b/", "/") == []string{"a", "b"}.
func Split(path, sep string) []string {
	if sep == "" {
		sep = "/"
	}
	raw := strings.Split(path, sep)
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// A Piece is one element of the grammar accepted by Join. Exactly one
// of the three constructors below should be used to build a Piece;
// the zero value is an empty literal.
type Piece struct {
	lit string
	seq []string
	sep bool
}

// Literal returns a Piece holding a literal string, inserted verbatim.
func Literal(s string) Piece { return Piece{lit: s} }

// Seq returns a Piece holding an ordered sequence of components, joined
// internally by the separator passed to Join.
func Seq(components []string) Piece { return Piece{seq: components} }

// ForceSep returns a Piece that forces a separator to be emitted at
// this position, regardless of what neighboring pieces would imply.
func ForceSep() Piece { return Piece{sep: true} }

// Join renders pieces into a single string, inserting sep between
// consecutive pieces that both produced non-empty text, and wherever a
// ForceSep piece appears — except that a separator is never inserted
// at the very start or the very end of the result, and never
// immediately before another forced separator. A ForceSep between two
// texts yields a single separator, not two.
func Join(sep string, pieces ...Piece) string {
	if sep == "" {
		sep = "/"
	}

	var parts []string
	for _, p := range pieces {
		switch {
		case p.sep:
			parts = append(parts, "\x00sep\x00")
		case p.seq != nil:
			if s := strings.Join(p.seq, sep); s != "" {
				parts = append(parts, s)
			}
		default:
			if p.lit != "" {
				parts = append(parts, p.lit)
			}
		}
	}

	var b strings.Builder
	wroteText := false
	wroteSep := false
	for i, part := range parts {
		if part == "\x00sep\x00" {
			// A forced separator is absorbed if it would land at the
			// start, at the end, or directly before another forced
			// separator.
			if !wroteText {
				continue
			}
			if i+1 >= len(parts) {
				continue
			}
			if parts[i+1] == "\x00sep\x00" {
				continue
			}
			b.WriteString(sep)
			wroteSep = true
			continue
		}
		if wroteText && !wroteSep {
			b.WriteString(sep)
		}
		b.WriteString(part)
		wroteText = true
		wroteSep = false
	}
	return b.String()
}

// HasPrefix reports whether shortest is a component-wise prefix of
// longest: every element of shortest equals the element at the same
// index in longest, and shortest is no longer than longest.
func HasPrefix(longest, shortest []string) bool {
	if len(shortest) > len(longest) {
		return false
	}
	for i, c := range shortest {
		if longest[i] != c {
			return false
		}
	}
	return true
}

// Hash computes the deterministic 8-bit bucket-placement hash of s: the
// XOR of every byte. This exact algorithm is part of the cache's
// bucketing contract and must not change.
func Hash(s string) uint8 {
	var h uint8
	for i := 0; i < len(s); i++ {
		h ^= s[i]
	}
	return h
}

// JoinVirtual renders an ordered sequence of virtual path components
// back into a full virtual path, rooted at "/". An empty sequence
// names the root itself.
func JoinVirtual(components []string) string {
	if len(components) == 0 {
		return "/"
	}
	return "/" + strings.Join(components, "/")
}

// Dirname returns the portion of path before the last separator,
// following the same convention as path.Dir: the root's dirname is
// itself.
func Dirname(path, sep string) string {
	if sep == "" {
		sep = "/"
	}
	i := strings.LastIndex(path, sep)
	if i < 0 {
		return "."
	}
	if i == 0 {
		return sep
	}
	return path[:i]
}

// Basename returns the portion of path after the last separator. The
// basename of the root is the separator itself, matching POSIX
// basename(3) semantics for "/".
func Basename(path, sep string) string {
	if sep == "" {
		sep = "/"
	}
	if path == sep {
		return sep
	}
	trimmed := strings.TrimSuffix(path, sep)
	i := strings.LastIndex(trimmed, sep)
	if i < 0 {
		return trimmed
	}
	return trimmed[i+len(sep):]
}
