package vpath

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{"/", nil},
		{"", nil},
		{"/a/b/c", []string{"a", "b", "c"}},
		{"a/b/c", []string{"a", "b", "c"}},
		{"/a//b///c/", []string{"a", "b", "c"}},
		{"//", nil},
	}
	for _, c := range cases {
		got := Split(c.path, "/")
		if !reflect.DeepEqual(got, c.want) && !(len(got) == 0 && len(c.want) == 0) {
			t.Errorf("Split(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestJoin(t *testing.T) {
	cases := []struct {
		name   string
		pieces []Piece
		want   string
	}{
		{"literal-only", []Piece{Literal("a")}, "a"},
		{"two-literals", []Piece{Literal("a"), Literal("b")}, "a/b"},
		{"seq", []Piece{Seq([]string{"a", "b", "c"})}, "a/b/c"},
		{"forced-sep-middle", []Piece{Literal("/store"), ForceSep(), Seq([]string{"a", "b"})}, "/store/a/b"},
		{"forced-sep-leading-absorbed", []Piece{ForceSep(), Literal("a")}, "a"},
		{"forced-sep-trailing-absorbed", []Piece{Literal("a"), ForceSep()}, "a"},
		{"empty-seq-skipped", []Piece{Literal("a"), Seq(nil), Literal("b")}, "a/b"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Join("/", c.pieces...)
			if got != c.want {
				t.Errorf("Join() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestHasPrefix(t *testing.T) {
	if !HasPrefix([]string{"a", "b", "c"}, []string{"a", "b"}) {
		t.Error("expected prefix match")
	}
	if HasPrefix([]string{"a", "b"}, []string{"a", "b", "c"}) {
		t.Error("shorter cannot be a prefix of longer when reversed")
	}
	if HasPrefix([]string{"a", "b"}, []string{"a", "x"}) {
		t.Error("mismatched component should not match")
	}
	if !HasPrefix([]string{"a"}, nil) {
		t.Error("empty prefix should always match")
	}
}

func TestHashDeterministic(t *testing.T) {
	if Hash("") != 0 {
		t.Errorf("Hash(\"\") = %d, want 0", Hash(""))
	}
	if Hash("a") != 'a' {
		t.Errorf("Hash(\"a\") = %d, want %d", Hash("a"), 'a')
	}
	// XOR of all bytes in "ab" = 'a' ^ 'b'
	want := uint8('a') ^ uint8('b')
	if got := Hash("ab"); got != want {
		t.Errorf("Hash(\"ab\") = %d, want %d", got, want)
	}
}

func TestDirnameBasename(t *testing.T) {
	if got := Dirname("/a/b/c", "/"); got != "/a/b" {
		t.Errorf("Dirname = %q", got)
	}
	if got := Basename("/a/b/c", "/"); got != "c" {
		t.Errorf("Basename = %q", got)
	}
	if got := Basename("/", "/"); got != "/" {
		t.Errorf("Basename(root) = %q, want /", got)
	}
}
