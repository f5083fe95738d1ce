package meta

import (
	"os"
	"testing"
)

func TestMetadataRoundTrip(t *testing.T) {
	versions := []Version{
		{VID: 2, SVID: 0, Mode: os.FileMode(0600), UID: 1000, GID: 1000, Basename: "00000002.c"},
		{VID: 1, SVID: 1, Mode: os.FileMode(0644), UID: 1000, GID: 1000, Basename: "00000001.c"},
	}
	data := EncodeMetadataFile(versions, false)

	got, deleted := ParseMetadataFile(data)
	if deleted {
		t.Fatal("unexpected deleted flag")
	}
	if len(got) != len(versions) {
		t.Fatalf("got %d versions, want %d", len(got), len(versions))
	}
	for i := range versions {
		if got[i] != versions[i] {
			t.Errorf("version %d = %+v, want %+v", i, got[i], versions[i])
		}
	}
}

func TestMetadataDeletionSentinel(t *testing.T) {
	versions := []Version{{VID: 1, SVID: 0, Mode: 0644, UID: 1, GID: 1, Basename: "00000001.x"}}
	data := EncodeMetadataFile(versions, true)
	got, deleted := ParseMetadataFile(data)
	if !deleted {
		t.Fatal("expected deleted flag to round-trip")
	}
	if len(got) != 1 {
		t.Fatalf("got %d versions, want 1", len(got))
	}
}

func TestMetadataSkipsMalformedLines(t *testing.T) {
	data := []byte("garbage line\n1:0:0644:1000:1000:00000001.x\nanother:bad:line:here\n")
	got, deleted := ParseMetadataFile(data)
	if deleted {
		t.Fatal("unexpected deleted flag")
	}
	if len(got) != 1 {
		t.Fatalf("got %d versions, want 1 (malformed lines should be skipped)", len(got))
	}
	if got[0].VID != 1 || got[0].Basename != "00000001.x" {
		t.Errorf("unexpected parsed version: %+v", got[0])
	}
}

func TestDefaultFileRoundTrip(t *testing.T) {
	data := EncodeDefaultFile(Exact(3), Latest())
	vid, svid, ok := ParseDefaultFile(data)
	if !ok {
		t.Fatal("expected ok")
	}
	if vid.IsLatest() || vid.Value() != 3 {
		t.Errorf("vid = %+v, want Exact(3)", vid)
	}
	if !svid.IsLatest() {
		t.Errorf("svid = %+v, want Latest", svid)
	}
}

func TestDefaultFileAbsentOrCorrupt(t *testing.T) {
	_, _, ok := ParseDefaultFile([]byte("not a pin\n"))
	if ok {
		t.Fatal("expected ok == false for corrupt pin file")
	}
	_, _, ok = ParseDefaultFile(nil)
	if ok {
		t.Fatal("expected ok == false for empty pin file")
	}
}
