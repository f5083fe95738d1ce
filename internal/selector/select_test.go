package selector

import (
	"testing"

	"github.com/dedis/rcsfs/internal/meta"
)

func newMD(versions ...meta.Version) *meta.Metadata {
	return &meta.Metadata{VPath: "/f", Versions: versions}
}

func TestSelectLatestNoPin(t *testing.T) {
	md := newMD(
		meta.Version{VID: 2, SVID: 0},
		meta.Version{VID: 1, SVID: 0},
	)
	v, ok := Select(md, meta.Latest(), meta.Latest(), Options{})
	if !ok || v.VID != 2 {
		t.Fatalf("got %+v ok=%v, want vid=2", v, ok)
	}
}

func TestSelectDeletedHidesLatest(t *testing.T) {
	md := newMD(meta.Version{VID: 1, SVID: 0})
	md.Deleted = true
	if _, ok := Select(md, meta.Latest(), meta.Latest(), Options{}); ok {
		t.Fatal("expected deleted file to be hidden")
	}
	v, ok := Select(md, meta.Latest(), meta.Latest(), Options{SeeDeleted: true})
	if !ok || v.VID != 1 {
		t.Fatalf("SeeDeleted should surface the head version, got %+v ok=%v", v, ok)
	}
}

func TestSelectExactVIDAndSVID(t *testing.T) {
	md := newMD(
		meta.Version{VID: 3, SVID: 1},
		meta.Version{VID: 3, SVID: 0},
		meta.Version{VID: 1, SVID: 0},
	)
	v, ok := Select(md, meta.Exact(3), meta.Exact(0), Options{})
	if !ok || v.VID != 3 || v.SVID != 0 {
		t.Fatalf("got %+v ok=%v, want (3,0)", v, ok)
	}
}

func TestSelectSVIDLatestOfVID(t *testing.T) {
	md := newMD(
		meta.Version{VID: 3, SVID: 1},
		meta.Version{VID: 3, SVID: 0},
		meta.Version{VID: 1, SVID: 0},
	)
	v, ok := Select(md, meta.Exact(3), meta.Latest(), Options{})
	if !ok || v.VID != 3 || v.SVID != 1 {
		t.Fatalf("got %+v ok=%v, want (3,1)", v, ok)
	}
}

func TestSelectPinFallsBackWhenDangling(t *testing.T) {
	md := newMD(
		meta.Version{VID: 2, SVID: 0},
		meta.Version{VID: 1, SVID: 0},
	)
	md.PinVID = meta.Exact(99) // dangling: no such version
	md.PinSVID = meta.Latest()

	v, ok := Select(md, meta.Latest(), meta.Latest(), Options{})
	if !ok || v.VID != 2 {
		t.Fatalf("expected silent fallback to head (vid=2), got %+v ok=%v", v, ok)
	}
}

func TestSelectNoPinMissIsAbsent(t *testing.T) {
	md := newMD(meta.Version{VID: 2, SVID: 0})
	if _, ok := Select(md, meta.Exact(99), meta.Latest(), Options{}); ok {
		t.Fatal("expected miss with no pin and no matching version")
	}
}

func TestLookupRejectsDanglingTargetEvenWithActivePin(t *testing.T) {
	md := newMD(
		meta.Version{VID: 2, SVID: 0},
		meta.Version{VID: 1, SVID: 0},
	)
	md.PinVID = meta.Exact(1) // an active pin must not make Lookup fall back
	md.PinSVID = meta.Latest()

	if _, ok := Lookup(md, meta.Exact(99), meta.Latest()); ok {
		t.Fatal("expected Lookup to reject a nonexistent vid, not fall back to the pin/head")
	}
}

func TestLookupFindsExactMatch(t *testing.T) {
	md := newMD(
		meta.Version{VID: 3, SVID: 1},
		meta.Version{VID: 3, SVID: 0},
	)
	v, ok := Lookup(md, meta.Exact(3), meta.Exact(0))
	if !ok || v.VID != 3 || v.SVID != 0 {
		t.Fatalf("got %+v ok=%v, want (3,0)", v, ok)
	}
}

func TestSelectUsesPinWhenRequestingLatest(t *testing.T) {
	md := newMD(
		meta.Version{VID: 2, SVID: 0},
		meta.Version{VID: 1, SVID: 0},
	)
	md.PinVID = meta.Exact(1)
	md.PinSVID = meta.Latest()

	v, ok := Select(md, meta.Latest(), meta.Latest(), Options{})
	if !ok || v.VID != 1 {
		t.Fatalf("got %+v ok=%v, want pinned vid=1", v, ok)
	}
}
