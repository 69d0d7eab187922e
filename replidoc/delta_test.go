package replidoc

import (
	"reflect"
	"testing"
)

func segs(items ...seg[rune]) delta[rune] {
	var d delta[rune]
	for _, s := range items {
		d.push(s)
	}
	return d
}

func TestDeltaPushMergesAdjacent(t *testing.T) {
	d := segs(
		retainSeg[rune](2),
		retainSeg[rune](3),
		insertSeg([]rune("ab"), false),
		insertSeg([]rune("cd"), false),
		deleteSeg[rune](1),
		deleteSeg[rune](1),
	)
	want := []seg[rune]{
		{kind: segRetain, n: 5},
		{kind: segInsert, vals: []rune("abcd")},
		{kind: segDelete, n: 2},
	}
	if !reflect.DeepEqual(d.segs, want) {
		t.Errorf("merge mismatch:\n got %v\nwant %v", d.segs, want)
	}
}

func TestCompose(t *testing.T) {
	t.Run("insert then delete cancels", func(t *testing.T) {
		a := segs(insertSeg([]rune("abc"), false))
		b := segs(deleteSeg[rune](3))
		got := compose(a, b)
		if len(got.segs) != 0 {
			t.Errorf("expected empty delta, got %v", got.segs)
		}
	})

	t.Run("sequential inserts at different positions", func(t *testing.T) {
		// Apply "abc" at 0, then "x" at 1: result axbc.
		a := segs(insertSeg([]rune("abc"), false))
		b := segs(retainSeg[rune](1), insertSeg([]rune("x"), false))
		got := compose(a, b)
		want := segs(insertSeg([]rune("axbc"), false))
		if !reflect.DeepEqual(got.segs, want.segs) {
			t.Errorf("compose mismatch:\n got %v\nwant %v", got.segs, want.segs)
		}
	})

	t.Run("delete inside earlier retain", func(t *testing.T) {
		// First delta deletes 1 at pos 2 of a 5-element doc; second deletes
		// 1 at pos 0. Net effect: delete at 0 and at 2.
		a := segs(retainSeg[rune](2), deleteSeg[rune](1))
		b := segs(deleteSeg[rune](1))
		got := compose(a, b)
		want := segs(deleteSeg[rune](1), retainSeg[rune](1), deleteSeg[rune](1))
		if !reflect.DeepEqual(got.segs, want.segs) {
			t.Errorf("compose mismatch:\n got %v\nwant %v", got.segs, want.segs)
		}
	})

	t.Run("second delta past the end of the first", func(t *testing.T) {
		a := segs(insertSeg([]rune("ab"), false))
		b := segs(retainSeg[rune](4), insertSeg([]rune("z"), false))
		got := compose(a, b)
		want := segs(insertSeg([]rune("ab"), false), retainSeg[rune](2), insertSeg([]rune("z"), false))
		if !reflect.DeepEqual(got.segs, want.segs) {
			t.Errorf("compose mismatch:\n got %v\nwant %v", got.segs, want.segs)
		}
	})
}
