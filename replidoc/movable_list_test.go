package replidoc_test

import (
	"errors"
	"testing"

	"github.com/replidoc/replidoc/replidoc"
	"github.com/replidoc/replidoc/testutil"
)

func TestMovableListEditing(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	list := doc.GetMovableList("l")

	for _, v := range []string{"a", "b", "c"} {
		testutil.AssertNoError(t, list.Push(v), "push")
	}
	testutil.AssertNoError(t, list.Set(1, "B"), "set")
	testutil.AssertMovableListValues(t, list, []interface{}{"a", "B", "c"})

	testutil.AssertNoError(t, list.Mov(0, 2), "move")
	testutil.AssertMovableListValues(t, list, []interface{}{"B", "c", "a"})

	testutil.AssertNoError(t, list.Mov(2, 0), "move back")
	testutil.AssertMovableListValues(t, list, []interface{}{"a", "B", "c"})

	testutil.AssertNoError(t, list.Delete(1, 1), "delete")
	testutil.AssertMovableListValues(t, list, []interface{}{"a", "c"})
}

func TestMovableListBounds(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	list := doc.GetMovableList("l")
	testutil.AssertNoError(t, list.Push("x"), "seed")

	if err := list.Set(1, "y"); !errors.Is(err, replidoc.ErrIndexOutOfBounds) {
		t.Errorf("set out of bounds: got %v", err)
	}
	if err := list.Mov(0, 3); !errors.Is(err, replidoc.ErrIndexOutOfBounds) {
		t.Errorf("move out of bounds: got %v", err)
	}
	if err := list.Mov(2, 0); !errors.Is(err, replidoc.ErrIndexOutOfBounds) {
		t.Errorf("move from out of bounds: got %v", err)
	}
}

func TestMovableListSetLastWriterWins(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	testutil.AssertNoError(t, docA.GetMovableList("l").Push("old"), "seed")
	testutil.SyncAndAssertConverged(t, docA, docB)

	testutil.AssertNoError(t, docA.GetMovableList("l").Set(0, "from A"), "A set")
	testutil.AssertNoError(t, docB.GetMovableList("l").Set(0, "from B"), "B set")
	testutil.SyncAndAssertConverged(t, docA, docB)

	// Equal lamport timestamps resolve toward the higher peer.
	testutil.AssertMovableListValues(t, docA.GetMovableList("l"), []interface{}{"from B"})
}

func TestMovableListConcurrentMovesKeepOneCopy(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	listA := docA.GetMovableList("l")
	for _, v := range []string{"a", "b", "c"} {
		testutil.AssertNoError(t, listA.Push(v), "seed")
	}
	testutil.SyncAndAssertConverged(t, docA, docB)

	// Both replicas move the same element to different places. After the
	// merge exactly one position wins; the element must not be duplicated.
	testutil.AssertNoError(t, docA.GetMovableList("l").Mov(0, 2), "A move")
	testutil.AssertNoError(t, docB.GetMovableList("l").Mov(0, 1), "B move")
	testutil.SyncAndAssertConverged(t, docA, docB)

	vals := docA.GetMovableList("l").ToVec()
	if len(vals) != 3 {
		t.Fatalf("merged length = %d, want 3: %v", len(vals), vals)
	}
	count := 0
	for _, v := range vals {
		if v == "a" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("moved element appears %d times, want 1: %v", count, vals)
	}
}

func TestMovableListMoveSurvivesConcurrentDelete(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	listA := docA.GetMovableList("l")
	for _, v := range []string{"a", "b"} {
		testutil.AssertNoError(t, listA.Push(v), "seed")
	}
	testutil.SyncAndAssertConverged(t, docA, docB)

	testutil.AssertNoError(t, docA.GetMovableList("l").Mov(0, 1), "A move")
	testutil.AssertNoError(t, docB.GetMovableList("l").Delete(0, 1), "B delete")
	testutil.SyncAndAssertConverged(t, docA, docB)

	// The move created a fresh position entry, so the element outlives the
	// concurrent delete of its old position.
	testutil.AssertMovableListValues(t, docA.GetMovableList("l"), []interface{}{"b", "a"})
}

func TestMovableListSetContainer(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	list := doc.GetMovableList("l")
	testutil.AssertNoError(t, list.Push("plain"), "seed")

	child, err := list.SetContainer(0, replidoc.NewCounter())
	testutil.AssertNoError(t, err, "set container")
	ctr, ok := child.(*replidoc.Counter)
	if !ok {
		t.Fatalf("attached child has type %T, want *Counter", child)
	}
	testutil.AssertNoError(t, ctr.Increment(5), "edit attached child")
	testutil.AssertCounterIs(t, ctr, 5)

	got, err := list.Get(0)
	testutil.AssertNoError(t, err, "get")
	if _, ok := got.(*replidoc.Counter); !ok {
		t.Errorf("Get(0) returned %T, want *Counter", got)
	}
}
