package replidoc_test

import (
	"testing"
	"time"

	"github.com/replidoc/replidoc/replidoc"
	"github.com/replidoc/replidoc/testutil"
	"github.com/replidoc/replidoc/types"
)

func TestUndoRedoRoundTrip(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	undo := replidoc.NewUndoManager(doc)
	text := doc.GetText("n")

	testutil.AssertNoError(t, text.Insert(0, "hello"), "first edit")
	doc.Commit("")
	testutil.AssertNoError(t, text.Insert(5, " world"), "second edit")
	doc.Commit("")

	done, err := undo.Undo()
	testutil.AssertNoError(t, err, "undo")
	if !done {
		t.Fatal("undo reported nothing to do")
	}
	testutil.AssertTextIs(t, text, "hello")

	done, err = undo.Undo()
	testutil.AssertNoError(t, err, "second undo")
	if !done {
		t.Fatal("second undo reported nothing to do")
	}
	testutil.AssertTextIs(t, text, "")

	if undo.CanUndo() {
		t.Error("CanUndo after draining the stack")
	}
	done, err = undo.Undo()
	testutil.AssertNoError(t, err, "undo on empty stack")
	if done {
		t.Error("undo on empty stack reported work")
	}

	done, err = undo.Redo()
	testutil.AssertNoError(t, err, "redo")
	if !done {
		t.Fatal("redo reported nothing to do")
	}
	testutil.AssertTextIs(t, text, "hello")

	done, err = undo.Redo()
	testutil.AssertNoError(t, err, "second redo")
	if !done {
		t.Fatal("second redo reported nothing to do")
	}
	testutil.AssertTextIs(t, text, "hello world")
	if undo.CanRedo() {
		t.Error("CanRedo after draining the redo stack")
	}
}

func TestUndoNewEditClearsRedo(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	undo := replidoc.NewUndoManager(doc)
	text := doc.GetText("n")

	testutil.AssertNoError(t, text.Insert(0, "a"), "edit")
	doc.Commit("")
	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !undo.CanRedo() {
		t.Fatal("no redo step after undo")
	}

	testutil.AssertNoError(t, text.Insert(0, "b"), "fresh edit")
	doc.Commit("")
	if undo.CanRedo() {
		t.Error("redo stack survived a fresh edit")
	}
}

func TestUndoMergeInterval(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	undo := replidoc.NewUndoManager(doc)
	undo.SetMergeInterval(time.Hour)
	text := doc.GetText("n")

	testutil.AssertNoError(t, text.Insert(0, "ab"), "first edit")
	doc.Commit("")
	testutil.AssertNoError(t, text.Insert(2, "cd"), "second edit")
	doc.Commit("")

	// Both commits fall inside the merge window: one step reverts both.
	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	testutil.AssertTextIs(t, text, "")
	if undo.CanUndo() {
		t.Error("merged edits left a second undo step")
	}
}

func TestUndoRecordNewCheckpoint(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	undo := replidoc.NewUndoManager(doc)
	undo.SetMergeInterval(time.Hour)
	text := doc.GetText("n")

	testutil.AssertNoError(t, text.Insert(0, "ab"), "first edit")
	doc.Commit("")
	undo.RecordNewCheckpoint()
	testutil.AssertNoError(t, text.Insert(2, "cd"), "second edit")
	doc.Commit("")

	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	testutil.AssertTextIs(t, text, "ab")
	if !undo.CanUndo() {
		t.Error("checkpoint did not split the steps")
	}
}

func TestUndoExcludedOrigins(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	undo := replidoc.NewUndoManager(doc)
	undo.AddExcludeOriginPrefix("sys:")
	text := doc.GetText("n")

	testutil.AssertNoError(t, text.Insert(0, "keep"), "tracked edit")
	doc.Commit("user")
	testutil.AssertNoError(t, text.Insert(4, "!"), "excluded edit")
	doc.Commit("sys:autofix")

	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	// The excluded transaction stays; only the tracked one is reverted.
	testutil.AssertTextIs(t, text, "!")
}

func TestUndoMaxSteps(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	undo := replidoc.NewUndoManager(doc)
	undo.SetMaxUndoSteps(2)
	text := doc.GetText("n")

	for _, s := range []string{"a", "b", "c"} {
		testutil.AssertNoError(t, text.Insert(text.Len(), s), "edit")
		doc.Commit("")
	}

	for undo.CanUndo() {
		if _, err := undo.Undo(); err != nil {
			t.Fatalf("undo: %v", err)
		}
	}
	// The oldest step was evicted, so the first edit survives.
	testutil.AssertTextIs(t, text, "a")
}

func TestUndoSkipsRemoteEdits(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	undo := replidoc.NewUndoManager(docA)

	testutil.AssertNoError(t, docA.GetText("n").Insert(0, "local"), "A edit")
	docA.Commit("")
	testutil.AssertNoError(t, docB.GetText("n").Insert(0, "remote "), "B edit")
	testutil.Sync(t, docA, docB)
	testutil.AssertTextIs(t, docA.GetText("n"), "remote local")

	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	// Only this peer's edit is reverted; the imported one stays.
	testutil.AssertTextIs(t, docA.GetText("n"), "remote ")
	if undo.CanUndo() {
		t.Error("imported transaction landed on the undo stack")
	}
}

func TestUndoRestoresDeletedSubtree(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	tree := doc.GetTree("t")
	parent, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create parent")
	child, err := tree.Create(types.NodeParent(parent))
	testutil.AssertNoError(t, err, "create child")
	doc.Commit("")

	undo := replidoc.NewUndoManager(doc)
	testutil.AssertNoError(t, tree.Delete(parent), "delete")
	doc.Commit("")
	if tree.Contains(parent) {
		t.Fatal("node still present after delete")
	}

	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !tree.Contains(parent) || !tree.Contains(child) {
		t.Error("subtree not restored by undo")
	}
	p, err := tree.Parent(child)
	testutil.AssertNoError(t, err, "child parent")
	if p != types.NodeParent(parent) {
		t.Errorf("child parent = %s, want Node(%s)", p, parent)
	}
}

func TestUndoRestoresMovedNodePosition(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	tree := doc.GetTree("t")
	a, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create a")
	b, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create b")
	doc.Commit("")

	fiBefore, err := tree.FractionalIndex(a)
	testutil.AssertNoError(t, err, "index before")

	undo := replidoc.NewUndoManager(doc)
	testutil.AssertNoError(t, tree.Move(a, types.NodeParent(b)), "move")
	doc.Commit("")

	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	p, err := tree.Parent(a)
	testutil.AssertNoError(t, err, "parent")
	if !p.IsRoot() {
		t.Fatalf("parent after undo = %s, want root", p)
	}
	fiAfter, err := tree.FractionalIndex(a)
	testutil.AssertNoError(t, err, "index after")
	if fiAfter != fiBefore {
		t.Errorf("fractional index %s, want %s restored", fiAfter, fiBefore)
	}
}

func TestUndoCounterAndMap(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	undo := replidoc.NewUndoManager(doc)

	testutil.AssertNoError(t, doc.GetCounter("c").Increment(5), "counter edit")
	doc.Commit("")
	testutil.AssertNoError(t, doc.GetMap("m").Insert("k", "v"), "map edit")
	doc.Commit("")

	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo map edit: %v", err)
	}
	if _, ok := doc.GetMap("m").Get("k"); ok {
		t.Error("map key survived undo")
	}
	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo counter edit: %v", err)
	}
	testutil.AssertCounterIs(t, doc.GetCounter("c"), 0)
}

func TestUndoMetaCallbacks(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	undo := replidoc.NewUndoManager(doc)

	var pushes, pops int
	undo.SetOnPush(func(isUndo bool, span replidoc.CounterSpan) replidoc.UndoItemMeta {
		pushes++
		return replidoc.UndoItemMeta{Value: types.NewString("selection")}
	})
	undo.SetOnPop(func(isUndo bool, meta replidoc.UndoItemMeta) {
		pops++
		if got := meta.Value.Str; got != "selection" {
			t.Errorf("popped meta = %q", got)
		}
	})

	testutil.AssertNoError(t, doc.GetText("n").Insert(0, "x"), "edit")
	doc.Commit("")
	if _, err := undo.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}

	if pushes < 2 {
		// One push for the edit, one for the redo entry created by undo.
		t.Errorf("pushes = %d, want at least 2", pushes)
	}
	if pops != 1 {
		t.Errorf("pops = %d, want 1", pops)
	}
}
