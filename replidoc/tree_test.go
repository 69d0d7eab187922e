package replidoc_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/replidoc/replidoc/replidoc"
	"github.com/replidoc/replidoc/testutil"
	"github.com/replidoc/replidoc/types"
)

func TestTreeCreateMoveDelete(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	tree := doc.GetTree("t")

	root, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create root")
	a, err := tree.Create(types.NodeParent(root))
	testutil.AssertNoError(t, err, "create a")
	b, err := tree.Create(types.NodeParent(root))
	testutil.AssertNoError(t, err, "create b")

	if got := tree.Roots(); !reflect.DeepEqual(got, []types.TreeID{root}) {
		t.Errorf("Roots = %v, want [%s]", got, root)
	}
	children, ok := tree.Children(types.NodeParent(root))
	if !ok || !reflect.DeepEqual(children, []types.TreeID{a, b}) {
		t.Errorf("Children = %v %v, want [%s %s] true", children, ok, a, b)
	}
	if n, _ := tree.ChildrenNum(types.NodeParent(root)); n != 2 {
		t.Errorf("ChildrenNum = %d, want 2", n)
	}

	testutil.AssertNoError(t, tree.Move(b, types.NodeParent(a)), "move b under a")
	p, err := tree.Parent(b)
	testutil.AssertNoError(t, err, "parent")
	if p != types.NodeParent(a) {
		t.Errorf("Parent(b) = %s, want Node(%s)", p, a)
	}

	testutil.AssertNoError(t, tree.Delete(a), "delete a")
	if tree.Contains(a) {
		t.Error("deleted node still contained")
	}
	// The subtree goes with its root; records are kept and queryable.
	deleted, err := tree.IsNodeDeleted(b)
	testutil.AssertNoError(t, err, "deleted query")
	if !deleted {
		t.Error("descendant of deleted node not reported deleted")
	}
	if n, _ := tree.ChildrenNum(types.NodeParent(root)); n != 0 {
		t.Errorf("ChildrenNum after delete = %d, want 0", n)
	}

	all := tree.GetNodes(true)
	if len(all) != 3 {
		t.Errorf("GetNodes(true) = %v, want 3 records", all)
	}
	live := tree.GetNodes(false)
	if !reflect.DeepEqual(live, []types.TreeID{root}) {
		t.Errorf("GetNodes(false) = %v, want [%s]", live, root)
	}
}

func TestTreeLocalValidation(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	tree := doc.GetTree("t")

	a, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create a")
	b, err := tree.Create(types.NodeParent(a))
	testutil.AssertNoError(t, err, "create b")

	if err := tree.Move(a, types.NodeParent(b)); !errors.Is(err, replidoc.ErrCyclicMoveRejected) {
		t.Errorf("move under descendant: got %v", err)
	}
	if err := tree.Move(a, types.NodeParent(a)); !errors.Is(err, replidoc.ErrCyclicMoveRejected) {
		t.Errorf("move under self: got %v", err)
	}

	ghost := types.TreeID{Peer: 9, Counter: 9}
	if err := tree.Move(ghost, types.RootParent()); !errors.Is(err, replidoc.ErrTreeNodeNotExist) {
		t.Errorf("move of unknown node: got %v", err)
	}
	if _, err := tree.Create(types.NodeParent(ghost)); !errors.Is(err, replidoc.ErrTreeNodeNotExist) {
		t.Errorf("create under unknown node: got %v", err)
	}
	if err := tree.Delete(ghost); !errors.Is(err, replidoc.ErrTreeNodeNotExist) {
		t.Errorf("delete of unknown node: got %v", err)
	}
}

func TestTreeSiblingOrdering(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	tree := doc.GetTree("t")

	first, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create")
	last, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create")
	middle, err := tree.CreateAt(types.RootParent(), 1)
	testutil.AssertNoError(t, err, "create at 1")

	if got := tree.Roots(); !reflect.DeepEqual(got, []types.TreeID{first, middle, last}) {
		t.Fatalf("Roots = %v, want [%s %s %s]", got, first, middle, last)
	}

	testutil.AssertNoError(t, tree.MoveBefore(last, first), "move before")
	if got := tree.Roots(); !reflect.DeepEqual(got, []types.TreeID{last, first, middle}) {
		t.Errorf("Roots after MoveBefore = %v", got)
	}
	testutil.AssertNoError(t, tree.MoveAfter(last, middle), "move after")
	if got := tree.Roots(); !reflect.DeepEqual(got, []types.TreeID{first, middle, last}) {
		t.Errorf("Roots after MoveAfter = %v", got)
	}

	fi, err := tree.FractionalIndex(middle)
	testutil.AssertNoError(t, err, "fractional index")
	if fi == "" {
		t.Error("empty fractional index on positioned node")
	}
}

func TestTreeFractionalIndexDisabled(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	tree := doc.GetTree("t")
	tree.DisableFractionalIndex()
	if tree.IsFractionalIndexEnabled() {
		t.Fatal("still enabled after disable")
	}

	a, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "append create still works")

	if _, err := tree.CreateAt(types.RootParent(), 0); !errors.Is(err, replidoc.ErrFractionalIndexDisabled) {
		t.Errorf("positional create: got %v", err)
	}
	if err := tree.MoveTo(a, types.RootParent(), 0); !errors.Is(err, replidoc.ErrFractionalIndexDisabled) {
		t.Errorf("positional move: got %v", err)
	}

	tree.EnableFractionalIndex(0)
	if !tree.IsFractionalIndexEnabled() {
		t.Fatal("still disabled after enable")
	}
	if _, err := tree.CreateAt(types.RootParent(), 0); err != nil {
		t.Errorf("positional create after enable: %v", err)
	}
}

func TestTreeDisabledIndexOrdersByCausality(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	tree := doc.GetTree("t")
	tree.DisableFractionalIndex()

	a, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create a")
	b, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create b")

	// Without fractional indexing every node carries the one default key
	// and siblings order by their last-move IDs.
	for _, node := range []types.TreeID{a, b} {
		fi, err := tree.FractionalIndex(node)
		testutil.AssertNoError(t, err, "fractional index")
		if fi != "80" {
			t.Errorf("index of %s = %q, want the shared default 80", node, fi)
		}
	}
	if got := tree.Roots(); !reflect.DeepEqual(got, []types.TreeID{a, b}) {
		t.Fatalf("Roots = %v, want creation order", got)
	}

	testutil.AssertNoError(t, tree.Move(a, types.RootParent()), "move to end")
	fi, err := tree.FractionalIndex(a)
	testutil.AssertNoError(t, err, "index after move")
	if fi != "80" {
		t.Errorf("index after move = %q, want 80", fi)
	}
	if got := tree.Roots(); !reflect.DeepEqual(got, []types.TreeID{b, a}) {
		t.Errorf("Roots after move = %v, want move order", got)
	}
}

func TestTreeImportDiffCarriesOldPositions(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	treeA := docA.GetTree("t")
	var roots []types.TreeID
	for i := 0; i < 3; i++ {
		n, err := treeA.Create(types.RootParent())
		testutil.AssertNoError(t, err, "create")
		roots = append(roots, n)
	}
	testutil.Sync(t, docA, docB)

	var moves, deletes []replidoc.TreeDiffItem
	docB.SubscribeRoot(func(ev *replidoc.DiffEvent) {
		if ev.TriggeredBy != replidoc.TriggeredByImport {
			return
		}
		for _, cd := range ev.Events {
			for _, item := range cd.Diff.Tree {
				switch item.Action.Kind {
				case replidoc.TreeActionMove:
					moves = append(moves, item)
				case replidoc.TreeActionDelete:
					deletes = append(deletes, item)
				}
			}
		}
	})

	// A repositions the middle root while B creates a node of its own, so
	// the arriving op splices into the middle of B's log and forces a
	// replay instead of a tail apply.
	testutil.AssertNoError(t, treeA.Move(roots[1], types.RootParent()), "A move")
	docA.Commit("")
	_, err := docB.GetTree("t").Create(types.RootParent())
	testutil.AssertNoError(t, err, "B create")
	docB.Commit("")
	testutil.AssertNoError(t, docB.Import(docA.ExportFrom(docB.VersionVector())), "import move")

	if len(moves) != 1 {
		t.Fatalf("move diffs = %+v, want exactly one", moves)
	}
	if moves[0].Target != roots[1] {
		t.Errorf("move target = %s, want %s", moves[0].Target, roots[1])
	}
	if !moves[0].Action.OldParent.IsRoot() || moves[0].Action.OldIndex != 1 {
		t.Errorf("move old position = %s/%d, want root/1", moves[0].Action.OldParent, moves[0].Action.OldIndex)
	}

	// Same arrangement for a delete: the replayed diff must report where
	// the node sat before it went away. After the move above the third
	// created root sits at index 1.
	testutil.AssertNoError(t, treeA.Delete(roots[2]), "A delete")
	docA.Commit("")
	_, err = docB.GetTree("t").Create(types.RootParent())
	testutil.AssertNoError(t, err, "B create again")
	docB.Commit("")
	testutil.AssertNoError(t, docB.Import(docA.ExportFrom(docB.VersionVector())), "import delete")

	if len(deletes) != 1 {
		t.Fatalf("delete diffs = %+v, want exactly one", deletes)
	}
	if deletes[0].Target != roots[2] {
		t.Errorf("delete target = %s, want %s", deletes[0].Target, roots[2])
	}
	if !deletes[0].Action.OldParent.IsRoot() || deletes[0].Action.OldIndex != 1 {
		t.Errorf("delete old position = %s/%d, want root/1", deletes[0].Action.OldParent, deletes[0].Action.OldIndex)
	}
}

func TestTreeConcurrentMovesAvoidCycle(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	treeA := docA.GetTree("t")
	x, err := treeA.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create x")
	y, err := treeA.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create y")
	testutil.SyncAndAssertConverged(t, docA, docB)

	// A moves x under y while B moves y under x. Applied together these
	// would form a cycle; one move must be dropped, identically everywhere.
	testutil.AssertNoError(t, docA.GetTree("t").Move(x, types.NodeParent(y)), "A move")
	testutil.AssertNoError(t, docB.GetTree("t").Move(y, types.NodeParent(x)), "B move")
	testutil.SyncAndAssertConverged(t, docA, docB)

	for _, doc := range []*replidoc.Doc{docA, docB} {
		tree := doc.GetTree("t")
		px, err := tree.Parent(x)
		testutil.AssertNoError(t, err, "parent x")
		py, err := tree.Parent(y)
		testutil.AssertNoError(t, err, "parent y")
		xUnderY := px == types.NodeParent(y) && py.IsRoot()
		yUnderX := py == types.NodeParent(x) && px.IsRoot()
		if !xUnderY && !yUnderX {
			t.Errorf("peer %d: px=%s py=%s, want exactly one nesting", doc.PeerID(), px, py)
		}
	}
}

func TestTreeMeta(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	tree := docA.GetTree("t")
	node, err := tree.Create(types.RootParent())
	testutil.AssertNoError(t, err, "create")

	meta, err := tree.GetMeta(node)
	testutil.AssertNoError(t, err, "meta")
	testutil.AssertNoError(t, meta.Insert("title", "chapter one"), "set meta")
	testutil.SyncAndAssertConverged(t, docA, docB)

	metaB, err := docB.GetTree("t").GetMeta(node)
	testutil.AssertNoError(t, err, "meta on replica")
	testutil.AssertMapValue(t, metaB, "title", "chapter one")

	withMeta := docB.GetTree("t").GetValueWithMeta().ToGo()
	nodes, ok := withMeta.([]interface{})
	if !ok || len(nodes) != 1 {
		t.Fatalf("value with meta = %v", withMeta)
	}
	entry := nodes[0].(map[string]interface{})
	m, ok := entry["meta"].(map[string]interface{})
	if !ok || m["title"] != "chapter one" {
		t.Errorf("node entry = %v, want meta title", entry)
	}
}

func TestTreeUniverseOutline(t *testing.T) {
	docA, docB, u := testutil.LoadUniverse(t)
	testutil.Sync(t, docA, docB)

	treeB := docB.GetTree("outline")
	sections, ok := treeB.Children(types.NodeParent(u.Chapter1))
	if !ok || !reflect.DeepEqual(sections, []types.TreeID{u.Section1, u.Section2}) {
		t.Fatalf("chapter 1 children = %v %v", sections, ok)
	}

	// Concurrent edits: A promotes section 2 to its own chapter while B
	// reorders the chapters.
	testutil.AssertNoError(t, docA.GetTree("outline").Move(u.Section2, types.RootParent()), "A move")
	testutil.AssertNoError(t, docB.GetTree("outline").MoveBefore(u.Chapter2, u.Chapter1), "B move")
	testutil.SyncAndAssertConverged(t, docA, docB)

	if docA.GetTree("outline").Contains(u.Section2) != true {
		t.Error("section 2 lost in merge")
	}
	p, err := docA.GetTree("outline").Parent(u.Section2)
	testutil.AssertNoError(t, err, "parent")
	if !p.IsRoot() {
		t.Errorf("section 2 parent = %s, want root", p)
	}
}
