package replidoc_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/replidoc/replidoc/replidoc"
	"github.com/replidoc/replidoc/testutil"
	"github.com/replidoc/replidoc/types"
)

func TestDocCounterMerge(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	testutil.AssertNoError(t, docA.GetCounter("hits").Increment(3), "A add")
	testutil.AssertNoError(t, docB.GetCounter("hits").Decrement(1), "B sub")
	testutil.SyncAndAssertConverged(t, docA, docB)

	testutil.AssertCounterIs(t, docA.GetCounter("hits"), 2)
	testutil.AssertCounterIs(t, docB.GetCounter("hits"), 2)
}

func TestDocVersionVectorAndFrontier(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	text := docA.GetText("n")
	testutil.AssertNoError(t, text.Insert(0, "abc"), "insert")
	docA.Commit("")

	vv := docA.VersionVector()
	if vv[1] != 3 {
		t.Errorf("vv[1] = %d, want 3", vv[1])
	}
	frontier := docA.Frontier()
	want := []types.ID{{Peer: 1, Counter: 2}}
	if !reflect.DeepEqual(frontier, want) {
		t.Errorf("frontier = %v, want %v", frontier, want)
	}
	if docA.LenOps() != 3 {
		t.Errorf("LenOps = %d, want 3", docA.LenOps())
	}

	testutil.AssertNoError(t, docB.GetCounter("c").Increment(1), "B add")
	testutil.Sync(t, docA, docB)
	frontier = docA.Frontier()
	want = []types.ID{{Peer: 1, Counter: 2}, {Peer: 2, Counter: 0}}
	if !reflect.DeepEqual(frontier, want) {
		t.Errorf("frontier after merge = %v, want %v", frontier, want)
	}
}

func TestDocExportFromIsIncremental(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	docB := replidoc.NewWithPeer(2)
	testutil.AssertNoError(t, docA.GetText("n").Insert(0, "ab"), "first batch")
	testutil.Sync(t, docA, docB)

	testutil.AssertNoError(t, docA.GetText("n").Insert(2, "cd"), "second batch")
	docA.Commit("")
	delta := docA.ExportFrom(docB.VersionVector())
	if len(delta) != 2 {
		t.Fatalf("incremental export has %d ops, want 2", len(delta))
	}
	testutil.AssertNoError(t, docB.Import(delta), "import delta")
	testutil.AssertTextIs(t, docB.GetText("n"), "abcd")
}

func TestDocImportBuffersOutOfOrderOps(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	text := docA.GetText("n")
	testutil.AssertNoError(t, text.Insert(0, "abcd"), "seed")
	docA.Commit("")
	ops := docA.ExportFrom(nil)
	if len(ops) != 4 {
		t.Fatalf("export has %d ops, want 4", len(ops))
	}

	docB := replidoc.NewWithPeer(2)
	// The tail alone is not applicable yet: its origins are unknown.
	testutil.AssertNoError(t, docB.Import(ops[2:]), "import tail")
	testutil.AssertTextIs(t, docB.GetText("n"), "")
	if docB.LenOps() != 0 {
		t.Errorf("LenOps after partial import = %d, want 0", docB.LenOps())
	}

	// The head arrives and the buffered tail drains behind it.
	testutil.AssertNoError(t, docB.Import(ops[:2]), "import head")
	testutil.AssertTextIs(t, docB.GetText("n"), "abcd")
	if docB.LenOps() != 4 {
		t.Errorf("LenOps after full import = %d, want 4", docB.LenOps())
	}
}

func TestDocImportIgnoresDuplicates(t *testing.T) {
	docA := replidoc.NewWithPeer(1)
	testutil.AssertNoError(t, docA.GetText("n").Insert(0, "hi"), "seed")
	docA.Commit("")
	ops := docA.ExportFrom(nil)

	docB := replidoc.NewWithPeer(2)
	testutil.AssertNoError(t, docB.Import(ops), "first import")
	testutil.AssertNoError(t, docB.Import(ops), "second import")
	testutil.AssertTextIs(t, docB.GetText("n"), "hi")
	if docB.LenOps() != 2 {
		t.Errorf("LenOps = %d, want 2", docB.LenOps())
	}
}

func TestDocGetContainer(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	text := doc.GetText("n")
	testutil.AssertNoError(t, text.Insert(0, "x"), "seed")

	got, err := doc.GetContainer(text.ID())
	testutil.AssertNoError(t, err, "get container")
	if _, ok := got.(*replidoc.Text); !ok {
		t.Errorf("GetContainer returned %T, want *Text", got)
	}

	missing := types.NewRootContainerID("nope", types.TreeType)
	if _, err := doc.GetContainer(missing); !errors.Is(err, replidoc.ErrContainerNotFound) {
		t.Errorf("missing container: got %v", err)
	}
}

func TestDocSetPeerID(t *testing.T) {
	doc := replidoc.NewWithPeer(1)
	testutil.AssertNoError(t, doc.GetText("n").Insert(0, "a"), "first peer write")
	testutil.AssertNoError(t, doc.SetPeerID(7), "switch peer")
	if doc.PeerID() != 7 {
		t.Fatalf("PeerID = %d, want 7", doc.PeerID())
	}
	testutil.AssertNoError(t, doc.GetText("n").Insert(1, "b"), "second peer write")
	doc.Commit("")

	testutil.AssertTextIs(t, doc.GetText("n"), "ab")
	vv := doc.VersionVector()
	if vv[1] != 1 || vv[7] != 1 {
		t.Errorf("vv = %v, want one op per peer", vv)
	}
}

func TestDocDeepValue(t *testing.T) {
	docA, _, _ := testutil.LoadUniverse(t)
	deep := docA.GetDeepValue().ToGo()
	m, ok := deep.(map[string]interface{})
	if !ok {
		t.Fatalf("deep value is %T", deep)
	}
	if m["notes"] != "hello world" {
		t.Errorf("notes = %v", m["notes"])
	}
	if m["visits"] != float64(3) {
		t.Errorf("visits = %v", m["visits"])
	}
	settings, ok := m["settings"].(map[string]interface{})
	if !ok || settings["theme"] != "dark" {
		t.Errorf("settings = %v", m["settings"])
	}
	if _, ok := m["tasks"].([]interface{}); !ok {
		t.Errorf("tasks = %v", m["tasks"])
	}
	if _, ok := m["outline"].([]interface{}); !ok {
		t.Errorf("outline = %v", m["outline"])
	}
}
