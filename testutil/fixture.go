// Package testutil provides the shared test fixture and assertion helpers
// for replidoc tests: a prepopulated pair of replicas and convergence
// checks.
package testutil

import (
	"testing"

	"github.com/replidoc/replidoc/replidoc"
	"github.com/replidoc/replidoc/types"
)

// PeerA and PeerB are the fixed peer IDs of the fixture replicas.
const (
	PeerA types.PeerID = 1
	PeerB types.PeerID = 2
)

// UniverseData provides typed access to the fixture contents: two replicas
// already holding a small project document, plus the tree nodes created in
// it.
type UniverseData struct {
	// Tree nodes under the "outline" tree of DocA.
	Chapter1 types.TreeID // first root node
	Chapter2 types.TreeID // second root node
	Section1 types.TreeID // child of Chapter1
	Section2 types.TreeID // child of Chapter1
}

// LoadUniverse builds the standard fixture: replica A populated with a
// text, a task list, a settings map, an outline tree, and a counter, and an
// empty replica B sharing nothing with A yet.
func LoadUniverse(t *testing.T) (*replidoc.Doc, *replidoc.Doc, *UniverseData) {
	t.Helper()

	docA := replidoc.NewWithPeer(PeerA)
	docB := replidoc.NewWithPeer(PeerB)
	universe := &UniverseData{}

	text := docA.GetText("notes")
	if err := text.Insert(0, "hello world"); err != nil {
		t.Fatalf("fixture text insert failed: %v", err)
	}

	tasks := docA.GetList("tasks")
	for _, task := range []string{"buy groceries", "team meeting", "code review"} {
		if err := tasks.Push(task); err != nil {
			t.Fatalf("fixture list push failed: %v", err)
		}
	}

	settings := docA.GetMap("settings")
	if err := settings.Insert("theme", "dark"); err != nil {
		t.Fatalf("fixture map insert failed: %v", err)
	}
	if err := settings.Insert("autosave", true); err != nil {
		t.Fatalf("fixture map insert failed: %v", err)
	}

	outline := docA.GetTree("outline")
	var err error
	universe.Chapter1, err = outline.Create(types.RootParent())
	if err != nil {
		t.Fatalf("fixture tree create failed: %v", err)
	}
	universe.Chapter2, err = outline.Create(types.RootParent())
	if err != nil {
		t.Fatalf("fixture tree create failed: %v", err)
	}
	universe.Section1, err = outline.Create(types.NodeParent(universe.Chapter1))
	if err != nil {
		t.Fatalf("fixture tree create failed: %v", err)
	}
	universe.Section2, err = outline.Create(types.NodeParent(universe.Chapter1))
	if err != nil {
		t.Fatalf("fixture tree create failed: %v", err)
	}

	visits := docA.GetCounter("visits")
	if err := visits.Increment(3); err != nil {
		t.Fatalf("fixture counter increment failed: %v", err)
	}

	docA.Commit("fixture")
	return docA, docB, universe
}
