package testutil

import (
	"reflect"
	"testing"

	"github.com/replidoc/replidoc/replidoc"
)

// Sync exchanges operations between two replicas in both directions.
func Sync(t *testing.T, a, b *replidoc.Doc) {
	t.Helper()
	a.Commit("")
	b.Commit("")
	if err := a.Import(b.ExportFrom(a.VersionVector())); err != nil {
		t.Fatalf("import into first replica failed: %v", err)
	}
	if err := b.Import(a.ExportFrom(b.VersionVector())); err != nil {
		t.Fatalf("import into second replica failed: %v", err)
	}
}

// AssertConverged fails unless both replicas materialize to the same deep
// value.
func AssertConverged(t *testing.T, a, b *replidoc.Doc) {
	t.Helper()
	va := a.GetDeepValue()
	vb := b.GetDeepValue()
	if !va.Equal(vb) {
		t.Errorf("replicas diverged:\n  a: %s\n  b: %s", va, vb)
	}
}

// SyncAndAssertConverged exchanges ops both ways and checks convergence.
func SyncAndAssertConverged(t *testing.T, a, b *replidoc.Doc) {
	t.Helper()
	Sync(t, a, b)
	AssertConverged(t, a, b)
}

// AssertTextIs fails unless the text container holds the expected string.
func AssertTextIs(t *testing.T, text *replidoc.Text, want string) {
	t.Helper()
	if got := text.ToString(); got != want {
		t.Errorf("text mismatch: got %q, want %q", got, want)
	}
}

// AssertListValues fails unless the list holds exactly the expected values
// in order.
func AssertListValues(t *testing.T, list *replidoc.List, want []interface{}) {
	t.Helper()
	got := list.ToVec()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("list mismatch: got %v, want %v", got, want)
	}
}

// AssertMovableListValues fails unless the movable list holds exactly the
// expected values in order.
func AssertMovableListValues(t *testing.T, list *replidoc.MovableList, want []interface{}) {
	t.Helper()
	got := list.ToVec()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("movable list mismatch: got %v, want %v", got, want)
	}
}

// AssertMapValue fails unless the map holds the expected value at key.
func AssertMapValue(t *testing.T, m *replidoc.Map, key string, want interface{}) {
	t.Helper()
	got, ok := m.Get(key)
	if !ok {
		t.Errorf("map key %q is absent, want %v", key, want)
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("map key %q mismatch: got %v, want %v", key, got, want)
	}
}

// AssertCounterIs fails unless the counter holds the expected value.
func AssertCounterIs(t *testing.T, c *replidoc.Counter, want float64) {
	t.Helper()
	if got := c.Get(); got != want {
		t.Errorf("counter mismatch: got %v, want %v", got, want)
	}
}

// AssertNoError fails the test immediately when err is non-nil.
func AssertNoError(t *testing.T, err error, context string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", context, err)
	}
}
