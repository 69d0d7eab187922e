package types_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/replidoc/replidoc/types"
)

func TestFromGoRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		out  interface{}
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int widens to int64", 42, int64(42)},
		{"int64", int64(-7), int64(-7)},
		{"float64", 2.5, 2.5},
		{"string", "hello", "hello"},
		{"bytes", []byte{1, 2, 3}, []byte{1, 2, 3}},
		{
			"nested list",
			[]interface{}{"a", 1, []interface{}{true}},
			[]interface{}{"a", int64(1), []interface{}{true}},
		},
		{
			"nested map",
			map[string]interface{}{"k": map[string]interface{}{"n": 1}},
			map[string]interface{}{"k": map[string]interface{}{"n": int64(1)}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := types.FromGo(tc.in)
			if err != nil {
				t.Fatalf("FromGo(%v) failed: %v", tc.in, err)
			}
			got := v.ToGo()
			if !reflect.DeepEqual(got, tc.out) {
				t.Errorf("round trip of %v: got %v, want %v", tc.in, got, tc.out)
			}
		})
	}
}

func TestFromGoRejectsUnsupportedTypes(t *testing.T) {
	_, err := types.FromGo(struct{ X int }{1})
	if !errors.Is(err, types.ErrInvalidValueType) {
		t.Fatalf("got %v, want ErrInvalidValueType", err)
	}
}

func TestValueEqual(t *testing.T) {
	t.Run("structural equality over maps", func(t *testing.T) {
		a := types.NewMap(map[string]types.Value{
			"x": types.NewI64(1),
			"y": types.NewList(types.NewString("a")),
		})
		b := types.NewMap(map[string]types.Value{
			"y": types.NewList(types.NewString("a")),
			"x": types.NewI64(1),
		})
		if !a.Equal(b) {
			t.Error("structurally identical maps compare unequal")
		}
	})

	t.Run("kind mismatch is unequal", func(t *testing.T) {
		if types.NewI64(1).Equal(types.NewDouble(1)) {
			t.Error("i64 and double with same numeric value compare equal")
		}
	})

	t.Run("list order matters", func(t *testing.T) {
		a := types.NewList(types.NewI64(1), types.NewI64(2))
		b := types.NewList(types.NewI64(2), types.NewI64(1))
		if a.Equal(b) {
			t.Error("reordered lists compare equal")
		}
	})
}

func TestIDCompare(t *testing.T) {
	a := types.NewID(1, 5)
	b := types.NewID(2, 0)
	if a.Compare(b) >= 0 {
		t.Error("peer should dominate counter in ID order")
	}
	if a.Compare(types.NewID(1, 6)) >= 0 {
		t.Error("same peer should order by counter")
	}
	if a.Compare(a) != 0 {
		t.Error("ID should equal itself")
	}
}

func TestContainerIDString(t *testing.T) {
	root := types.NewRootContainerID("tasks", types.ListType)
	if !root.IsRoot() {
		t.Fatal("root container ID reports IsRoot false")
	}
	if root.String() != "cid:root-tasks:List" {
		t.Errorf("unexpected root string: %s", root.String())
	}

	child := types.NewContainerID(types.NewID(7, 3), types.MapType)
	if child.IsRoot() {
		t.Fatal("derived container ID reports IsRoot true")
	}
	if child.String() != "cid:3@7:Map" {
		t.Errorf("unexpected child string: %s", child.String())
	}
	opID, ok := child.OpID()
	if !ok || opID != types.NewID(7, 3) {
		t.Errorf("OpID mismatch: %v %v", opID, ok)
	}
}

func TestTreeParentID(t *testing.T) {
	node := types.NewTreeID(types.NewID(1, 0))
	parent := types.NodeParent(node)
	got, ok := parent.Node()
	if !ok || got != node {
		t.Errorf("NodeParent does not round trip: %v %v", got, ok)
	}
	if !types.RootParent().IsRoot() {
		t.Error("RootParent is not root")
	}
	if !types.DeletedParent().IsDeleted() {
		t.Error("DeletedParent is not deleted")
	}
	if !types.UnexistParent().IsUnexist() {
		t.Error("UnexistParent is not unexist")
	}
}
