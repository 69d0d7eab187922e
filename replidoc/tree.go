package replidoc

import (
	"fmt"
	"sort"

	"github.com/replidoc/replidoc/types"
)

// Tree is a movable tree container. Nodes are created, moved, and deleted;
// concurrent moves never produce a cycle, and sibling order is kept with
// fractional indices.
type Tree struct {
	doc *Doc
	cid types.ContainerID
}

// NewTree creates a detached tree.
func NewTree() *Tree {
	d := newScratchDoc()
	return d.GetTree("tree")
}

func (t *Tree) ID() types.ContainerID     { return t.cid }
func (t *Tree) Type() types.ContainerType { return types.TreeType }
func (t *Tree) IsAttached() bool          { return t.doc.peer != detachedPeer }
func (t *Tree) isContainer()              {}

func (t *Tree) state() (*treeState, error) {
	s, ok := t.doc.containers[t.cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, t.cid)
	}
	return s.(*treeState), nil
}

// Create appends a new node as the last child of parent and returns its ID.
func (t *Tree) Create(parent types.TreeParentID) (types.TreeID, error) {
	return t.createAt(parent, -1)
}

// CreateAt inserts a new node at the given position among parent's children.
func (t *Tree) CreateAt(parent types.TreeParentID, index int) (types.TreeID, error) {
	if index < 0 {
		return types.TreeID{}, errIndex(index, 0)
	}
	return t.createAt(parent, index)
}

func (t *Tree) createAt(parent types.TreeParentID, index int) (types.TreeID, error) {
	if err := t.doc.mutationGuard(); err != nil {
		return types.TreeID{}, err
	}
	res, err := t.doc.lock.executeWithResult(writeOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return types.TreeID{}, err
		}
		if n, ok := parent.Node(); ok && !s.contains(n) {
			return types.TreeID{}, fmt.Errorf("%w: %s", ErrTreeNodeNotExist, n)
		}
		siblings := s.childrenOf(parent)
		slot := index
		if slot < 0 || slot > len(siblings) {
			slot = len(siblings)
		}
		if index >= 0 && !s.fiEnabled {
			return types.TreeID{}, ErrFractionalIndexDisabled
		}
		key, err := s.keyForSlot(siblings, slot, types.TreeID{})
		if err != nil {
			return types.TreeID{}, err
		}
		op := t.doc.newLocalOp(t.cid, TreeCreate{Parent: parent, Index: key})
		t.doc.applyOp(op, true)
		return types.NewTreeID(op.ID), nil
	})
	if err != nil {
		return types.TreeID{}, err
	}
	return res.(types.TreeID), nil
}

// Move makes target the last child of parent.
func (t *Tree) Move(target types.TreeID, parent types.TreeParentID) error {
	return t.moveTo(target, parent, -1)
}

// MoveTo moves target to the given position among parent's children.
func (t *Tree) MoveTo(target types.TreeID, parent types.TreeParentID, index int) error {
	if index < 0 {
		return errIndex(index, 0)
	}
	return t.moveTo(target, parent, index)
}

func (t *Tree) moveTo(target types.TreeID, parent types.TreeParentID, index int) error {
	if err := t.doc.mutationGuard(); err != nil {
		return err
	}
	return t.doc.lock.execute(writeOperation, func() error {
		s, err := t.state()
		if err != nil {
			return err
		}
		if !s.contains(target) {
			return fmt.Errorf("%w: %s", ErrTreeNodeNotExist, target)
		}
		if p, ok := parent.Node(); ok {
			if !s.contains(p) {
				return fmt.Errorf("%w: %s", ErrTreeNodeNotExist, p)
			}
			if p == target || s.isAncestor(target, p) {
				return fmt.Errorf("%w: %s under %s", ErrCyclicMoveRejected, target, p)
			}
		}
		if index >= 0 && !s.fiEnabled {
			return ErrFractionalIndexDisabled
		}
		siblings := s.childrenOf(parent)
		slot := index
		if slot < 0 || slot > len(siblings) {
			slot = len(siblings)
		}
		key, err := s.keyForSlot(siblings, slot, target)
		if err != nil {
			return err
		}
		op := t.doc.newLocalOp(t.cid, TreeMove{Target: target, Parent: parent, Index: key})
		t.doc.applyOp(op, true)
		return nil
	})
}

// MoveAfter moves target directly after other under other's parent.
func (t *Tree) MoveAfter(target, other types.TreeID) error {
	return t.moveAdjacent(target, other, 1)
}

// MoveBefore moves target directly before other under other's parent.
func (t *Tree) MoveBefore(target, other types.TreeID) error {
	return t.moveAdjacent(target, other, 0)
}

func (t *Tree) moveAdjacent(target, other types.TreeID, offset int) error {
	if err := t.doc.mutationGuard(); err != nil {
		return err
	}
	return t.doc.lock.execute(writeOperation, func() error {
		s, err := t.state()
		if err != nil {
			return err
		}
		if !s.fiEnabled {
			return ErrFractionalIndexDisabled
		}
		if !s.contains(target) {
			return fmt.Errorf("%w: %s", ErrTreeNodeNotExist, target)
		}
		o, ok := s.nodes[other]
		if !ok || o.parent.IsDeleted() {
			return fmt.Errorf("%w: %s", ErrTreeNodeNotExist, other)
		}
		parent := o.parent
		if p, isNode := parent.Node(); isNode {
			if p == target || s.isAncestor(target, p) {
				return fmt.Errorf("%w: %s under %s", ErrCyclicMoveRejected, target, p)
			}
		}
		siblings := s.childrenOf(parent)
		slot := 0
		for i, sib := range siblings {
			if sib.id == other {
				slot = i + offset
				break
			}
		}
		key, err := s.keyForSlot(siblings, slot, target)
		if err != nil {
			return err
		}
		op := t.doc.newLocalOp(t.cid, TreeMove{Target: target, Parent: parent, Index: key})
		t.doc.applyOp(op, true)
		return nil
	})
}

// Delete moves target and its whole subtree under the deleted root. The
// records are retained so concurrent moves into the subtree still resolve.
func (t *Tree) Delete(target types.TreeID) error {
	if err := t.doc.mutationGuard(); err != nil {
		return err
	}
	return t.doc.lock.execute(writeOperation, func() error {
		s, err := t.state()
		if err != nil {
			return err
		}
		if !s.contains(target) {
			return fmt.Errorf("%w: %s", ErrTreeNodeNotExist, target)
		}
		op := t.doc.newLocalOp(t.cid, TreeDelete{Target: target})
		t.doc.applyOp(op, true)
		return nil
	})
}

// Roots returns the top-level nodes in sibling order.
func (t *Tree) Roots() []types.TreeID {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return []types.TreeID{}, nil
		}
		return idsOf(s.childrenOf(types.RootParent())), nil
	})
	return res.([]types.TreeID)
}

// Children returns parent's live children in sibling order. The second
// result is false when parent does not exist.
func (t *Tree) Children(parent types.TreeParentID) ([]types.TreeID, bool) {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return nil, nil
		}
		if n, ok := parent.Node(); ok && !s.contains(n) {
			return nil, nil
		}
		return idsOf(s.childrenOf(parent)), nil
	})
	if res == nil {
		return nil, false
	}
	return res.([]types.TreeID), true
}

// ChildrenNum returns the number of live children of parent.
func (t *Tree) ChildrenNum(parent types.TreeParentID) (int, bool) {
	children, ok := t.Children(parent)
	if !ok {
		return 0, false
	}
	return len(children), true
}

// Nodes returns every live node in document order.
func (t *Tree) Nodes() []types.TreeID {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return []types.TreeID{}, nil
		}
		var out []types.TreeID
		var walk func(parent types.TreeParentID)
		walk = func(parent types.TreeParentID) {
			for _, n := range s.childrenOf(parent) {
				out = append(out, n.id)
				walk(types.NodeParent(n.id))
			}
		}
		walk(types.RootParent())
		return out, nil
	})
	return res.([]types.TreeID)
}

// GetNodes returns every node, optionally including deleted ones, sorted by
// creation ID.
func (t *Tree) GetNodes(withDeleted bool) []types.TreeID {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return []types.TreeID{}, nil
		}
		var out []types.TreeID
		for id := range s.nodes {
			if withDeleted || !s.isDeleted(id) {
				out = append(out, id)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].ID().Compare(out[j].ID()) < 0
		})
		return out, nil
	})
	return res.([]types.TreeID)
}

// Parent returns the parent of target.
func (t *Tree) Parent(target types.TreeID) (types.TreeParentID, error) {
	res, err := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return nil, err
		}
		n, ok := s.nodes[target]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTreeNodeNotExist, target)
		}
		return n.parent, nil
	})
	if err != nil {
		return types.UnexistParent(), err
	}
	return res.(types.TreeParentID), nil
}

// Contains reports whether target exists and is not deleted.
func (t *Tree) Contains(target types.TreeID) bool {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return false, nil
		}
		return s.contains(target) && !s.isDeleted(target), nil
	})
	return res.(bool)
}

// IsNodeDeleted reports whether target sits in the deleted subtree.
func (t *Tree) IsNodeDeleted(target types.TreeID) (bool, error) {
	res, err := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return false, err
		}
		if !s.contains(target) {
			return false, fmt.Errorf("%w: %s", ErrTreeNodeNotExist, target)
		}
		return s.isDeleted(target), nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// FractionalIndex returns target's fractional index as a hex string.
func (t *Tree) FractionalIndex(target types.TreeID) (string, error) {
	res, err := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return "", err
		}
		n, ok := s.nodes[target]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrTreeNodeNotExist, target)
		}
		return n.fi.String(), nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// IsEmpty reports whether the tree has no live nodes.
func (t *Tree) IsEmpty() bool { return len(t.Roots()) == 0 }

// GetLastMoveID returns the ID of the op that last positioned target.
func (t *Tree) GetLastMoveID(target types.TreeID) (types.ID, error) {
	res, err := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return types.ID{}, err
		}
		n, ok := s.nodes[target]
		if !ok {
			return types.ID{}, fmt.Errorf("%w: %s", ErrTreeNodeNotExist, target)
		}
		return n.lastMove, nil
	})
	if err != nil {
		return types.ID{}, err
	}
	return res.(types.ID), nil
}

// GetMeta returns target's metadata map, materializing it on first use.
func (t *Tree) GetMeta(target types.TreeID) (*Map, error) {
	if err := t.doc.mutationGuard(); err != nil {
		return nil, err
	}
	res, err := t.doc.lock.executeWithResult(writeOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return nil, err
		}
		if !s.contains(target) {
			return nil, fmt.Errorf("%w: %s", ErrTreeNodeNotExist, target)
		}
		metaCID := types.NewContainerID(target.ID(), types.MapType)
		if _, ok := t.doc.containers[metaCID]; !ok {
			t.doc.containers[metaCID] = newState(types.MapType)
			t.doc.parentOf[metaCID] = parentRef{parent: t.cid, kind: NodeIndex, node: target}
		}
		return metaCID, nil
	})
	if err != nil {
		return nil, err
	}
	return &Map{doc: t.doc, cid: res.(types.ContainerID)}, nil
}

// GetValue returns the live nodes as a flat ordered list of node records.
func (t *Tree) GetValue() types.Value {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return types.NewList(), nil
		}
		return t.doc.treeValue(t.cid, s, false), nil
	})
	return res.(types.Value)
}

// GetValueWithMeta is GetValue with each node's metadata map resolved.
func (t *Tree) GetValueWithMeta() types.Value {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return types.NewList(), nil
		}
		return t.doc.treeValue(t.cid, s, true), nil
	})
	return res.(types.Value)
}

// EnableFractionalIndex turns on positional ordering. jitter adds random
// suffix bytes to generated keys so concurrent peers rarely collide.
func (t *Tree) EnableFractionalIndex(jitter uint8) {
	_ = t.doc.lock.execute(writeOperation, func() error {
		s, err := t.state()
		if err != nil {
			return nil
		}
		s.fiEnabled = true
		s.jitter = jitter
		return nil
	})
}

// DisableFractionalIndex turns off positional ordering; positional creates
// and moves fail with ErrFractionalIndexDisabled.
func (t *Tree) DisableFractionalIndex() {
	_ = t.doc.lock.execute(writeOperation, func() error {
		s, err := t.state()
		if err != nil {
			return nil
		}
		s.fiEnabled = false
		return nil
	})
}

// IsFractionalIndexEnabled reports whether positional ordering is on.
func (t *Tree) IsFractionalIndexEnabled() bool {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := t.state()
		if err != nil {
			return true, nil
		}
		return s.fiEnabled, nil
	})
	return res.(bool)
}

func idsOf(nodes []*treeNode) []types.TreeID {
	out := make([]types.TreeID, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}
