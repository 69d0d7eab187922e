package replidoc

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/replidoc/replidoc/fracindex"
	"github.com/replidoc/replidoc/types"
)

// treeNode is the current record of one tree node. A node is never removed;
// deletion reparents it under the deleted root.
type treeNode struct {
	id       types.TreeID
	parent   types.TreeParentID
	fi       fracindex.Key
	lastMove types.ID
	lamport  uint32
}

// treeState keeps a per-tree canonical op log next to the materialized node
// table. Ops that arrive in canonical order are applied directly; an op that
// lands in the middle of the log forces a deterministic replay of the whole
// log, and the externally visible diff is computed from the before and after
// node tables.
type treeState struct {
	nodes     map[types.TreeID]*treeNode
	log       []Op
	fiEnabled bool
	jitter    uint8
}

func newTreeState() *treeState {
	return &treeState{
		nodes:     make(map[types.TreeID]*treeNode),
		fiEnabled: true,
	}
}

func (s *treeState) kind() types.ContainerType { return types.TreeType }

func (s *treeState) contains(t types.TreeID) bool {
	_, ok := s.nodes[t]
	return ok
}

func (s *treeState) parentKnown(p types.TreeParentID) bool {
	if n, ok := p.Node(); ok {
		return s.contains(n)
	}
	return true
}

// isDeleted reports whether the node sits under the deleted root, directly
// or through an ancestor.
func (s *treeState) isDeleted(t types.TreeID) bool {
	seen := mapset.NewThreadUnsafeSet[types.TreeID]()
	cur := t
	for {
		n, ok := s.nodes[cur]
		if !ok {
			return true
		}
		if n.parent.IsDeleted() {
			return true
		}
		p, isNode := n.parent.Node()
		if !isNode {
			return false
		}
		if !seen.Add(p) {
			return true
		}
		cur = p
	}
}

// isAncestor reports whether a is an ancestor of b.
func (s *treeState) isAncestor(a, b types.TreeID) bool {
	seen := mapset.NewThreadUnsafeSet[types.TreeID]()
	cur := b
	for {
		n, ok := s.nodes[cur]
		if !ok {
			return false
		}
		p, isNode := n.parent.Node()
		if !isNode {
			return false
		}
		if p == a {
			return true
		}
		if !seen.Add(p) {
			return false
		}
		cur = p
	}
}

// childrenIn returns the live children of a parent within the given node
// table, sorted by fractional index with ties broken by last-move ID.
func childrenIn(nodes map[types.TreeID]*treeNode, parent types.TreeParentID) []*treeNode {
	var out []*treeNode
	for _, n := range nodes {
		if n.parent == parent {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := fracindex.Compare(out[i].fi, out[j].fi); c != 0 {
			return c < 0
		}
		return out[i].lastMove.Compare(out[j].lastMove) < 0
	})
	return out
}

func (s *treeState) childrenOf(parent types.TreeParentID) []*treeNode {
	return childrenIn(s.nodes, parent)
}

// siblingIndexIn returns the node's position among its live siblings in the
// given node table, or -1 when the node is deleted.
func siblingIndexIn(nodes map[types.TreeID]*treeNode, t types.TreeID) int {
	n, ok := nodes[t]
	if !ok {
		return -1
	}
	for i, sib := range childrenIn(nodes, n.parent) {
		if sib.id == t {
			return i
		}
	}
	return -1
}

func (s *treeState) siblingIndex(t types.TreeID) int {
	return siblingIndexIn(s.nodes, t)
}

func opBefore(a, b Op) bool {
	if a.Lamport != b.Lamport {
		return a.Lamport < b.Lamport
	}
	return a.ID.Compare(b.ID) < 0
}

// apply integrates one tree op and returns the resulting diff items plus the
// inverse content for local undo (nil when the op had no effect).
func (s *treeState) apply(op Op) ([]TreeDiffItem, OpContent) {
	if len(s.log) == 0 || opBefore(s.log[len(s.log)-1], op) {
		s.log = append(s.log, op)
		return s.applyTail(op)
	}
	// Out of order: splice into the canonical position and replay.
	pos := sort.Search(len(s.log), func(i int) bool { return opBefore(op, s.log[i]) })
	s.log = append(s.log, Op{})
	copy(s.log[pos+1:], s.log[pos:])
	s.log[pos] = op
	return s.rebuild(), nil
}

// applyTail applies an op already known to be the newest in canonical order.
func (s *treeState) applyTail(op Op) ([]TreeDiffItem, OpContent) {
	switch c := op.Content.(type) {
	case TreeCreate:
		id := types.NewTreeID(op.ID)
		if !s.parentKnown(c.Parent) {
			return nil, nil
		}
		s.nodes[id] = &treeNode{id: id, parent: c.Parent, fi: c.Index, lastMove: op.ID, lamport: op.Lamport}
		item := TreeDiffItem{
			Target: id,
			Action: TreeDiffAction{
				Kind:            TreeActionCreate,
				Parent:          c.Parent,
				Index:           s.siblingIndex(id),
				FractionalIndex: c.Index.String(),
			},
		}
		return []TreeDiffItem{item}, TreeDelete{Target: id}

	case TreeMove:
		n, ok := s.nodes[c.Target]
		if !ok || !s.parentKnown(c.Parent) {
			return nil, nil
		}
		if p, isNode := c.Parent.Node(); isNode {
			if p == c.Target || s.isAncestor(c.Target, p) {
				return nil, nil
			}
		}
		oldParent := n.parent
		oldFI := n.fi
		oldIndex := s.siblingIndex(c.Target)
		n.parent = c.Parent
		n.fi = c.Index
		n.lastMove = op.ID
		n.lamport = op.Lamport
		item := TreeDiffItem{
			Target: c.Target,
			Action: TreeDiffAction{
				Kind:            TreeActionMove,
				Parent:          c.Parent,
				Index:           s.siblingIndex(c.Target),
				FractionalIndex: c.Index.String(),
				OldParent:       oldParent,
				OldIndex:        oldIndex,
			},
		}
		return []TreeDiffItem{item}, TreeMove{Target: c.Target, Parent: oldParent, Index: oldFI}

	case TreeDelete:
		n, ok := s.nodes[c.Target]
		if !ok || n.parent.IsDeleted() {
			return nil, nil
		}
		oldParent := n.parent
		oldFI := n.fi
		oldIndex := s.siblingIndex(c.Target)
		n.parent = types.DeletedParent()
		n.lastMove = op.ID
		n.lamport = op.Lamport
		item := TreeDiffItem{
			Target: c.Target,
			Action: TreeDiffAction{
				Kind:      TreeActionDelete,
				OldParent: oldParent,
				OldIndex:  oldIndex,
			},
		}
		return []TreeDiffItem{item}, TreeMove{Target: c.Target, Parent: oldParent, Index: oldFI}
	}
	return nil, nil
}

// rebuild replays the whole canonical log from scratch and diffs the old
// node table against the new one.
func (s *treeState) rebuild() []TreeDiffItem {
	old := s.nodes
	s.nodes = make(map[types.TreeID]*treeNode, len(old))
	for _, op := range s.log {
		s.applyTail(op)
	}

	known := mapset.NewThreadUnsafeSet[types.TreeID]()
	for id := range old {
		known.Add(id)
	}
	for id := range s.nodes {
		known.Add(id)
	}

	var items []TreeDiffItem
	for _, id := range known.ToSlice() {
		before, hadBefore := old[id]
		after, hasAfter := s.nodes[id]
		beforeLive := hadBefore && !before.parent.IsDeleted()
		afterLive := hasAfter && !after.parent.IsDeleted()
		switch {
		case !beforeLive && afterLive:
			items = append(items, TreeDiffItem{
				Target: id,
				Action: TreeDiffAction{
					Kind:            TreeActionCreate,
					Parent:          after.parent,
					Index:           s.siblingIndex(id),
					FractionalIndex: after.fi.String(),
				},
			})
		case beforeLive && !afterLive:
			items = append(items, TreeDiffItem{
				Target: id,
				Action: TreeDiffAction{
					Kind:      TreeActionDelete,
					OldParent: before.parent,
					OldIndex:  siblingIndexIn(old, id),
				},
			})
		case beforeLive && afterLive:
			if before.parent != after.parent || fracindex.Compare(before.fi, after.fi) != 0 {
				items = append(items, TreeDiffItem{
					Target: id,
					Action: TreeDiffAction{
						Kind:            TreeActionMove,
						Parent:          after.parent,
						Index:           s.siblingIndex(id),
						FractionalIndex: after.fi.String(),
						OldParent:       before.parent,
						OldIndex:        siblingIndexIn(old, id),
					},
				})
			}
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Target.ID().Compare(items[j].Target.ID()) < 0
	})
	return items
}

// keyBetween allocates a fractional index between two sibling slots.
func (s *treeState) keyBetween(low, high fracindex.Key) (fracindex.Key, error) {
	alloc := fracindex.NewAllocator(s.jitter)
	return alloc.Generate(low, high)
}

// keyForSlot returns a fractional index placing a node at index among the
// given live siblings, ignoring the node itself if it is already there.
// With fractional indexing disabled every node shares the default key and
// siblings order by last-move ID alone.
func (s *treeState) keyForSlot(siblings []*treeNode, index int, self types.TreeID) (fracindex.Key, error) {
	if !s.fiEnabled {
		return fracindex.DefaultKey(), nil
	}
	filtered := siblings[:0:0]
	for _, n := range siblings {
		if n.id != self {
			filtered = append(filtered, n)
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(filtered) {
		index = len(filtered)
	}
	var low, high fracindex.Key
	if index > 0 {
		low = filtered[index-1].fi
	}
	if index < len(filtered) {
		high = filtered[index].fi
	}
	if low != nil && high != nil && fracindex.Compare(low, high) >= 0 {
		// Jittered keys can collide; fall back to appending after low.
		high = nil
	}
	return s.keyBetween(low, high)
}

// treeValue materializes the tree as a list of node maps sorted in document
// order. With meta set, each node carries its resolved metadata map.
func (d *Doc) treeValue(cid types.ContainerID, s *treeState, meta bool) types.Value {
	var out []types.Value
	var walk func(parent types.TreeParentID)
	walk = func(parent types.TreeParentID) {
		for i, n := range s.childrenOf(parent) {
			m := map[string]types.Value{
				"id":               types.NewString(n.id.String()),
				"parent":           treeParentValue(n.parent),
				"index":            types.NewI64(int64(i)),
				"fractional_index": types.NewString(n.fi.String()),
			}
			if meta {
				metaCID := types.NewContainerID(n.id.ID(), types.MapType)
				if _, ok := d.containers[metaCID]; ok {
					m["meta"] = d.deepValueOf(metaCID)
				} else {
					m["meta"] = types.NewMap(map[string]types.Value{})
				}
			}
			out = append(out, types.NewMap(m))
			walk(types.NodeParent(n.id))
		}
	}
	walk(types.RootParent())
	return types.NewList(out...)
}

func treeParentValue(p types.TreeParentID) types.Value {
	if n, ok := p.Node(); ok {
		return types.NewString(n.String())
	}
	return types.Null()
}
