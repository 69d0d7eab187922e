package replidoc

import (
	"sort"

	"github.com/replidoc/replidoc/types"
)

// seqElem is one element of a replicated sequence. Elements are never
// removed; deletion marks a tombstone so the element stays addressable by ID
// for cursors and history.
type seqElem struct {
	id      types.ID
	lamport uint32
	value   types.Value
	deleted bool

	hasOrigin bool
	origin    types.ID

	// children holds elements inserted directly after this one, ordered by
	// (lamport, id) descending so later concurrent inserts land first.
	children []*seqElem
}

// seqState is the ordered state shared by list, movable list, and text
// containers: a causal tree of elements whose document order is a
// depth-first walk with recency-ordered siblings. Integration is
// commutative with respect to delivery order as long as an element's origin
// is integrated first; the importer guarantees that.
type seqState struct {
	heads []*seqElem // elements with no origin, ordered like children
	index map[types.ID]*seqElem

	// extraHidden, when set, hides additional elements from the visible
	// sequence beyond tombstones. The movable list uses it to hide the
	// losing position entries of a moved element.
	extraHidden func(*seqElem) bool
}

func newSeqState() *seqState {
	return &seqState{index: make(map[types.ID]*seqElem)}
}

// visible reports whether an element counts toward positions and values.
func (s *seqState) visible(e *seqElem) bool {
	if e.deleted {
		return false
	}
	return s.extraHidden == nil || !s.extraHidden(e)
}

// before reports whether a should precede b among siblings: higher
// (lamport, id) first.
func seqElemBefore(a, b *seqElem) bool {
	if a.lamport != b.lamport {
		return a.lamport > b.lamport
	}
	return a.id.Compare(b.id) > 0
}

func insertSibling(siblings []*seqElem, e *seqElem) []*seqElem {
	pos := sort.Search(len(siblings), func(i int) bool {
		return seqElemBefore(e, siblings[i])
	})
	siblings = append(siblings, nil)
	copy(siblings[pos+1:], siblings[pos:])
	siblings[pos] = e
	return siblings
}

// integrate adds an element to the sequence. The origin element, when set,
// must already be integrated.
func (s *seqState) integrate(id types.ID, lamport uint32, origin *types.ID, value types.Value) *seqElem {
	e := &seqElem{id: id, lamport: lamport, value: value}
	if origin != nil {
		e.hasOrigin = true
		e.origin = *origin
		parent := s.index[e.origin]
		parent.children = insertSibling(parent.children, e)
	} else {
		s.heads = insertSibling(s.heads, e)
	}
	s.index[id] = e
	return e
}

func (s *seqState) get(id types.ID) (*seqElem, bool) {
	e, ok := s.index[id]
	return e, ok
}

// walk visits every element, tombstones included, in document order. The
// walk stops early when fn returns false.
func (s *seqState) walk(fn func(*seqElem) bool) {
	// The stack holds elements still to visit; children are pushed in
	// ascending order so the highest-priority sibling pops first.
	stack := make([]*seqElem, 0, len(s.index))
	for i := len(s.heads) - 1; i >= 0; i-- {
		stack = append(stack, s.heads[i])
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(e) {
			return
		}
		for i := len(e.children) - 1; i >= 0; i-- {
			stack = append(stack, e.children[i])
		}
	}
}

// visibleLen returns the number of live elements.
func (s *seqState) visibleLen() int {
	n := 0
	s.walk(func(e *seqElem) bool {
		if s.visible(e) {
			n++
		}
		return true
	})
	return n
}

// elemAtVisible returns the live element at the given position.
func (s *seqState) elemAtVisible(pos int) *seqElem {
	var found *seqElem
	i := 0
	s.walk(func(e *seqElem) bool {
		if !s.visible(e) {
			return true
		}
		if i == pos {
			found = e
			return false
		}
		i++
		return true
	})
	return found
}

// visiblePos returns the number of live elements strictly before e in
// document order. For a live element that is its index; for a tombstone it
// is the index the element would occupy.
func (s *seqState) visiblePos(target *seqElem) int {
	pos := 0
	s.walk(func(e *seqElem) bool {
		if e == target {
			return false
		}
		if s.visible(e) {
			pos++
		}
		return true
	})
	return pos
}

// neighbors scans outward from a tombstone and returns the nearest live
// element on each side in document order. Either may be nil.
func (s *seqState) neighbors(target *seqElem) (left, right *seqElem) {
	seen := false
	s.walk(func(e *seqElem) bool {
		if e == target {
			seen = true
			return true
		}
		if !s.visible(e) {
			return true
		}
		if !seen {
			left = e
			return true
		}
		right = e
		return false
	})
	return left, right
}

// values returns the live element values in document order.
func (s *seqState) values() []types.Value {
	out := make([]types.Value, 0, len(s.index))
	s.walk(func(e *seqElem) bool {
		if s.visible(e) {
			out = append(out, e.value)
		}
		return true
	})
	return out
}
