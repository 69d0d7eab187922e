package replidoc

import (
	"fmt"

	"github.com/replidoc/replidoc/types"
)

// mlRegister is the last-writer-wins value register of a movable list
// element.
type mlRegister struct {
	value   types.Value
	lamport uint32
	peer    types.PeerID
}

// movableListState layers element identity on top of a causal-tree sequence.
// Every insert and every move creates a position entry in the sequence; the
// element's value lives in a register keyed by the element ID (the insert
// op's ID) and only the winning position entry of each element is visible.
type movableListState struct {
	seq    *seqState
	elemOf map[types.ID]types.ID // position entry -> element
	reg    map[types.ID]mlRegister
	winner map[types.ID]types.ID // element -> winning position entry
}

func newMovableListState() *movableListState {
	s := &movableListState{
		seq:    newSeqState(),
		elemOf: make(map[types.ID]types.ID),
		reg:    make(map[types.ID]mlRegister),
		winner: make(map[types.ID]types.ID),
	}
	s.seq.extraHidden = func(e *seqElem) bool {
		elem, ok := s.elemOf[e.id]
		if !ok {
			return false
		}
		return s.winner[elem] != e.id
	}
	return s
}

func (s *movableListState) kind() types.ContainerType { return types.MovableListType }

// elemAtVisible resolves the element ID at a visible index.
func (s *movableListState) elemAtVisible(pos int) (types.ID, *seqElem) {
	e := s.seq.elemAtVisible(pos)
	return s.elemOf[e.id], e
}

// visibleValues returns the register value of each visible element in order.
func (s *movableListState) visibleValues() []types.Value {
	var out []types.Value
	s.seq.walk(func(e *seqElem) bool {
		if s.seq.visible(e) {
			out = append(out, s.reg[s.elemOf[e.id]].value)
		}
		return true
	})
	return out
}

// MovableList is an ordered container whose elements keep their identity
// across moves and value updates. Concurrent moves of the same element
// converge to a single position instead of duplicating it.
type MovableList struct {
	doc *Doc
	cid types.ContainerID
}

// NewMovableList creates a detached movable list.
func NewMovableList() *MovableList {
	d := newScratchDoc()
	return d.GetMovableList("list")
}

func (l *MovableList) ID() types.ContainerID     { return l.cid }
func (l *MovableList) Type() types.ContainerType { return types.MovableListType }
func (l *MovableList) IsAttached() bool          { return l.doc.peer != detachedPeer }
func (l *MovableList) isContainer()              {}

func (l *MovableList) state() (*movableListState, error) {
	s, ok := l.doc.containers[l.cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, l.cid)
	}
	return s.(*movableListState), nil
}

// Insert places v before the element currently at index pos.
func (l *MovableList) Insert(pos int, v interface{}) error {
	val, err := types.FromGo(v)
	if err != nil {
		return err
	}
	return l.insertValue(pos, val)
}

func (l *MovableList) insertValue(pos int, val types.Value) error {
	if err := l.doc.mutationGuard(); err != nil {
		return err
	}
	return l.doc.lock.execute(writeOperation, func() error {
		s, err := l.state()
		if err != nil {
			return err
		}
		n := s.seq.visibleLen()
		if pos < 0 || pos > n {
			return errIndex(pos, n)
		}
		content := SeqInsert{Value: val}
		if pos > 0 {
			content.HasOrigin = true
			content.Origin = s.seq.elemAtVisible(pos - 1).id
		}
		op := l.doc.newLocalOp(l.cid, content)
		l.doc.applyOp(op, true)
		return nil
	})
}

// Delete removes count elements starting at index pos.
func (l *MovableList) Delete(pos, count int) error {
	if err := l.doc.mutationGuard(); err != nil {
		return err
	}
	return l.doc.lock.execute(writeOperation, func() error {
		s, err := l.state()
		if err != nil {
			return err
		}
		n := s.seq.visibleLen()
		if pos < 0 || count < 0 || pos+count > n {
			return errIndex(pos+count, n)
		}
		for i := 0; i < count; i++ {
			e := s.seq.elemAtVisible(pos)
			op := l.doc.newLocalOp(l.cid, SeqDelete{Elem: e.id})
			l.doc.applyOp(op, true)
		}
		return nil
	})
}

// Set replaces the value of the element at index pos without changing its
// identity or position.
func (l *MovableList) Set(pos int, v interface{}) error {
	val, err := types.FromGo(v)
	if err != nil {
		return err
	}
	return l.setValue(pos, val)
}

func (l *MovableList) setValue(pos int, val types.Value) error {
	if err := l.doc.mutationGuard(); err != nil {
		return err
	}
	return l.doc.lock.execute(writeOperation, func() error {
		s, err := l.state()
		if err != nil {
			return err
		}
		n := s.seq.visibleLen()
		if pos < 0 || pos >= n {
			return errIndex(pos, n)
		}
		elem, _ := s.elemAtVisible(pos)
		op := l.doc.newLocalOp(l.cid, ListSet{Elem: elem, Value: val})
		l.doc.applyOp(op, true)
		return nil
	})
}

// Mov moves the element at index from so that it ends up at index to. The
// target index is interpreted against the list after the element has been
// taken out.
func (l *MovableList) Mov(from, to int) error {
	if err := l.doc.mutationGuard(); err != nil {
		return err
	}
	return l.doc.lock.execute(writeOperation, func() error {
		s, err := l.state()
		if err != nil {
			return err
		}
		n := s.seq.visibleLen()
		if from < 0 || from >= n {
			return errIndex(from, n)
		}
		if to < 0 || to >= n {
			return errIndex(to, n)
		}
		elem, _ := s.elemAtVisible(from)
		content := ListMove{Elem: elem}
		// Anchor the new position entry left of the destination slot,
		// skipping the element itself when it sits before the target.
		anchorIdx := to
		if from >= to {
			anchorIdx = to - 1
		}
		if anchorIdx >= 0 {
			content.HasOrigin = true
			content.Origin = s.seq.elemAtVisible(anchorIdx).id
		}
		op := l.doc.newLocalOp(l.cid, content)
		l.doc.applyOp(op, true)
		return nil
	})
}

// Push appends v at the end.
func (l *MovableList) Push(v interface{}) error {
	val, err := types.FromGo(v)
	if err != nil {
		return err
	}
	if err := l.doc.mutationGuard(); err != nil {
		return err
	}
	return l.doc.lock.execute(writeOperation, func() error {
		s, err := l.state()
		if err != nil {
			return err
		}
		content := SeqInsert{Value: val}
		if n := s.seq.visibleLen(); n > 0 {
			content.HasOrigin = true
			content.Origin = s.seq.elemAtVisible(n - 1).id
		}
		op := l.doc.newLocalOp(l.cid, content)
		l.doc.applyOp(op, true)
		return nil
	})
}

// Pop removes and returns the last element.
func (l *MovableList) Pop() (interface{}, bool, error) {
	if err := l.doc.mutationGuard(); err != nil {
		return nil, false, err
	}
	res, err := l.doc.lock.executeWithResult(writeOperation, func() (interface{}, error) {
		s, err := l.state()
		if err != nil {
			return nil, err
		}
		n := s.seq.visibleLen()
		if n == 0 {
			return nil, nil
		}
		elem, e := s.elemAtVisible(n - 1)
		v := s.reg[elem].value
		op := l.doc.newLocalOp(l.cid, SeqDelete{Elem: e.id})
		l.doc.applyOp(op, true)
		return v.ToGo(), nil
	})
	if err != nil {
		return nil, false, err
	}
	if res == nil {
		return nil, false, nil
	}
	return res, true, nil
}

// Get returns the element value at index pos.
func (l *MovableList) Get(pos int) (interface{}, error) {
	return l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := l.state()
		if err != nil {
			return nil, err
		}
		n := s.seq.visibleLen()
		if pos < 0 || pos >= n {
			return nil, errIndex(pos, n)
		}
		elem, _ := s.elemAtVisible(pos)
		v := s.reg[elem].value
		if v.Kind == types.ContainerValue {
			return l.doc.handleFor(v.Container), nil
		}
		return v.ToGo(), nil
	})
}

// Len returns the number of visible elements.
func (l *MovableList) Len() int {
	res, _ := l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := l.state()
		if err != nil {
			return 0, nil
		}
		return s.seq.visibleLen(), nil
	})
	return res.(int)
}

// IsEmpty reports whether the list has no visible elements.
func (l *MovableList) IsEmpty() bool { return l.Len() == 0 }

// Clear deletes every element.
func (l *MovableList) Clear() error { return l.Delete(0, l.Len()) }

// GetValue returns the list contents with nested containers as references.
func (l *MovableList) GetValue() types.Value {
	res, _ := l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return l.doc.shallowValueOf(l.cid), nil
	})
	return res.(types.Value)
}

// GetDeepValue returns the list contents with nested containers resolved
// recursively.
func (l *MovableList) GetDeepValue() types.Value {
	res, _ := l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return l.doc.deepValueOf(l.cid), nil
	})
	return res.(types.Value)
}

// ToVec returns the visible element values as plain Go values.
func (l *MovableList) ToVec() []interface{} {
	res, _ := l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := l.state()
		if err != nil {
			return []interface{}{}, nil
		}
		vals := s.visibleValues()
		out := make([]interface{}, len(vals))
		for i, v := range vals {
			out[i] = v.ToGo()
		}
		return out, nil
	})
	return res.([]interface{})
}

// InsertContainer inserts a child container at pos.
func (l *MovableList) InsertContainer(pos int, child Container) (Container, error) {
	if err := l.doc.mutationGuard(); err != nil {
		return nil, err
	}
	res, err := l.doc.lock.executeWithResult(writeOperation, func() (interface{}, error) {
		s, err := l.state()
		if err != nil {
			return nil, err
		}
		n := s.seq.visibleLen()
		if pos < 0 || pos > n {
			return nil, errIndex(pos, n)
		}
		cid := types.NewContainerID(l.doc.nextOpID(), child.Type())
		content := SeqInsert{Value: types.NewContainerRef(cid)}
		if pos > 0 {
			content.HasOrigin = true
			content.Origin = s.seq.elemAtVisible(pos - 1).id
		}
		op := l.doc.newLocalOp(l.cid, content)
		l.doc.applyOp(op, true)
		if !child.IsAttached() {
			l.doc.copyContents(child, cid)
		}
		return cid, nil
	})
	if err != nil {
		return nil, err
	}
	return l.doc.handleFor(res.(types.ContainerID)), nil
}

// PushContainer appends a child container.
func (l *MovableList) PushContainer(child Container) (Container, error) {
	return l.InsertContainer(l.Len(), child)
}

// SetContainer replaces the element at pos with a child container.
func (l *MovableList) SetContainer(pos int, child Container) (Container, error) {
	if err := l.doc.mutationGuard(); err != nil {
		return nil, err
	}
	res, err := l.doc.lock.executeWithResult(writeOperation, func() (interface{}, error) {
		s, err := l.state()
		if err != nil {
			return nil, err
		}
		n := s.seq.visibleLen()
		if pos < 0 || pos >= n {
			return nil, errIndex(pos, n)
		}
		elem, _ := s.elemAtVisible(pos)
		cid := types.NewContainerID(l.doc.nextOpID(), child.Type())
		op := l.doc.newLocalOp(l.cid, ListSet{Elem: elem, Value: types.NewContainerRef(cid)})
		l.doc.applyOp(op, true)
		if !child.IsAttached() {
			l.doc.copyContents(child, cid)
		}
		return cid, nil
	})
	if err != nil {
		return nil, err
	}
	return l.doc.handleFor(res.(types.ContainerID)), nil
}

// GetCursor returns a stable cursor for the given position.
func (l *MovableList) GetCursor(pos int, side Side) (*Cursor, error) {
	return l.doc.seqCursor(l.cid, pos, side)
}
