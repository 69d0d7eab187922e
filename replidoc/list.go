package replidoc

import (
	"fmt"

	"github.com/replidoc/replidoc/types"
)

// listState backs an insert/delete list with a causal-tree sequence.
type listState struct {
	seq *seqState
}

func (s *listState) kind() types.ContainerType { return types.ListType }

// List is an ordered container of values. Elements are inserted and deleted
// by index; concurrent edits converge without index shifting losing data.
type List struct {
	doc *Doc
	cid types.ContainerID
}

// NewList creates a detached list backed by its own scratch document. It can
// be edited freely and attached later with InsertContainer or PushContainer.
func NewList() *List {
	d := newScratchDoc()
	return d.GetList("list")
}

func (l *List) ID() types.ContainerID        { return l.cid }
func (l *List) Type() types.ContainerType    { return types.ListType }
func (l *List) IsAttached() bool             { return l.doc.peer != detachedPeer }
func (l *List) isContainer()                 {}
func (l *List) state() (*listState, error) {
	s, ok := l.doc.containers[l.cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, l.cid)
	}
	return s.(*listState), nil
}

// Insert places v before the element currently at index pos. pos may equal
// Len to append.
func (l *List) Insert(pos int, v interface{}) error {
	val, err := types.FromGo(v)
	if err != nil {
		return err
	}
	return l.insertValue(pos, val)
}

func (l *List) insertValue(pos int, val types.Value) error {
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
			left := s.seq.elemAtVisible(pos - 1)
			content.HasOrigin = true
			content.Origin = left.id
		}
		op := l.doc.newLocalOp(l.cid, content)
		l.doc.applyOp(op, true)
		return nil
	})
}

// Delete removes count elements starting at index pos.
func (l *List) Delete(pos, count int) error {
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

// Push appends v at the end.
func (l *List) Push(v interface{}) error {
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

// Pop removes and returns the last element. The second result is false when
// the list is empty.
func (l *List) Pop() (interface{}, bool, error) {
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
		e := s.seq.elemAtVisible(n - 1)
		op := l.doc.newLocalOp(l.cid, SeqDelete{Elem: e.id})
		l.doc.applyOp(op, true)
		return e.value.ToGo(), nil
	})
	if err != nil {
		return nil, false, err
	}
	if res == nil {
		return nil, false, nil
	}
	return res, true, nil
}

// Get returns the element at index pos.
func (l *List) Get(pos int) (interface{}, error) {
	res, err := l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := l.state()
		if err != nil {
			return nil, err
		}
		n := s.seq.visibleLen()
		if pos < 0 || pos >= n {
			return nil, errIndex(pos, n)
		}
		v := s.seq.elemAtVisible(pos).value
		if v.Kind == types.ContainerValue {
			return l.doc.handleFor(v.Container), nil
		}
		return v.ToGo(), nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Len returns the number of visible elements.
func (l *List) Len() int {
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
func (l *List) IsEmpty() bool { return l.Len() == 0 }

// Clear deletes every element.
func (l *List) Clear() error { return l.Delete(0, l.Len()) }

// GetValue returns the list contents with nested containers as references.
func (l *List) GetValue() types.Value {
	res, _ := l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return l.doc.shallowValueOf(l.cid), nil
	})
	return res.(types.Value)
}

// GetDeepValue returns the list contents with nested containers resolved
// recursively.
func (l *List) GetDeepValue() types.Value {
	res, _ := l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return l.doc.deepValueOf(l.cid), nil
	})
	return res.(types.Value)
}

// ToVec returns the visible elements as plain Go values.
func (l *List) ToVec() []interface{} {
	res, _ := l.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := l.state()
		if err != nil {
			return []interface{}{}, nil
		}
		vals := s.seq.values()
		out := make([]interface{}, len(vals))
		for i, v := range vals {
			out[i] = v.ToGo()
		}
		return out, nil
	})
	return res.([]interface{})
}

// InsertContainer inserts a child container at pos and returns the attached
// handle. A detached child has its contents copied in.
func (l *List) InsertContainer(pos int, child Container) (Container, error) {
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
			left := s.seq.elemAtVisible(pos - 1)
			content.HasOrigin = true
			content.Origin = left.id
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
func (l *List) PushContainer(child Container) (Container, error) {
	return l.InsertContainer(l.Len(), child)
}

// GetCursor returns a stable cursor for the given position.
func (l *List) GetCursor(pos int, side Side) (*Cursor, error) {
	return l.doc.seqCursor(l.cid, pos, side)
}
