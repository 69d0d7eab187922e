package replidoc

import (
	"fmt"

	"github.com/replidoc/replidoc/types"
)

// Side tells which side of its element a cursor sticks to.
type Side int8

const (
	SideLeft   Side = -1
	SideMiddle Side = 0
	SideRight  Side = 1
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "middle"
	}
}

// Cursor is a stable position in a text or list container. It pins the
// element that was at the position when the cursor was taken, so the
// position it resolves to moves with concurrent edits instead of drifting.
// A cursor without an element ID marks the end of the container.
type Cursor struct {
	Container types.ContainerID
	HasID     bool
	ID        types.ID
	Side      Side
}

// AbsolutePosition is a resolved cursor position.
type AbsolutePosition struct {
	Pos  int
	Side Side
}

// PosQueryResult carries the resolved position and, when the pinned element
// has been deleted, a refreshed cursor pinned to the nearest live neighbor.
type PosQueryResult struct {
	Current AbsolutePosition
	Update  *Cursor
}

// seqCursor builds a cursor for a position in a sequence container. A
// position outside [0, len] returns ErrIndexOutOfBounds; a position equal to
// len yields an end cursor with no pinned element.
func (d *Doc) seqCursor(cid types.ContainerID, pos int, side Side) (*Cursor, error) {
	res, err := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		state, ok := d.containers[cid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, cid)
		}
		seq := seqOf(state)
		if seq == nil {
			return nil, fmt.Errorf("%w: %s has no positions", ErrContainerNotFound, cid)
		}
		n := seq.visibleLen()
		if pos < 0 || pos > n {
			return nil, errIndex(pos, n)
		}
		if pos == n {
			return &Cursor{Container: cid, Side: side}, nil
		}
		return &Cursor{Container: cid, HasID: true, ID: seq.elemAtVisible(pos).id, Side: side}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*Cursor), nil
}

// GetCursorPos resolves a cursor against the current document state. When
// the pinned element is a tombstone the position between its nearest live
// neighbors is returned together with a refreshed cursor.
func (d *Doc) GetCursorPos(c *Cursor) (PosQueryResult, error) {
	res, err := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		state, ok := d.containers[c.Container]
		if !ok {
			return PosQueryResult{}, fmt.Errorf("%w: %s", ErrContainerNotFound, c.Container)
		}
		seq := seqOf(state)
		if seq == nil {
			return PosQueryResult{}, fmt.Errorf("%w: %s has no positions", ErrContainerNotFound, c.Container)
		}
		n := seq.visibleLen()
		if !c.HasID {
			return PosQueryResult{Current: AbsolutePosition{Pos: n, Side: c.Side}}, nil
		}
		e, found := seq.get(c.ID)
		if !found {
			return PosQueryResult{}, fmt.Errorf("%w: element %s", ErrPosNotFound, c.ID)
		}
		if seq.visible(e) {
			pos := seq.visiblePos(e)
			if c.Side == SideRight {
				pos++
			}
			return PosQueryResult{Current: AbsolutePosition{Pos: pos, Side: c.Side}}, nil
		}
		left, right := seq.neighbors(e)
		pos := 0
		update := &Cursor{Container: c.Container, Side: c.Side}
		switch {
		case left != nil:
			pos = seq.visiblePos(left) + 1
			update.HasID = true
			update.ID = left.id
			update.Side = SideRight
		case right != nil:
			pos = seq.visiblePos(right)
			update.HasID = true
			update.ID = right.id
			update.Side = SideLeft
		default:
			pos = 0
		}
		if pos > n {
			pos = n
		}
		return PosQueryResult{
			Current: AbsolutePosition{Pos: pos, Side: c.Side},
			Update:  update,
		}, nil
	})
	if err != nil {
		return PosQueryResult{}, err
	}
	return res.(PosQueryResult), nil
}
