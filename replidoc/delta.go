package replidoc

// Internal delta representation used while a transaction accumulates
// sequence edits. Each mutation contributes a tiny delta (retain to the
// position, then an insert or delete); compose folds it into the
// transaction's running delta so one DiffEvent describes the whole
// transaction.

type segKind int

const (
	segRetain segKind = iota
	segInsert
	segDelete
)

type seg[T any] struct {
	kind   segKind
	n      int
	vals   []T
	isMove bool
}

func (s seg[T]) length() int {
	if s.kind == segInsert {
		return len(s.vals)
	}
	return s.n
}

type delta[T any] struct {
	segs []seg[T]
}

func retainSeg[T any](n int) seg[T] {
	return seg[T]{kind: segRetain, n: n}
}

func insertSeg[T any](vals []T, isMove bool) seg[T] {
	return seg[T]{kind: segInsert, vals: vals, isMove: isMove}
}

func deleteSeg[T any](n int) seg[T] {
	return seg[T]{kind: segDelete, n: n}
}

// push appends a segment, merging it with the previous one when both are the
// same kind (and, for inserts, the same move flag).
func (d *delta[T]) push(s seg[T]) {
	if s.length() == 0 {
		return
	}
	if n := len(d.segs); n > 0 {
		last := &d.segs[n-1]
		if last.kind == s.kind && (s.kind != segInsert || last.isMove == s.isMove) {
			if s.kind == segInsert {
				last.vals = append(last.vals, s.vals...)
			} else {
				last.n += s.n
			}
			return
		}
	}
	d.segs = append(d.segs, s)
}

// chop drops a trailing retain; a delta never needs to end with one.
func (d *delta[T]) chop() {
	if n := len(d.segs); n > 0 && d.segs[n-1].kind == segRetain {
		d.segs = d.segs[:n-1]
	}
}

// segIter consumes a delta's segments in arbitrary split sizes.
type segIter[T any] struct {
	segs []seg[T]
	i    int
	off  int
}

func (it *segIter[T]) hasNext() bool {
	return it.i < len(it.segs)
}

// peekKind reports the kind of the next segment; exhausted iterators report
// an implicit infinite retain.
func (it *segIter[T]) peekKind() segKind {
	if !it.hasNext() {
		return segRetain
	}
	return it.segs[it.i].kind
}

func (it *segIter[T]) peekLen() int {
	if !it.hasNext() {
		return int(^uint(0) >> 1)
	}
	return it.segs[it.i].length() - it.off
}

// next consumes up to n units from the current segment.
func (it *segIter[T]) next(n int) seg[T] {
	if !it.hasNext() {
		return retainSeg[T](n)
	}
	cur := it.segs[it.i]
	remaining := cur.length() - it.off
	take := n
	if take > remaining {
		take = remaining
	}
	var out seg[T]
	switch cur.kind {
	case segInsert:
		out = seg[T]{kind: segInsert, vals: cur.vals[it.off : it.off+take], isMove: cur.isMove}
	case segRetain:
		out = retainSeg[T](take)
	default:
		out = deleteSeg[T](take)
	}
	it.off += take
	if it.off >= cur.length() {
		it.i++
		it.off = 0
	}
	return out
}

// compose folds b (expressed against the state after a) into a, producing a
// single delta expressed against the original state.
func compose[T any](a, b delta[T]) delta[T] {
	ia := &segIter[T]{segs: a.segs}
	ib := &segIter[T]{segs: b.segs}
	var out delta[T]
	for ia.hasNext() || ib.hasNext() {
		if ib.peekKind() == segInsert {
			out.push(ib.next(ib.peekLen()))
			continue
		}
		if ia.peekKind() == segDelete {
			out.push(ia.next(ia.peekLen()))
			continue
		}
		n := ia.peekLen()
		if bl := ib.peekLen(); bl < n {
			n = bl
		}
		aSeg := ia.next(n)
		bSeg := ib.next(n)
		switch bSeg.kind {
		case segRetain:
			out.push(aSeg)
		case segDelete:
			// Deleting what a inserted cancels both; deleting retained
			// content records the delete.
			if aSeg.kind == segRetain {
				out.push(deleteSeg[T](n))
			}
		}
	}
	out.chop()
	return out
}
