package replidoc

import (
	"fmt"
	"strings"

	"github.com/replidoc/replidoc/types"
)

// textState stores one rune per sequence element. Indices throughout the
// text API are rune indices, not byte offsets.
type textState struct {
	seq *seqState
}

func (s *textState) kind() types.ContainerType { return types.TextType }

// textOf concatenates the visible runes of a text sequence.
func textOf(seq *seqState) string {
	var b strings.Builder
	seq.walk(func(e *seqElem) bool {
		if seq.visible(e) {
			b.WriteString(e.value.Str)
		}
		return true
	})
	return b.String()
}

// Text is a collaborative text container.
type Text struct {
	doc *Doc
	cid types.ContainerID
}

// NewText creates a detached text.
func NewText() *Text {
	d := newScratchDoc()
	return d.GetText("text")
}

func (t *Text) ID() types.ContainerID     { return t.cid }
func (t *Text) Type() types.ContainerType { return types.TextType }
func (t *Text) IsAttached() bool          { return t.doc.peer != detachedPeer }
func (t *Text) isContainer()              {}

func (t *Text) state() (*textState, error) {
	s, ok := t.doc.containers[t.cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, t.cid)
	}
	return s.(*textState), nil
}

// Insert places s before the rune currently at index pos.
func (t *Text) Insert(pos int, s string) error {
	if err := t.doc.mutationGuard(); err != nil {
		return err
	}
	return t.doc.lock.execute(writeOperation, func() error {
		return t.insertLocked(pos, s)
	})
}

// insertLocked inserts one op per rune, each anchored on its predecessor.
// Callers hold the write lock.
func (t *Text) insertLocked(pos int, s string) error {
	st, err := t.state()
	if err != nil {
		return err
	}
	n := st.seq.visibleLen()
	if pos < 0 || pos > n {
		return errIndex(pos, n)
	}
	var left *types.ID
	if pos > 0 {
		id := st.seq.elemAtVisible(pos - 1).id
		left = &id
	}
	for _, r := range s {
		content := SeqInsert{Value: types.NewString(string(r))}
		if left != nil {
			content.HasOrigin = true
			content.Origin = *left
		}
		op := t.doc.newLocalOp(t.cid, content)
		t.doc.applyOp(op, true)
		id := op.ID
		left = &id
	}
	return nil
}

// Delete removes count runes starting at index pos.
func (t *Text) Delete(pos, count int) error {
	if err := t.doc.mutationGuard(); err != nil {
		return err
	}
	return t.doc.lock.execute(writeOperation, func() error {
		return t.deleteLocked(pos, count)
	})
}

func (t *Text) deleteLocked(pos, count int) error {
	st, err := t.state()
	if err != nil {
		return err
	}
	n := st.seq.visibleLen()
	if pos < 0 || count < 0 || pos+count > n {
		return errIndex(pos+count, n)
	}
	for i := 0; i < count; i++ {
		e := st.seq.elemAtVisible(pos)
		op := t.doc.newLocalOp(t.cid, SeqDelete{Elem: e.id})
		t.doc.applyOp(op, true)
	}
	return nil
}

// Splice replaces count runes at pos with s and returns the removed text.
func (t *Text) Splice(pos, count int, s string) (string, error) {
	if err := t.doc.mutationGuard(); err != nil {
		return "", err
	}
	res, err := t.doc.lock.executeWithResult(writeOperation, func() (interface{}, error) {
		st, err := t.state()
		if err != nil {
			return "", err
		}
		n := st.seq.visibleLen()
		if pos < 0 || count < 0 || pos+count > n {
			return "", errIndex(pos+count, n)
		}
		removed := make([]rune, 0, count)
		for i := 0; i < count; i++ {
			e := st.seq.elemAtVisible(pos)
			removed = append(removed, []rune(e.value.Str)...)
			op := t.doc.newLocalOp(t.cid, SeqDelete{Elem: e.id})
			t.doc.applyOp(op, true)
		}
		if err := t.insertLocked(pos, s); err != nil {
			return "", err
		}
		return string(removed), nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// CharAt returns the rune at index pos.
func (t *Text) CharAt(pos int) (rune, error) {
	res, err := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		st, err := t.state()
		if err != nil {
			return rune(0), err
		}
		n := st.seq.visibleLen()
		if pos < 0 || pos >= n {
			return rune(0), errIndex(pos, n)
		}
		return []rune(st.seq.elemAtVisible(pos).value.Str)[0], nil
	})
	if err != nil {
		return 0, err
	}
	return res.(rune), nil
}

// Slice returns the runes in [start, end).
func (t *Text) Slice(start, end int) (string, error) {
	res, err := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		st, err := t.state()
		if err != nil {
			return "", err
		}
		n := st.seq.visibleLen()
		if start < 0 || end < start || end > n {
			return "", errIndex(end, n)
		}
		var b strings.Builder
		for i := start; i < end; i++ {
			b.WriteString(st.seq.elemAtVisible(i).value.Str)
		}
		return b.String(), nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Len returns the text length in runes.
func (t *Text) Len() int {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		st, err := t.state()
		if err != nil {
			return 0, nil
		}
		return st.seq.visibleLen(), nil
	})
	return res.(int)
}

// IsEmpty reports whether the text is empty.
func (t *Text) IsEmpty() bool { return t.Len() == 0 }

// ToString returns the current text.
func (t *Text) ToString() string {
	res, _ := t.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		st, err := t.state()
		if err != nil {
			return "", nil
		}
		return textOf(st.seq), nil
	})
	return res.(string)
}

// Update replaces the whole text with s, expressed as a minimal edit: the
// shared prefix and suffix are kept and only the differing middle is
// spliced. Cursors outside the changed region stay stable.
func (t *Text) Update(s string) error {
	if err := t.doc.mutationGuard(); err != nil {
		return err
	}
	return t.doc.lock.execute(writeOperation, func() error {
		st, err := t.state()
		if err != nil {
			return err
		}
		old := []rune(textOf(st.seq))
		next := []rune(s)
		prefix := 0
		for prefix < len(old) && prefix < len(next) && old[prefix] == next[prefix] {
			prefix++
		}
		suffix := 0
		for suffix < len(old)-prefix && suffix < len(next)-prefix &&
			old[len(old)-1-suffix] == next[len(next)-1-suffix] {
			suffix++
		}
		if err := t.deleteLocked(prefix, len(old)-prefix-suffix); err != nil {
			return err
		}
		return t.insertLocked(prefix, string(next[prefix:len(next)-suffix]))
	})
}

// GetValue returns the text as a string value.
func (t *Text) GetValue() types.Value { return types.NewString(t.ToString()) }

// GetCursor returns a stable cursor for the given position.
func (t *Text) GetCursor(pos int, side Side) (*Cursor, error) {
	return t.doc.seqCursor(t.cid, pos, side)
}
