package replidoc

import (
	"strings"
	"sync"
	"time"

	"github.com/replidoc/replidoc/types"
)

// undoOrigin tags transactions produced by Undo and Redo so subscribers can
// tell them apart from direct edits.
const undoOrigin = "undo"

// CursorWithPos is a cursor snapshot stored in undo metadata, pairing the
// stable cursor with the absolute position it had when captured.
type CursorWithPos struct {
	Cursor *Cursor
	Pos    AbsolutePosition
}

// UndoItemMeta is application data attached to an undo stack entry, usually
// the selection to restore when the entry is undone.
type UndoItemMeta struct {
	Value   types.Value
	Cursors []CursorWithPos
}

// undoEntry is one undoable step: the inverse patches that revert it, the
// op spans it covers, and the metadata captured when it was pushed.
type undoEntry struct {
	spans   []CounterSpan
	patches []inverseOp
	meta    UndoItemMeta
	at      time.Time
}

// OnPushFn is called when a new entry lands on the undo or redo stack and
// returns the metadata to store with it. isUndo is false for entries pushed
// onto the redo stack by an undo.
type OnPushFn func(isUndo bool, span CounterSpan) UndoItemMeta

// OnPopFn is called with an entry's metadata right before it is replayed.
type OnPopFn func(isUndo bool, meta UndoItemMeta)

// UndoManager tracks local transactions on a document and reverts them with
// inverse patches. Only this peer's edits are undone; remote edits imported
// from other peers are never touched. Edits committed close together can be
// merged into a single step, and origins can be excluded wholesale.
type UndoManager struct {
	doc *Doc

	mu            sync.Mutex
	undoStack     []*undoEntry
	redoStack     []*undoEntry
	maxSteps      int
	mergeInterval time.Duration
	exclude       []string
	nextSeparate  bool

	// set while Undo or Redo replays patches, to route the resulting
	// transaction onto the opposite stack
	applyingUndo bool
	applyingRedo bool

	onPush OnPushFn
	onPop  OnPopFn
}

// NewUndoManager creates an undo manager bound to doc. Transactions
// committed after this point are recorded.
func NewUndoManager(doc *Doc) *UndoManager {
	u := &UndoManager{doc: doc, maxSteps: 100}
	doc.addTxnHook(u.onTxn)
	return u
}

// SetMaxUndoSteps caps the undo stack; the oldest entries are dropped
// first. The default is 100.
func (u *UndoManager) SetMaxUndoSteps(n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.maxSteps = n
	u.trimLocked()
}

// SetMergeInterval merges transactions committed within the interval into
// one undo step. Zero disables merging.
func (u *UndoManager) SetMergeInterval(d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mergeInterval = d
}

// AddExcludeOriginPrefix keeps transactions whose origin starts with the
// prefix off the undo stack entirely.
func (u *UndoManager) AddExcludeOriginPrefix(prefix string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.exclude = append(u.exclude, prefix)
}

// RecordNewCheckpoint forces the next transaction to start a fresh undo
// step even inside the merge interval.
func (u *UndoManager) RecordNewCheckpoint() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nextSeparate = true
}

// SetOnPush installs the metadata callback for new stack entries.
func (u *UndoManager) SetOnPush(fn OnPushFn) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onPush = fn
}

// SetOnPop installs the callback invoked before an entry is replayed.
func (u *UndoManager) SetOnPop(fn OnPopFn) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onPop = fn
}

// CanUndo reports whether an undo step is available.
func (u *UndoManager) CanUndo() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.undoStack) > 0
}

// CanRedo reports whether a redo step is available.
func (u *UndoManager) CanRedo() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.redoStack) > 0
}

// Clear drops both stacks.
func (u *UndoManager) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.undoStack = nil
	u.redoStack = nil
}

// Undo reverts the most recent undo step. It returns false when there is
// nothing to undo.
func (u *UndoManager) Undo() (bool, error) {
	return u.pop(true)
}

// Redo reapplies the most recent undone step.
func (u *UndoManager) Redo() (bool, error) {
	return u.pop(false)
}

func (u *UndoManager) pop(isUndo bool) (bool, error) {
	if err := u.doc.mutationGuard(); err != nil {
		return false, err
	}
	u.doc.Commit("")

	u.mu.Lock()
	stack := &u.undoStack
	if !isUndo {
		stack = &u.redoStack
	}
	if len(*stack) == 0 {
		u.mu.Unlock()
		return false, nil
	}
	entry := (*stack)[len(*stack)-1]
	*stack = (*stack)[:len(*stack)-1]
	onPop := u.onPop
	if isUndo {
		u.applyingUndo = true
	} else {
		u.applyingRedo = true
	}
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.applyingUndo = false
		u.applyingRedo = false
		u.mu.Unlock()
	}()

	if onPop != nil {
		onPop(isUndo, entry.meta)
	}

	err := u.doc.lock.execute(writeOperation, func() error {
		for i := len(entry.patches) - 1; i >= 0; i-- {
			p := entry.patches[i]
			if _, ok := u.doc.containers[p.container]; !ok {
				continue
			}
			op := u.doc.newLocalOp(p.container, p.content)
			u.doc.applyOp(op, true)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	u.doc.Commit(undoOrigin)
	return true, nil
}

// onTxn records committed transactions. It runs on the committing
// goroutine, after the document lock is released.
func (u *UndoManager) onTxn(rec *txnRecord) {
	if rec.kind != TriggeredByLocal || len(rec.inverses) == 0 {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	switch {
	case u.applyingUndo:
		u.redoStack = append(u.redoStack, u.newEntryLocked(false, rec))
		return
	case u.applyingRedo:
		u.undoStack = append(u.undoStack, u.newEntryLocked(true, rec))
		u.trimLocked()
		return
	}

	for _, prefix := range u.exclude {
		if strings.HasPrefix(rec.origin, prefix) {
			return
		}
	}

	// A fresh local edit invalidates the redo history.
	u.redoStack = nil

	now := time.Now()
	if !u.nextSeparate && u.mergeInterval > 0 && len(u.undoStack) > 0 {
		top := u.undoStack[len(u.undoStack)-1]
		if now.Sub(top.at) <= u.mergeInterval {
			top.spans = append(top.spans, rec.span)
			top.patches = append(top.patches, rec.inverses...)
			top.at = now
			return
		}
	}
	u.nextSeparate = false
	u.undoStack = append(u.undoStack, u.newEntryLocked(true, rec))
	u.trimLocked()
}

func (u *UndoManager) newEntryLocked(isUndo bool, rec *txnRecord) *undoEntry {
	e := &undoEntry{
		spans:   []CounterSpan{rec.span},
		patches: append([]inverseOp(nil), rec.inverses...),
		at:      time.Now(),
	}
	if u.onPush != nil {
		e.meta = u.onPush(isUndo, rec.span)
	}
	return e
}

// trimLocked evicts the oldest undo entries beyond the step cap.
func (u *UndoManager) trimLocked() {
	if u.maxSteps <= 0 {
		return
	}
	if n := len(u.undoStack) - u.maxSteps; n > 0 {
		u.undoStack = u.undoStack[n:]
	}
}
