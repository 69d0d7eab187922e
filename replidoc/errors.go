// Package replidoc implements a replicated document: a set of conflict-free
// container types (list, map, movable list, text, movable tree, counter)
// that can be edited independently by multiple peers and merged
// deterministically, plus stable cursors, a structured diff/event pipeline,
// and an undo/redo manager.
package replidoc

import (
	"errors"

	"github.com/replidoc/replidoc/fracindex"
	"github.com/replidoc/replidoc/types"
)

// Operation errors. Merge-time conflicts are never errors; they are resolved
// deterministically and never surfaced to the caller.
var (
	// ErrContainerNotFound indicates that a container ID does not resolve to
	// a container in the document.
	ErrContainerNotFound = errors.New("container not found")

	// ErrTreeNodeNotExist indicates that a tree operation referenced a node
	// that is absent or deleted.
	ErrTreeNodeNotExist = errors.New("tree node does not exist")

	// ErrCyclicMoveRejected indicates that a move would make a node its own
	// ancestor. Ancestry is checked against the state at the time the move
	// is applied.
	ErrCyclicMoveRejected = errors.New("move rejected: would create a cycle")

	// ErrFractionalIndexDisabled indicates that a position-sensitive tree
	// operation was called while fractional indexing is disabled.
	ErrFractionalIndexDisabled = errors.New("fractional index is disabled")

	// ErrIndexOutOfBounds indicates a position outside the container's
	// current bounds.
	ErrIndexOutOfBounds = errors.New("index out of bounds")

	// ErrDetachedContainer indicates an operation that requires an attached
	// container was called on a detached one.
	ErrDetachedContainer = errors.New("container is detached from a document")

	// ErrReentrantCall indicates that an event handler or undo hook
	// attempted a nested mutation of the document that triggered it.
	ErrReentrantCall = errors.New("reentrant document mutation from handler")

	// ErrPosNotFound indicates that a cursor references an element the
	// document has never seen.
	ErrPosNotFound = errors.New("cursor position not found")
)

// ErrKeyExhausted is the allocator's internal-overflow guard, re-exported
// so callers can match it without importing fracindex.
var ErrKeyExhausted = fracindex.ErrKeyExhausted

// ErrInvalidValueType reports a failed host-value conversion at the API
// boundary, re-exported from the types package.
var ErrInvalidValueType = types.ErrInvalidValueType
