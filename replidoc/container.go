package replidoc

import (
	"github.com/replidoc/replidoc/types"
)

// Container is the closed set of container handles: List, MovableList, Map,
// Text, Tree, Counter, and Unknown. Code needing kind-specific behavior
// switches over the concrete types exhaustively; the kind set is fixed.
type Container interface {
	// ID returns the container's identifier.
	ID() types.ContainerID
	// Type returns the container kind.
	Type() types.ContainerType
	// IsAttached reports whether the container belongs to a document.
	// Edits on a detached container are held in scratch state and are not
	// persisted until the container is inserted into an attached one.
	IsAttached() bool

	isContainer()
}

// containerState is the in-arena state behind a container handle. The
// concrete types form a closed set mirroring the handle types.
type containerState interface {
	kind() types.ContainerType
}

// handleFor wraps a container ID in the matching handle type.
func (d *Doc) handleFor(cid types.ContainerID) Container {
	switch cid.Type {
	case types.ListType:
		return &List{doc: d, cid: cid}
	case types.MovableListType:
		return &MovableList{doc: d, cid: cid}
	case types.MapType:
		return &Map{doc: d, cid: cid}
	case types.TextType:
		return &Text{doc: d, cid: cid}
	case types.TreeType:
		return &Tree{doc: d, cid: cid}
	case types.CounterType:
		return &Counter{doc: d, cid: cid}
	default:
		return &Unknown{doc: d, cid: cid}
	}
}

// newState allocates empty state for a container kind. Unrecognized kinds
// degrade to the opaque unknown state rather than failing.
func newState(t types.ContainerType) containerState {
	switch t {
	case types.ListType:
		return &listState{seq: newSeqState()}
	case types.MovableListType:
		return newMovableListState()
	case types.MapType:
		return &mapState{entries: make(map[string]mapEntry)}
	case types.TextType:
		return &textState{seq: newSeqState()}
	case types.TreeType:
		return newTreeState()
	case types.CounterType:
		return &counterState{}
	default:
		return &unknownState{}
	}
}
