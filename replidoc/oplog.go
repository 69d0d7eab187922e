package replidoc

import (
	"sort"

	"github.com/replidoc/replidoc/fracindex"
	"github.com/replidoc/replidoc/types"
)

// VersionVector maps each known peer to the next counter expected from it.
// A document's version vector summarizes exactly which operations it has
// applied.
type VersionVector map[types.PeerID]types.Counter

// Includes reports whether the vector covers the given operation ID.
func (vv VersionVector) Includes(id types.ID) bool {
	return id.Counter < vv[id.Peer]
}

// Copy returns an independent copy of the vector.
func (vv VersionVector) Copy() VersionVector {
	out := make(VersionVector, len(vv))
	for peer, counter := range vv {
		out[peer] = counter
	}
	return out
}

// Op is one entry of the causal operation log: a globally unique ID, a
// Lamport timestamp ordering it against concurrent operations, the container
// it targets, and the kind-specific content. Ops are exchanged between
// replicas as Go values; wire encoding is a collaborator concern outside
// this package.
type Op struct {
	ID        types.ID
	Lamport   uint32
	Container types.ContainerID
	Content   OpContent
}

// OpContent is the closed set of operation payloads. Switch over the
// concrete types exhaustively; the kind set is fixed.
type OpContent interface {
	isOpContent()
}

// SeqInsert inserts one element into a sequence container (list, movable
// list, text). The element's ID is the op's ID; Origin anchors it after an
// existing element, or at the head when HasOrigin is false.
type SeqInsert struct {
	HasOrigin bool
	Origin    types.ID
	Value     types.Value
}

// SeqDelete tombstones one sequence element.
type SeqDelete struct {
	Elem types.ID
}

// ListSet overwrites the value of a movable-list element in place,
// last-writer-wins by (Lamport, peer).
type ListSet struct {
	Elem  types.ID
	Value types.Value
}

// ListMove repositions a movable-list element. The op's ID becomes a new
// position entry for the element; the highest (Lamport, ID) entry wins.
type ListMove struct {
	Elem      types.ID
	HasOrigin bool
	Origin    types.ID
}

// MapSet sets or, when Value is nil, removes a map key,
// last-writer-wins by (Lamport, peer).
type MapSet struct {
	Key   string
	Value *types.Value
}

// TreeCreate creates a tree node; the node's TreeID is the op's ID.
type TreeCreate struct {
	Parent types.TreeParentID
	Index  fracindex.Key
}

// TreeMove re-parents or repositions an existing tree node.
type TreeMove struct {
	Target types.TreeID
	Parent types.TreeParentID
	Index  fracindex.Key
}

// TreeDelete marks a tree node deleted. Descendants are not cascaded; their
// records persist and remain addressable by ID.
type TreeDelete struct {
	Target types.TreeID
}

// CounterAdd adds a delta to a counter container.
type CounterAdd struct {
	Delta float64
}

func (SeqInsert) isOpContent()  {}
func (SeqDelete) isOpContent()  {}
func (ListSet) isOpContent()    {}
func (ListMove) isOpContent()   {}
func (MapSet) isOpContent()     {}
func (TreeCreate) isOpContent() {}
func (TreeMove) isOpContent()   {}
func (TreeDelete) isOpContent() {}
func (CounterAdd) isOpContent() {}

// sortOpsCanonical orders a batch by (Lamport, peer, counter), the canonical
// merge order used when applying remote batches.
func sortOpsCanonical(ops []Op) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Lamport != ops[j].Lamport {
			return ops[i].Lamport < ops[j].Lamport
		}
		return ops[i].ID.Compare(ops[j].ID) < 0
	})
}
