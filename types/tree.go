package types

import "fmt"

// TreeID identifies a tree node by the operation that created it. A node's
// identity never changes, however many times the node is moved.
type TreeID struct {
	Peer    PeerID
	Counter Counter
}

// NewTreeID creates a TreeID from the creating operation's ID.
func NewTreeID(id ID) TreeID {
	return TreeID{Peer: id.Peer, Counter: id.Counter}
}

// ID returns the creating operation's ID.
func (t TreeID) ID() ID {
	return ID{Peer: t.Peer, Counter: t.Counter}
}

// String returns the canonical "counter@peer" form.
func (t TreeID) String() string {
	return fmt.Sprintf("%d@%d", t.Counter, t.Peer)
}

type treeParentKind int

const (
	parentNode treeParentKind = iota
	parentRoot
	parentDeleted
	parentUnexist
)

// TreeParentID describes where a tree node sits: under another node, at the
// top level, deleted, or not yet created at the queried version.
//
// TreeParentID is comparable; two values are equal iff they have the same
// variant and, for the node variant, the same node ID.
type TreeParentID struct {
	kind treeParentKind
	node TreeID
}

// NodeParent returns a parent reference to the given node.
func NodeParent(id TreeID) TreeParentID {
	return TreeParentID{kind: parentNode, node: id}
}

// RootParent returns the top-level parent reference.
func RootParent() TreeParentID {
	return TreeParentID{kind: parentRoot}
}

// DeletedParent marks a node whose creating operation exists but which has
// since been deleted. The node record is retained and addressable by ID.
func DeletedParent() TreeParentID {
	return TreeParentID{kind: parentDeleted}
}

// UnexistParent marks a node that has not been created at the queried
// version.
func UnexistParent() TreeParentID {
	return TreeParentID{kind: parentUnexist}
}

// IsRoot reports whether this is the top-level parent reference.
func (p TreeParentID) IsRoot() bool { return p.kind == parentRoot }

// IsDeleted reports whether the node is deleted.
func (p TreeParentID) IsDeleted() bool { return p.kind == parentDeleted }

// IsUnexist reports whether the node has not been created.
func (p TreeParentID) IsUnexist() bool { return p.kind == parentUnexist }

// Node returns the parent node ID when this reference points at a node.
func (p TreeParentID) Node() (TreeID, bool) {
	if p.kind != parentNode {
		return TreeID{}, false
	}
	return p.node, true
}

// String returns a readable form for debugging and CLI output.
func (p TreeParentID) String() string {
	switch p.kind {
	case parentNode:
		return fmt.Sprintf("Node(%s)", p.node)
	case parentRoot:
		return "Root"
	case parentDeleted:
		return "Deleted"
	default:
		return "Unexist"
	}
}
