package types

import "fmt"

// ContainerType identifies the kind of a container. The set is closed;
// readers that encounter a kind they do not understand should degrade to
// UnknownType rather than fail.
type ContainerType int

const (
	ListType ContainerType = iota
	MovableListType
	MapType
	TextType
	TreeType
	CounterType
	UnknownType
)

// String returns the canonical name of the container type.
func (t ContainerType) String() string {
	switch t {
	case ListType:
		return "List"
	case MovableListType:
		return "MovableList"
	case MapType:
		return "Map"
	case TextType:
		return "Text"
	case TreeType:
		return "Tree"
	case CounterType:
		return "Counter"
	default:
		return "Unknown"
	}
}

// ContainerTypeFromString parses a container type name. Unrecognized names
// map to UnknownType; that is deliberate forward compatibility, not an error.
func ContainerTypeFromString(s string) ContainerType {
	switch s {
	case "List":
		return ListType
	case "MovableList":
		return MovableListType
	case "Map":
		return MapType
	case "Text":
		return TextType
	case "Tree":
		return TreeType
	case "Counter":
		return CounterType
	default:
		return UnknownType
	}
}

// ContainerID identifies a container inside a document. A root container is
// named by application code and stable across the document's life; a normal
// container is identified by the operation that created it. Container
// identity is immutable from creation; containers are never renamed.
//
// ContainerID is comparable and usable as a map key.
type ContainerID struct {
	// Root is true for application-named root containers.
	Root bool
	// Name is the application-chosen name. Only set when Root is true.
	Name string
	// Peer and Counter identify the creating operation. Only set when Root
	// is false.
	Peer    PeerID
	Counter Counter
	// Type is the container kind.
	Type ContainerType
}

// NewRootContainerID creates the ID of an application-named root container.
func NewRootContainerID(name string, t ContainerType) ContainerID {
	return ContainerID{Root: true, Name: name, Type: t}
}

// NewContainerID creates the ID of a container created by the operation id.
func NewContainerID(id ID, t ContainerType) ContainerID {
	return ContainerID{Peer: id.Peer, Counter: id.Counter, Type: t}
}

// IsRoot reports whether the container is an application-named root.
func (c ContainerID) IsRoot() bool {
	return c.Root
}

// OpID returns the creating operation's ID for a normal container.
// For root containers the second return is false.
func (c ContainerID) OpID() (ID, bool) {
	if c.Root {
		return ID{}, false
	}
	return ID{Peer: c.Peer, Counter: c.Counter}, true
}

// String returns the canonical textual form, e.g. "cid:root-todo:Tree" or
// "cid:4@7:Map".
func (c ContainerID) String() string {
	if c.Root {
		return fmt.Sprintf("cid:root-%s:%s", c.Name, c.Type)
	}
	return fmt.Sprintf("cid:%d@%d:%s", c.Counter, c.Peer, c.Type)
}
