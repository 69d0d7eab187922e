package replidoc

import "github.com/replidoc/replidoc/types"

// unknownState holds nothing. Ops targeting an unknown container are kept in
// the log for forwarding but have no readable state.
type unknownState struct{}

func (s *unknownState) kind() types.ContainerType { return types.UnknownType }

// Unknown is the handle for a container whose type this version does not
// understand. Its contents cannot be read or edited, but its ops are
// preserved and re-exported so newer peers lose nothing.
type Unknown struct {
	doc *Doc
	cid types.ContainerID
}

func (u *Unknown) ID() types.ContainerID     { return u.cid }
func (u *Unknown) Type() types.ContainerType { return types.UnknownType }
func (u *Unknown) IsAttached() bool          { return u.doc.peer != detachedPeer }
func (u *Unknown) isContainer()              {}
