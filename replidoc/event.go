package replidoc

import (
	"sync"

	"github.com/replidoc/replidoc/types"
)

// EventTriggerKind says what caused a DiffEvent.
type EventTriggerKind int

const (
	// TriggeredByLocal marks an event produced by a local transaction.
	TriggeredByLocal EventTriggerKind = iota
	// TriggeredByImport marks an event produced by merging remote ops.
	TriggeredByImport
	// TriggeredByCheckout marks an event produced by a version checkout.
	TriggeredByCheckout
)

// String returns the trigger kind's name.
func (k EventTriggerKind) String() string {
	switch k {
	case TriggeredByLocal:
		return "Local"
	case TriggeredByImport:
		return "Import"
	default:
		return "Checkout"
	}
}

// IndexKind tags the variant of a path Index.
type IndexKind int

const (
	KeyIndex IndexKind = iota
	SeqIndex
	NodeIndex
)

// Index locates a child within its parent container: a map key, a sequence
// position, or a tree node.
type Index struct {
	Kind IndexKind
	Key  string
	Seq  int
	Node types.TreeID
}

// PathItem is one step of the path from the document root to a container.
type PathItem struct {
	Container types.ContainerID
	Index     Index
}

// ValueOrContainer is either a plain value or a handle to a nested
// container.
type ValueOrContainer struct {
	value     *types.Value
	container Container
}

// IsValue reports whether this wraps a plain value.
func (v ValueOrContainer) IsValue() bool { return v.value != nil }

// IsContainer reports whether this wraps a container handle.
func (v ValueOrContainer) IsContainer() bool { return v.container != nil }

// Value returns the wrapped plain value.
func (v ValueOrContainer) Value() (types.Value, bool) {
	if v.value == nil {
		return types.Value{}, false
	}
	return *v.value, true
}

// Container returns the wrapped container handle.
func (v ValueOrContainer) Container() (Container, bool) {
	if v.container == nil {
		return nil, false
	}
	return v.container, true
}

// ListDiffItem is one segment of a list diff, applied left to right.
// Exactly one of Insert, Delete, or Retain is set.
type ListDiffItem struct {
	// Insert holds newly observed elements, including moved-in values.
	Insert []ValueOrContainer
	// IsMove reports that the inserted elements arrived by moving.
	IsMove bool
	// Delete removes this many elements at the current position.
	Delete int
	// Retain skips this many elements, keeping the position advancing.
	Retain int
}

// TextDelta is one segment of a text diff. Exactly one of Retain, Insert,
// or Delete is set; Retain and Insert segments may carry a formatting
// attribute map.
type TextDelta struct {
	Retain     int
	Insert     string
	Delete     int
	Attributes map[string]types.Value
}

// MapDelta reports the changed keys of a map container. A nil value means
// the key was deleted. Unchanged keys do not appear.
type MapDelta struct {
	Updated map[string]*ValueOrContainer
}

// TreeActionKind tags the variant of a tree diff action.
type TreeActionKind int

const (
	TreeActionCreate TreeActionKind = iota
	TreeActionMove
	TreeActionDelete
)

// TreeDiffAction describes what happened to one tree node.
type TreeDiffAction struct {
	Kind TreeActionKind
	// Parent, Index, and FractionalIndex describe the node's new position
	// for creates and moves.
	Parent          types.TreeParentID
	Index           int
	FractionalIndex string
	// OldParent and OldIndex describe where the node was for moves and
	// deletes.
	OldParent types.TreeParentID
	OldIndex  int
}

// TreeDiffItem pairs a target node with its action.
type TreeDiffItem struct {
	Target types.TreeID
	Action TreeDiffAction
}

// Diff is a per-container structural delta. Kind selects the populated
// variant; MovableListType shares the List variant.
type Diff struct {
	Kind    types.ContainerType
	List    []ListDiffItem
	Text    []TextDelta
	Map     *MapDelta
	Tree    []TreeDiffItem
	Counter float64
}

// ContainerDiff bundles a diff with its target container and the path from
// the document root to that container.
type ContainerDiff struct {
	Target    types.ContainerID
	Path      []PathItem
	IsUnknown bool
	Diff      Diff
}

// DiffEvent describes one committed transaction or merged batch: what
// triggered it, its application origin tag, the subscription scope it was
// delivered for, and the ordered container diffs.
type DiffEvent struct {
	TriggeredBy   EventTriggerKind
	Origin        string
	CurrentTarget *types.ContainerID
	Events        []ContainerDiff
}

// Subscriber receives DiffEvents. Delivery is synchronous and ordered; a
// subscriber may read the document but must not mutate it.
type Subscriber func(*DiffEvent)

// Subscription is a live event registration. Unsubscribe detaches it; a
// cancelled subscription receives no further events.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe detaches the subscription. It is idempotent and safe to call
// from within an event handler.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

type subEntry struct {
	id    uint64
	scope *types.ContainerID // nil subscribes to the whole document
	fn    Subscriber
	gone  bool
}

// subRegistry holds the document's subscriptions. It has its own mutex so
// subscriptions can be added and cancelled from inside handlers while an
// event is being delivered.
type subRegistry struct {
	mu      sync.Mutex
	nextID  uint64
	entries []*subEntry
}

func newSubRegistry() *subRegistry {
	return &subRegistry{}
}

func (r *subRegistry) add(scope *types.ContainerID, fn Subscriber) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := &subEntry{id: r.nextID, scope: scope, fn: fn}
	r.nextID++
	r.entries = append(r.entries, entry)
	return &Subscription{cancel: func() { r.remove(entry) }}
}

func (r *subRegistry) remove(entry *subEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.gone = true
	for i, e := range r.entries {
		if e == entry {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
}

// snapshot returns the current entries in registration order.
func (r *subRegistry) snapshot() []*subEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*subEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *subRegistry) isLive(entry *subEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !entry.gone
}

// scopedEvent filters an event down to the diffs within a subscription's
// scope. It returns nil when nothing in the event touches the scope.
func scopedEvent(ev *DiffEvent, scope *types.ContainerID) *DiffEvent {
	if scope == nil {
		out := *ev
		out.CurrentTarget = nil
		return &out
	}
	var filtered []ContainerDiff
	for _, cd := range ev.Events {
		if cd.Target == *scope {
			filtered = append(filtered, cd)
			continue
		}
		for _, step := range cd.Path {
			if step.Container == *scope {
				filtered = append(filtered, cd)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &DiffEvent{
		TriggeredBy:   ev.TriggeredBy,
		Origin:        ev.Origin,
		CurrentTarget: scope,
		Events:        filtered,
	}
}
