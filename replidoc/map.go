package replidoc

import (
	"fmt"
	"sort"

	"github.com/replidoc/replidoc/types"
)

// mapEntry is a last-writer-wins register for one key. A nil value is a
// deletion tombstone.
type mapEntry struct {
	value   *types.Value
	lamport uint32
	peer    types.PeerID
}

type mapState struct {
	entries map[string]mapEntry
}

func (s *mapState) kind() types.ContainerType { return types.MapType }

// liveKeys returns the present keys in sorted order.
func (s *mapState) liveKeys() []string {
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if e.value != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Map is an unordered key/value container. Each key is an independent
// last-writer-wins register.
type Map struct {
	doc *Doc
	cid types.ContainerID
}

// NewMap creates a detached map.
func NewMap() *Map {
	d := newScratchDoc()
	return d.GetMap("map")
}

func (m *Map) ID() types.ContainerID     { return m.cid }
func (m *Map) Type() types.ContainerType { return types.MapType }
func (m *Map) IsAttached() bool          { return m.doc.peer != detachedPeer }
func (m *Map) isContainer()              {}

func (m *Map) state() (*mapState, error) {
	s, ok := m.doc.containers[m.cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, m.cid)
	}
	return s.(*mapState), nil
}

// Insert sets key to v, overwriting any previous value.
func (m *Map) Insert(key string, v interface{}) error {
	val, err := types.FromGo(v)
	if err != nil {
		return err
	}
	if err := m.doc.mutationGuard(); err != nil {
		return err
	}
	return m.doc.lock.execute(writeOperation, func() error {
		if _, err := m.state(); err != nil {
			return err
		}
		op := m.doc.newLocalOp(m.cid, MapSet{Key: key, Value: &val})
		m.doc.applyOp(op, true)
		return nil
	})
}

// Delete removes key. Deleting an absent key is a no-op.
func (m *Map) Delete(key string) error {
	if err := m.doc.mutationGuard(); err != nil {
		return err
	}
	return m.doc.lock.execute(writeOperation, func() error {
		s, err := m.state()
		if err != nil {
			return err
		}
		if e, ok := s.entries[key]; !ok || e.value == nil {
			return nil
		}
		op := m.doc.newLocalOp(m.cid, MapSet{Key: key, Value: nil})
		m.doc.applyOp(op, true)
		return nil
	})
}

// Get returns the value for key. The second result is false when the key is
// absent; a key holding an explicit null is present with a nil value.
func (m *Map) Get(key string) (interface{}, bool) {
	type lookup struct {
		value interface{}
		ok    bool
	}
	res, _ := m.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := m.state()
		if err != nil {
			return lookup{}, nil
		}
		e, ok := s.entries[key]
		if !ok || e.value == nil {
			return lookup{}, nil
		}
		if e.value.Kind == types.ContainerValue {
			return lookup{value: m.doc.handleFor(e.value.Container), ok: true}, nil
		}
		return lookup{value: e.value.ToGo(), ok: true}, nil
	})
	found := res.(lookup)
	return found.value, found.ok
}

// Keys returns the present keys in sorted order.
func (m *Map) Keys() []string {
	res, _ := m.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := m.state()
		if err != nil {
			return []string{}, nil
		}
		return s.liveKeys(), nil
	})
	return res.([]string)
}

// Values returns the values in key order.
func (m *Map) Values() []interface{} {
	res, _ := m.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := m.state()
		if err != nil {
			return []interface{}{}, nil
		}
		var out []interface{}
		for _, k := range s.liveKeys() {
			out = append(out, s.entries[k].value.ToGo())
		}
		return out, nil
	})
	return res.([]interface{})
}

// Items returns the present entries as a plain Go map.
func (m *Map) Items() map[string]interface{} {
	res, _ := m.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := m.state()
		if err != nil {
			return map[string]interface{}{}, nil
		}
		out := make(map[string]interface{})
		for _, k := range s.liveKeys() {
			out[k] = s.entries[k].value.ToGo()
		}
		return out, nil
	})
	return res.(map[string]interface{})
}

// Len returns the number of present keys.
func (m *Map) Len() int {
	res, _ := m.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		s, err := m.state()
		if err != nil {
			return 0, nil
		}
		return len(s.liveKeys()), nil
	})
	return res.(int)
}

// IsEmpty reports whether the map has no present keys.
func (m *Map) IsEmpty() bool { return m.Len() == 0 }

// Clear deletes every key.
func (m *Map) Clear() error {
	for _, k := range m.Keys() {
		if err := m.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// GetValue returns the map contents with nested containers as references.
func (m *Map) GetValue() types.Value {
	res, _ := m.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return m.doc.shallowValueOf(m.cid), nil
	})
	return res.(types.Value)
}

// GetDeepValue returns the map contents with nested containers resolved
// recursively.
func (m *Map) GetDeepValue() types.Value {
	res, _ := m.doc.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return m.doc.deepValueOf(m.cid), nil
	})
	return res.(types.Value)
}

// InsertContainer sets key to a child container and returns the attached
// handle.
func (m *Map) InsertContainer(key string, child Container) (Container, error) {
	if err := m.doc.mutationGuard(); err != nil {
		return nil, err
	}
	res, err := m.doc.lock.executeWithResult(writeOperation, func() (interface{}, error) {
		if _, err := m.state(); err != nil {
			return nil, err
		}
		cid := types.NewContainerID(m.doc.nextOpID(), child.Type())
		ref := types.NewContainerRef(cid)
		op := m.doc.newLocalOp(m.cid, MapSet{Key: key, Value: &ref})
		m.doc.applyOp(op, true)
		if !child.IsAttached() {
			m.doc.copyContents(child, cid)
		}
		return cid, nil
	})
	if err != nil {
		return nil, err
	}
	return m.doc.handleFor(res.(types.ContainerID)), nil
}

// GetOrCreateContainer returns the child container at key, creating one of
// the given type if the key is absent or holds a plain value.
func (m *Map) GetOrCreateContainer(key string, t types.ContainerType) (Container, error) {
	if v, ok := m.Get(key); ok {
		if c, isContainer := v.(Container); isContainer && c.Type() == t {
			return c, nil
		}
	}
	child := detachedOfType(t)
	if child == nil {
		return nil, fmt.Errorf("%w: cannot create container of type %s", ErrInvalidValueType, t)
	}
	return m.InsertContainer(key, child)
}

func detachedOfType(t types.ContainerType) Container {
	switch t {
	case types.ListType:
		return NewList()
	case types.MovableListType:
		return NewMovableList()
	case types.MapType:
		return NewMap()
	case types.TextType:
		return NewText()
	case types.TreeType:
		return NewTree()
	case types.CounterType:
		return NewCounter()
	default:
		return nil
	}
}
