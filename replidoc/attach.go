package replidoc

import "github.com/replidoc/replidoc/types"

// nextOpID returns the ID the next local op will be assigned. Callers hold
// the write lock.
func (d *Doc) nextOpID() types.ID {
	return types.NewID(d.peer, d.nextCounter)
}

// copyContents replays a detached container's current contents into dst as
// local operations. Nested containers are attached recursively. Callers hold
// the write lock.
func (d *Doc) copyContents(src Container, dst types.ContainerID) {
	srcDoc := docOf(src)
	srcState, ok := srcDoc.containers[src.ID()]
	if !ok {
		return
	}
	switch s := srcState.(type) {
	case *listState:
		d.copySeqValues(dst, s.seq.values(), srcDoc)
	case *movableListState:
		d.copySeqValues(dst, s.visibleValues(), srcDoc)
	case *textState:
		var left *types.ID
		for _, r := range textOf(s.seq) {
			content := SeqInsert{Value: types.NewString(string(r))}
			if left != nil {
				content.HasOrigin = true
				content.Origin = *left
			}
			op := d.newLocalOp(dst, content)
			d.applyOp(op, true)
			id := op.ID
			left = &id
		}
	case *mapState:
		for key, ent := range s.entries {
			if ent.value == nil {
				continue
			}
			d.copyMapValue(dst, key, *ent.value, srcDoc)
		}
	case *counterState:
		if s.value != 0 {
			op := d.newLocalOp(dst, CounterAdd{Delta: s.value})
			d.applyOp(op, true)
		}
	case *treeState:
		d.copyTreeNodes(dst, s, srcDoc)
	}
}

func (d *Doc) copySeqValues(dst types.ContainerID, vals []types.Value, srcDoc *Doc) {
	var left *types.ID
	for _, v := range vals {
		content := SeqInsert{}
		if left != nil {
			content.HasOrigin = true
			content.Origin = *left
		}
		if v.Kind == types.ContainerValue {
			childCID := types.NewContainerID(d.nextOpID(), v.Container.Type)
			content.Value = types.NewContainerRef(childCID)
			op := d.newLocalOp(dst, content)
			d.applyOp(op, true)
			d.copyContents(srcDoc.handleFor(v.Container), childCID)
			id := op.ID
			left = &id
			continue
		}
		content.Value = v
		op := d.newLocalOp(dst, content)
		d.applyOp(op, true)
		id := op.ID
		left = &id
	}
}

func (d *Doc) copyMapValue(dst types.ContainerID, key string, v types.Value, srcDoc *Doc) {
	if v.Kind == types.ContainerValue {
		childCID := types.NewContainerID(d.nextOpID(), v.Container.Type)
		ref := types.NewContainerRef(childCID)
		op := d.newLocalOp(dst, MapSet{Key: key, Value: &ref})
		d.applyOp(op, true)
		d.copyContents(srcDoc.handleFor(v.Container), childCID)
		return
	}
	val := v
	op := d.newLocalOp(dst, MapSet{Key: key, Value: &val})
	d.applyOp(op, true)
}

func (d *Doc) copyTreeNodes(dst types.ContainerID, src *treeState, srcDoc *Doc) {
	mapped := make(map[types.TreeID]types.TreeID)
	var walk func(parent types.TreeParentID, newParent types.TreeParentID)
	walk = func(parent, newParent types.TreeParentID) {
		for _, n := range src.childrenOf(parent) {
			op := d.newLocalOp(dst, TreeCreate{Parent: newParent, Index: n.fi})
			d.applyOp(op, true)
			newID := types.NewTreeID(op.ID)
			mapped[n.id] = newID
			srcMeta := types.NewContainerID(n.id.ID(), types.MapType)
			if ms, ok := srcDoc.containers[srcMeta]; ok {
				dstMeta := types.NewContainerID(op.ID, types.MapType)
				if _, exists := d.containers[dstMeta]; !exists {
					d.containers[dstMeta] = newState(types.MapType)
					d.parentOf[dstMeta] = parentRef{parent: dst, kind: NodeIndex, node: newID}
				}
				for key, ent := range ms.(*mapState).entries {
					if ent.value != nil {
						d.copyMapValue(dstMeta, key, *ent.value, srcDoc)
					}
				}
			}
			walk(types.NodeParent(n.id), types.NodeParent(newID))
		}
	}
	walk(types.RootParent(), types.RootParent())
}

func docOf(c Container) *Doc {
	switch h := c.(type) {
	case *List:
		return h.doc
	case *MovableList:
		return h.doc
	case *Map:
		return h.doc
	case *Text:
		return h.doc
	case *Tree:
		return h.doc
	case *Counter:
		return h.doc
	case *Unknown:
		return h.doc
	default:
		return nil
	}
}
