package replidoc

import (
	"fmt"

	"github.com/replidoc/replidoc/types"
)

// newLocalOp allocates a fresh (ID, Lamport) pair for a local operation and
// appends it to the log. Callers hold the write lock and must apply the op
// immediately.
func (d *Doc) newLocalOp(cid types.ContainerID, content OpContent) Op {
	op := Op{
		ID:        types.NewID(d.peer, d.nextCounter),
		Lamport:   d.nextLamport,
		Container: cid,
		Content:   content,
	}
	d.nextCounter++
	d.nextLamport++
	d.vv[d.peer] = d.nextCounter
	d.lastOp[d.peer] = op.ID
	d.ops = append(d.ops, op)
	return op
}

// applyOp mutates container state for an op and records its diff into the
// open transaction. When local is true the op's inverse patch is recorded
// for undo. Callers hold the write lock and have validated applicability.
func (d *Doc) applyOp(op Op, local bool) {
	state := d.containers[op.Container]
	t := d.ensureTxn()
	cid := op.Container

	switch c := op.Content.(type) {
	case SeqInsert:
		var origin *types.ID
		if c.HasOrigin {
			o := c.Origin
			origin = &o
		}
		switch s := state.(type) {
		case *listState:
			e := s.seq.integrate(op.ID, op.Lamport, origin, c.Value)
			pos := s.seq.visiblePos(e)
			var micro delta[types.Value]
			micro.push(retainSeg[types.Value](pos))
			micro.push(insertSeg([]types.Value{c.Value}, false))
			t.addListDelta(cid, micro)
			d.registerChildContainer(op.ID, c.Value, parentRef{parent: cid, kind: SeqIndex, elem: op.ID})
			if local {
				t.addInverse(cid, SeqDelete{Elem: op.ID})
			}
		case *movableListState:
			e := s.seq.integrate(op.ID, op.Lamport, origin, c.Value)
			s.elemOf[op.ID] = op.ID
			s.reg[op.ID] = mlRegister{value: c.Value, lamport: op.Lamport, peer: op.ID.Peer}
			s.winner[op.ID] = op.ID
			pos := s.seq.visiblePos(e)
			var micro delta[types.Value]
			micro.push(retainSeg[types.Value](pos))
			micro.push(insertSeg([]types.Value{c.Value}, false))
			t.addListDelta(cid, micro)
			d.registerChildContainer(op.ID, c.Value, parentRef{parent: cid, kind: SeqIndex, elem: op.ID})
			if local {
				t.addInverse(cid, SeqDelete{Elem: op.ID})
			}
		case *textState:
			e := s.seq.integrate(op.ID, op.Lamport, origin, c.Value)
			pos := s.seq.visiblePos(e)
			var micro delta[rune]
			micro.push(retainSeg[rune](pos))
			micro.push(insertSeg([]rune(c.Value.Str), false))
			t.addTextDelta(cid, micro)
			if local {
				t.addInverse(cid, SeqDelete{Elem: op.ID})
			}
		}

	case SeqDelete:
		switch s := state.(type) {
		case *listState:
			e, _ := s.seq.get(c.Elem)
			if e == nil || e.deleted {
				return
			}
			pos := s.seq.visiblePos(e)
			e.deleted = true
			var micro delta[types.Value]
			micro.push(retainSeg[types.Value](pos))
			micro.push(deleteSeg[types.Value](1))
			t.addListDelta(cid, micro)
			if local {
				t.addInverse(cid, SeqInsert{HasOrigin: true, Origin: c.Elem, Value: e.value})
			}
		case *movableListState:
			e, _ := s.seq.get(c.Elem)
			if e == nil || e.deleted {
				return
			}
			wasVisible := s.seq.visible(e)
			pos := s.seq.visiblePos(e)
			e.deleted = true
			if wasVisible {
				var micro delta[types.Value]
				micro.push(retainSeg[types.Value](pos))
				micro.push(deleteSeg[types.Value](1))
				t.addListDelta(cid, micro)
			}
			if local {
				elem := s.elemOf[c.Elem]
				t.addInverse(cid, SeqInsert{HasOrigin: true, Origin: c.Elem, Value: s.reg[elem].value})
			}
		case *textState:
			e, _ := s.seq.get(c.Elem)
			if e == nil || e.deleted {
				return
			}
			pos := s.seq.visiblePos(e)
			e.deleted = true
			var micro delta[rune]
			micro.push(retainSeg[rune](pos))
			micro.push(deleteSeg[rune](1))
			t.addTextDelta(cid, micro)
			if local {
				t.addInverse(cid, SeqInsert{HasOrigin: true, Origin: c.Elem, Value: e.value})
			}
		}

	case ListSet:
		s, ok := state.(*movableListState)
		if !ok {
			return
		}
		cur := s.reg[c.Elem]
		if !lwwWins(op.Lamport, op.ID.Peer, cur.lamport, cur.peer) {
			return
		}
		old := cur.value
		s.reg[c.Elem] = mlRegister{value: c.Value, lamport: op.Lamport, peer: op.ID.Peer}
		if entry, ok := s.seq.get(s.winner[c.Elem]); ok && s.seq.visible(entry) {
			pos := s.seq.visiblePos(entry)
			var micro delta[types.Value]
			micro.push(retainSeg[types.Value](pos))
			micro.push(insertSeg([]types.Value{c.Value}, false))
			micro.push(deleteSeg[types.Value](1))
			t.addListDelta(cid, micro)
		}
		d.registerChildContainer(op.ID, c.Value, parentRef{parent: cid, kind: SeqIndex, elem: s.winner[c.Elem]})
		if local {
			t.addInverse(cid, ListSet{Elem: c.Elem, Value: old})
		}

	case ListMove:
		s, ok := state.(*movableListState)
		if !ok {
			return
		}
		oldWinnerID := s.winner[c.Elem]
		oldEntry, _ := s.seq.get(oldWinnerID)
		oldVisible := oldEntry != nil && s.seq.visible(oldEntry)
		oldPos := 0
		if oldVisible {
			oldPos = s.seq.visiblePos(oldEntry)
		}
		var origin *types.ID
		if c.HasOrigin {
			o := c.Origin
			origin = &o
		}
		entry := s.seq.integrate(op.ID, op.Lamport, origin, types.Null())
		s.elemOf[op.ID] = c.Elem
		if oldEntry != nil && !entryWins(op.Lamport, op.ID, oldEntry.lamport, oldEntry.id) {
			return
		}
		s.winner[c.Elem] = op.ID
		var micro delta[types.Value]
		if oldVisible {
			micro.push(retainSeg[types.Value](oldPos))
			micro.push(deleteSeg[types.Value](1))
		}
		newPos := s.seq.visiblePos(entry)
		var insMicro delta[types.Value]
		insMicro.push(retainSeg[types.Value](newPos))
		insMicro.push(insertSeg([]types.Value{s.reg[c.Elem].value}, true))
		t.addListDelta(cid, compose(micro, insMicro))
		if local {
			t.addInverse(cid, ListMove{Elem: c.Elem, HasOrigin: true, Origin: oldWinnerID})
		}

	case MapSet:
		s, ok := state.(*mapState)
		if !ok {
			return
		}
		cur, exists := s.entries[c.Key]
		if exists && !lwwWins(op.Lamport, op.ID.Peer, cur.lamport, cur.peer) {
			return
		}
		var old *types.Value
		if exists {
			old = cur.value
		}
		s.entries[c.Key] = mapEntry{value: c.Value, lamport: op.Lamport, peer: op.ID.Peer}
		t.addMapDelta(cid, c.Key, c.Value)
		if c.Value != nil {
			d.registerChildContainer(op.ID, *c.Value, parentRef{parent: cid, kind: KeyIndex, key: c.Key})
		}
		if local {
			t.addInverse(cid, MapSet{Key: c.Key, Value: old})
		}

	case TreeCreate, TreeMove, TreeDelete:
		s, ok := state.(*treeState)
		if !ok {
			return
		}
		items, inverse := s.apply(op)
		t.addTreeDelta(cid, items...)
		if _, isCreate := op.Content.(TreeCreate); isCreate {
			d.nodeOwner[op.ID] = cid
		}
		if local && inverse != nil {
			t.addInverse(cid, inverse)
		}

	case CounterAdd:
		s, ok := state.(*counterState)
		if !ok {
			return
		}
		s.value += c.Delta
		t.addCounterDelta(cid, c.Delta)
		if local {
			t.addInverse(cid, CounterAdd{Delta: -c.Delta})
		}
	}
}

// lwwWins decides a last-writer-wins register update: higher Lamport wins,
// ties broken by peer.
func lwwWins(lamport uint32, peer types.PeerID, curLamport uint32, curPeer types.PeerID) bool {
	if lamport != curLamport {
		return lamport > curLamport
	}
	return peer >= curPeer
}

// entryWins decides the winning position entry of a moved element.
func entryWins(lamport uint32, id types.ID, curLamport uint32, curID types.ID) bool {
	if lamport != curLamport {
		return lamport > curLamport
	}
	return id.Compare(curID) > 0
}

// registerChildContainer materializes a nested container's state when an op
// carries a container value created by that very op.
func (d *Doc) registerChildContainer(opID types.ID, v types.Value, ref parentRef) {
	if v.Kind != types.ContainerValue {
		return
	}
	childOp, ok := v.Container.OpID()
	if !ok || childOp != opID {
		return
	}
	if _, exists := d.containers[v.Container]; exists {
		return
	}
	d.containers[v.Container] = newState(v.Container.Type)
	d.parentOf[v.Container] = ref
}

// stateFor resolves a container for an incoming op, materializing root
// containers and tree-node metadata maps lazily.
func (d *Doc) stateFor(cid types.ContainerID) (containerState, bool) {
	if s, ok := d.containers[cid]; ok {
		return s, true
	}
	if cid.IsRoot() {
		s := newState(cid.Type)
		d.containers[cid] = s
		return s, true
	}
	// A normal map container whose ID matches a known tree node is that
	// node's metadata map.
	if cid.Type == types.MapType {
		opID, _ := cid.OpID()
		if treeCID, ok := d.nodeOwner[opID]; ok {
			s := newState(types.MapType)
			d.containers[cid] = s
			d.parentOf[cid] = parentRef{parent: treeCID, kind: NodeIndex, node: types.NewTreeID(opID)}
			return s, true
		}
	}
	return nil, false
}

// applicable reports whether a remote op can be applied right now: its
// counter must be the next expected one from its peer and everything it
// references must already exist.
func (d *Doc) applicable(op Op) bool {
	if op.ID.Counter != d.vv[op.ID.Peer] {
		return false
	}
	state, ok := d.peekStateFor(op.Container)
	if !ok {
		return false
	}
	switch c := op.Content.(type) {
	case SeqInsert:
		if !c.HasOrigin {
			return true
		}
		seq := seqOf(state)
		if seq == nil {
			return true
		}
		_, ok := seq.get(c.Origin)
		return ok
	case SeqDelete:
		seq := seqOf(state)
		if seq == nil {
			return true
		}
		_, ok := seq.get(c.Elem)
		return ok
	case ListSet:
		s, ok := state.(*movableListState)
		if !ok {
			return true
		}
		_, known := s.reg[c.Elem]
		return known
	case ListMove:
		s, ok := state.(*movableListState)
		if !ok {
			return true
		}
		if _, known := s.reg[c.Elem]; !known {
			return false
		}
		if !c.HasOrigin {
			return true
		}
		_, originKnown := s.seq.get(c.Origin)
		return originKnown
	case TreeCreate:
		s, ok := state.(*treeState)
		if !ok {
			return true
		}
		return s.parentKnown(c.Parent)
	case TreeMove:
		s, ok := state.(*treeState)
		if !ok {
			return true
		}
		return s.contains(c.Target) && s.parentKnown(c.Parent)
	case TreeDelete:
		s, ok := state.(*treeState)
		if !ok {
			return true
		}
		return s.contains(c.Target)
	default:
		return true
	}
}

// peekStateFor is stateFor without side effects, for applicability checks.
func (d *Doc) peekStateFor(cid types.ContainerID) (containerState, bool) {
	if s, ok := d.containers[cid]; ok {
		return s, true
	}
	if cid.IsRoot() {
		return newState(cid.Type), true
	}
	if cid.Type == types.MapType {
		opID, _ := cid.OpID()
		if _, ok := d.nodeOwner[opID]; ok {
			return newState(types.MapType), true
		}
	}
	return nil, false
}

func seqOf(state containerState) *seqState {
	switch s := state.(type) {
	case *listState:
		return s.seq
	case *movableListState:
		return s.seq
	case *textState:
		return s.seq
	default:
		return nil
	}
}

// Import merges a batch of remote operations. Already-applied ops are
// skipped, so import is idempotent; ops whose dependencies have not arrived
// yet are parked and retried on the next import. The merged changes are
// delivered as one DiffEvent with TriggeredByImport.
func (d *Doc) Import(ops []Op) error {
	if err := d.mutationGuard(); err != nil {
		return err
	}
	if d.detached {
		return ErrDetachedContainer
	}
	d.Commit("")
	var rec *txnRecord
	_ = d.lock.execute(writeOperation, func() error {
		queue := make([]Op, 0, len(ops)+len(d.pending))
		queue = append(queue, d.pending...)
		d.pending = nil
		for _, op := range ops {
			if !d.vv.Includes(op.ID) {
				queue = append(queue, op)
			}
		}
		sortOpsCanonical(queue)

		for {
			var deferred []Op
			progress := false
			for _, op := range queue {
				if d.vv.Includes(op.ID) {
					continue
				}
				if !d.applicable(op) {
					deferred = append(deferred, op)
					continue
				}
				d.applyRemote(op)
				progress = true
			}
			queue = deferred
			if !progress || len(queue) == 0 {
				break
			}
		}
		d.pending = queue
		rec = d.closeTxn("", TriggeredByImport)
		return nil
	})
	d.dispatch(rec)
	return nil
}

// applyRemote applies one remote op whose applicability has been checked.
func (d *Doc) applyRemote(op Op) {
	if _, ok := d.stateFor(op.Container); !ok {
		return
	}
	d.applyOp(op, false)
	d.vv[op.ID.Peer] = op.ID.Counter + 1
	if last, ok := d.lastOp[op.ID.Peer]; !ok || op.ID.Compare(last) > 0 {
		d.lastOp[op.ID.Peer] = op.ID
	}
	d.ops = append(d.ops, op)
	if op.Lamport >= d.nextLamport {
		d.nextLamport = op.Lamport + 1
	}
	if op.ID.Peer == d.peer && op.ID.Counter >= d.nextCounter {
		d.nextCounter = op.ID.Counter + 1
	}
}

// ExportFrom returns every op the document has applied that the given
// version vector does not cover. Exchanging these batches between replicas
// is the synchronization surface; wire encoding is out of scope here.
func (d *Doc) ExportFrom(vv VersionVector) []Op {
	res, _ := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		var out []Op
		for _, op := range d.ops {
			if !vv.Includes(op.ID) {
				out = append(out, op)
			}
		}
		return out, nil
	})
	return res.([]Op)
}

// errIndex builds a consistent out-of-bounds error.
func errIndex(pos, n int) error {
	return fmt.Errorf("%w: index %d with length %d", ErrIndexOutOfBounds, pos, n)
}
