package replidoc

import (
	"github.com/replidoc/replidoc/types"
)

// CounterSpan is a contiguous range [Start, End) of one peer's operation
// counters, identifying the ops produced by a transaction.
type CounterSpan struct {
	Start types.Counter
	End   types.Counter
}

// Len returns the number of ops in the span.
func (s CounterSpan) Len() int {
	return int(s.End - s.Start)
}

// txnRecord is the internal summary of one committed transaction handed to
// txn hooks: the event, the local op span, and the inverse patches an undo
// manager replays to revert it.
type txnRecord struct {
	origin   string
	kind     EventTriggerKind
	span     CounterSpan
	inverses []inverseOp
	event    *DiffEvent
}

// inverseOp is a replayable inverse of one applied op. Sequence re-inserts
// anchor on the deleted element's tombstone, so they restore position
// correctly even after surrounding edits.
type inverseOp struct {
	container types.ContainerID
	content   OpContent
}

// parentRef records how a nested container hangs off its parent, by stable
// identity (map key, sequence element ID, or tree node) rather than by
// index; indices are resolved at event time.
type parentRef struct {
	parent types.ContainerID
	kind   IndexKind
	key    string
	elem   types.ID
	node   types.TreeID
}

func (r parentRef) resolveIndex(d *Doc) Index {
	switch r.kind {
	case KeyIndex:
		return Index{Kind: KeyIndex, Key: r.key}
	case NodeIndex:
		return Index{Kind: NodeIndex, Node: r.node}
	default:
		idx := Index{Kind: SeqIndex}
		if state, ok := d.containers[r.parent]; ok {
			switch s := state.(type) {
			case *listState:
				if e, ok := s.seq.get(r.elem); ok {
					idx.Seq = s.seq.visiblePos(e)
				}
			case *movableListState:
				if e, ok := s.seq.get(r.elem); ok {
					idx.Seq = s.seq.visiblePos(e)
				}
			}
		}
		return idx
	}
}

// txn accumulates the diffs and inverse patches of one open transaction.
type txn struct {
	startCounter  types.Counter
	order         []types.ContainerID
	listDeltas    map[types.ContainerID]*delta[types.Value]
	textDeltas    map[types.ContainerID]*delta[rune]
	mapDeltas     map[types.ContainerID]map[string]*types.Value
	treeDeltas    map[types.ContainerID][]TreeDiffItem
	counterDeltas map[types.ContainerID]float64
	inverses      []inverseOp
}

func newTxn(startCounter types.Counter) *txn {
	return &txn{
		startCounter:  startCounter,
		listDeltas:    make(map[types.ContainerID]*delta[types.Value]),
		textDeltas:    make(map[types.ContainerID]*delta[rune]),
		mapDeltas:     make(map[types.ContainerID]map[string]*types.Value),
		treeDeltas:    make(map[types.ContainerID][]TreeDiffItem),
		counterDeltas: make(map[types.ContainerID]float64),
	}
}

func (t *txn) touch(cid types.ContainerID) {
	for _, seen := range t.order {
		if seen == cid {
			return
		}
	}
	t.order = append(t.order, cid)
}

func (t *txn) addListDelta(cid types.ContainerID, micro delta[types.Value]) {
	t.touch(cid)
	cur, ok := t.listDeltas[cid]
	if !ok {
		cur = &delta[types.Value]{}
		t.listDeltas[cid] = cur
	}
	*cur = compose(*cur, micro)
}

func (t *txn) addTextDelta(cid types.ContainerID, micro delta[rune]) {
	t.touch(cid)
	cur, ok := t.textDeltas[cid]
	if !ok {
		cur = &delta[rune]{}
		t.textDeltas[cid] = cur
	}
	*cur = compose(*cur, micro)
}

func (t *txn) addMapDelta(cid types.ContainerID, key string, value *types.Value) {
	t.touch(cid)
	m, ok := t.mapDeltas[cid]
	if !ok {
		m = make(map[string]*types.Value)
		t.mapDeltas[cid] = m
	}
	m[key] = value
}

func (t *txn) addTreeDelta(cid types.ContainerID, items ...TreeDiffItem) {
	if len(items) == 0 {
		return
	}
	t.touch(cid)
	t.treeDeltas[cid] = append(t.treeDeltas[cid], items...)
}

func (t *txn) addCounterDelta(cid types.ContainerID, delta float64) {
	t.touch(cid)
	t.counterDeltas[cid] += delta
}

func (t *txn) addInverse(cid types.ContainerID, content OpContent) {
	t.inverses = append(t.inverses, inverseOp{container: cid, content: content})
}

// ensureTxn opens the implicit transaction on first mutation.
// Callers hold the write lock.
func (d *Doc) ensureTxn() *txn {
	if d.txn == nil {
		d.txn = newTxn(d.nextCounter)
	}
	return d.txn
}

// closeTxn converts the open transaction into a txnRecord with the
// DiffEvent for subscribers. It returns nil when nothing happened.
// Callers hold the write lock.
func (d *Doc) closeTxn(origin string, kind EventTriggerKind) *txnRecord {
	t := d.txn
	d.txn = nil
	if t == nil {
		return nil
	}

	var diffs []ContainerDiff
	for _, cid := range t.order {
		cd := ContainerDiff{Target: cid, Path: d.pathTo(cid)}
		switch {
		case t.listDeltas[cid] != nil:
			cd.Diff = Diff{Kind: cid.Type, List: d.listDiffItems(*t.listDeltas[cid])}
		case t.textDeltas[cid] != nil:
			cd.Diff = Diff{Kind: types.TextType, Text: textDeltaItems(*t.textDeltas[cid])}
		case t.mapDeltas[cid] != nil:
			cd.Diff = Diff{Kind: types.MapType, Map: d.mapDeltaOf(t.mapDeltas[cid])}
		case t.treeDeltas[cid] != nil:
			cd.Diff = Diff{Kind: types.TreeType, Tree: t.treeDeltas[cid]}
		default:
			if sum, ok := t.counterDeltas[cid]; ok {
				cd.Diff = Diff{Kind: types.CounterType, Counter: sum}
			} else {
				cd.IsUnknown = true
				cd.Diff = Diff{Kind: types.UnknownType}
			}
		}
		if cid.Type == types.UnknownType {
			cd.IsUnknown = true
		}
		diffs = append(diffs, cd)
	}

	rec := &txnRecord{
		origin:   origin,
		kind:     kind,
		span:     CounterSpan{Start: t.startCounter, End: d.nextCounter},
		inverses: t.inverses,
	}
	if len(diffs) > 0 {
		rec.event = &DiffEvent{TriggeredBy: kind, Origin: origin, Events: diffs}
	}
	if rec.event == nil && len(rec.inverses) == 0 && rec.span.Len() == 0 {
		return nil
	}
	return rec
}

func (d *Doc) listDiffItems(dl delta[types.Value]) []ListDiffItem {
	items := make([]ListDiffItem, 0, len(dl.segs))
	for _, s := range dl.segs {
		switch s.kind {
		case segRetain:
			items = append(items, ListDiffItem{Retain: s.n})
		case segDelete:
			items = append(items, ListDiffItem{Delete: s.n})
		default:
			vals := make([]ValueOrContainer, len(s.vals))
			for i, v := range s.vals {
				vals[i] = d.valueOrContainer(v)
			}
			items = append(items, ListDiffItem{Insert: vals, IsMove: s.isMove})
		}
	}
	return items
}

func textDeltaItems(dl delta[rune]) []TextDelta {
	items := make([]TextDelta, 0, len(dl.segs))
	for _, s := range dl.segs {
		switch s.kind {
		case segRetain:
			items = append(items, TextDelta{Retain: s.n})
		case segDelete:
			items = append(items, TextDelta{Delete: s.n})
		default:
			items = append(items, TextDelta{Insert: string(s.vals)})
		}
	}
	return items
}

func (d *Doc) mapDeltaOf(updated map[string]*types.Value) *MapDelta {
	out := make(map[string]*ValueOrContainer, len(updated))
	for key, v := range updated {
		if v == nil {
			out[key] = nil
			continue
		}
		voc := d.valueOrContainer(*v)
		out[key] = &voc
	}
	return &MapDelta{Updated: out}
}

func (d *Doc) valueOrContainer(v types.Value) ValueOrContainer {
	if v.Kind == types.ContainerValue {
		return ValueOrContainer{container: d.handleFor(v.Container)}
	}
	vCopy := v
	return ValueOrContainer{value: &vCopy}
}

// pathTo builds the root-to-parent path of a container. Callers hold the
// document lock.
func (d *Doc) pathTo(cid types.ContainerID) []PathItem {
	var rev []PathItem
	cur := cid
	for {
		ref, ok := d.parentOf[cur]
		if !ok {
			break
		}
		rev = append(rev, PathItem{Container: ref.parent, Index: ref.resolveIndex(d)})
		cur = ref.parent
	}
	// reverse into root-first order
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// deepValueOf materializes a container recursively; nested containers are
// replaced by their own deep values. Callers hold the document lock.
func (d *Doc) deepValueOf(cid types.ContainerID) types.Value {
	return d.materialize(cid, true)
}

// shallowValueOf materializes a container one level deep; nested containers
// appear as container references. Callers hold the document lock.
func (d *Doc) shallowValueOf(cid types.ContainerID) types.Value {
	return d.materialize(cid, false)
}

func (d *Doc) materialize(cid types.ContainerID, deep bool) types.Value {
	state, ok := d.containers[cid]
	if !ok {
		return types.Null()
	}
	switch s := state.(type) {
	case *listState:
		return d.seqValue(s.seq.values(), deep)
	case *movableListState:
		return d.seqValue(s.visibleValues(), deep)
	case *mapState:
		out := make(map[string]types.Value)
		for key, entry := range s.entries {
			if entry.value == nil {
				continue
			}
			out[key] = d.resolveValue(*entry.value, deep)
		}
		return types.NewMap(out)
	case *textState:
		return types.NewString(textOf(s.seq))
	case *counterState:
		return types.NewDouble(s.value)
	case *treeState:
		return d.treeValue(cid, s, deep)
	default:
		return types.Null()
	}
}

func (d *Doc) seqValue(vals []types.Value, deep bool) types.Value {
	out := make([]types.Value, len(vals))
	for i, v := range vals {
		out[i] = d.resolveValue(v, deep)
	}
	return types.NewList(out...)
}

func (d *Doc) resolveValue(v types.Value, deep bool) types.Value {
	if deep && v.Kind == types.ContainerValue {
		return d.deepValueOf(v.Container)
	}
	return v
}
