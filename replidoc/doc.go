package replidoc

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/replidoc/replidoc/types"
)

// detachedPeer is the reserved peer ID used by scratch documents backing
// detached container handles.
const detachedPeer types.PeerID = ^types.PeerID(0)

// Doc is a replicated document: one arena owning all container state. Every
// container handle holds a reference into the arena, and every mutation,
// local or merged, goes through the arena's single synchronization point
// before the diff pipeline computes its delta.
type Doc struct {
	lock     *lockManager
	detached bool
	config   Config

	peer        types.PeerID
	nextCounter types.Counter
	nextLamport uint32

	ops     []Op
	vv      VersionVector
	lastOp  map[types.PeerID]types.ID
	pending []Op

	containers map[types.ContainerID]containerState
	parentOf   map[types.ContainerID]parentRef
	// nodeOwner maps a tree node's creation ID to its tree, so node metadata
	// map containers can be materialized lazily on either side of a merge.
	nodeOwner map[types.ID]types.ContainerID

	txn      *txn
	txnHooks []txnHook

	subs      *subRegistry
	deliverMu sync.Mutex

	handlerMu  sync.Mutex
	inHandlers map[uint64]int
	onError    func(error)
}

// txnHook observes committed transactions. Undo managers register one to
// record inverse patches.
type txnHook func(*txnRecord)

// New creates a document with a random peer ID.
func New() *Doc {
	u := uuid.New()
	peer := types.PeerID(binary.BigEndian.Uint64(u[:8]))
	if peer == detachedPeer {
		peer--
	}
	return NewWithPeer(peer)
}

// NewWithPeer creates a document with an explicit peer ID. Two replicas of
// the same document must never share a peer ID.
func NewWithPeer(peer types.PeerID) *Doc {
	return &Doc{
		lock:       newLockManager(),
		config:     DefaultConfig(),
		peer:       peer,
		vv:         make(VersionVector),
		lastOp:     make(map[types.PeerID]types.ID),
		containers: make(map[types.ContainerID]containerState),
		parentOf:   make(map[types.ContainerID]parentRef),
		nodeOwner:  make(map[types.ID]types.ContainerID),
		subs:       newSubRegistry(),
		inHandlers: make(map[uint64]int),
	}
}

// newScratchDoc backs a detached container handle.
func newScratchDoc() *Doc {
	d := NewWithPeer(detachedPeer)
	d.detached = true
	return d
}

// PeerID returns the document's peer ID.
func (d *Doc) PeerID() types.PeerID {
	res, _ := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return d.peer, nil
	})
	return res.(types.PeerID)
}

// SetPeerID changes the document's peer ID. The counter continues from
// whatever the document has already seen for that peer, so IDs are never
// reused.
func (d *Doc) SetPeerID(peer types.PeerID) error {
	if err := d.mutationGuard(); err != nil {
		return err
	}
	return d.lock.execute(writeOperation, func() error {
		d.peer = peer
		d.nextCounter = d.vv[peer]
		return nil
	})
}

// SetErrorHandler installs a callback for failures that are isolated from
// the triggering edit, such as a panicking event subscriber or undo hook.
func (d *Doc) SetErrorHandler(fn func(error)) {
	d.handlerMu.Lock()
	defer d.handlerMu.Unlock()
	d.onError = fn
}

// GetList returns the root list container with the given name, creating its
// state on first use.
func (d *Doc) GetList(name string) *List {
	cid := types.NewRootContainerID(name, types.ListType)
	d.ensureRootState(cid)
	return &List{doc: d, cid: cid}
}

// GetMovableList returns the root movable list with the given name.
func (d *Doc) GetMovableList(name string) *MovableList {
	cid := types.NewRootContainerID(name, types.MovableListType)
	d.ensureRootState(cid)
	return &MovableList{doc: d, cid: cid}
}

// GetMap returns the root map with the given name.
func (d *Doc) GetMap(name string) *Map {
	cid := types.NewRootContainerID(name, types.MapType)
	d.ensureRootState(cid)
	return &Map{doc: d, cid: cid}
}

// GetText returns the root text container with the given name.
func (d *Doc) GetText(name string) *Text {
	cid := types.NewRootContainerID(name, types.TextType)
	d.ensureRootState(cid)
	return &Text{doc: d, cid: cid}
}

// GetTree returns the root movable tree with the given name. The
// document's configured jitter applies to its fractional indices.
func (d *Doc) GetTree(name string) *Tree {
	cid := types.NewRootContainerID(name, types.TreeType)
	_ = d.lock.execute(writeOperation, func() error {
		if _, ok := d.containers[cid]; !ok {
			s := newTreeState()
			s.jitter = d.config.TreeJitter
			d.containers[cid] = s
		}
		return nil
	})
	return &Tree{doc: d, cid: cid}
}

// GetCounter returns the root counter with the given name.
func (d *Doc) GetCounter(name string) *Counter {
	cid := types.NewRootContainerID(name, types.CounterType)
	d.ensureRootState(cid)
	return &Counter{doc: d, cid: cid}
}

// GetContainer resolves a container ID to a handle.
func (d *Doc) GetContainer(cid types.ContainerID) (Container, error) {
	res, err := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		if _, ok := d.containers[cid]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, cid)
		}
		return d.handleFor(cid), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(Container), nil
}

// ensureRootState materializes the state of a root container.
func (d *Doc) ensureRootState(cid types.ContainerID) {
	_ = d.lock.execute(writeOperation, func() error {
		if _, ok := d.containers[cid]; !ok {
			d.containers[cid] = newState(cid.Type)
		}
		return nil
	})
}

// Commit closes the open transaction, delivering one DiffEvent carrying all
// of its diffs to subscribers and notifying undo managers. The origin is an
// opaque tag carried on the event for application-level filtering. A commit
// with no pending edits does nothing. Committing from inside an event
// handler returns ErrReentrantCall.
func (d *Doc) Commit(origin string) error {
	if err := d.mutationGuard(); err != nil {
		return err
	}
	var rec *txnRecord
	_ = d.lock.execute(writeOperation, func() error {
		rec = d.closeTxn(origin, TriggeredByLocal)
		return nil
	})
	d.dispatch(rec)
	return nil
}

// dispatch runs txn hooks and subscribers for a committed transaction.
// It runs outside the document lock so handlers can read the document;
// nested mutation is rejected by the mutation guard. deliverMu keeps events
// from different transactions ordered.
func (d *Doc) dispatch(rec *txnRecord) {
	if rec == nil {
		return
	}
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	d.enterHandler()
	defer d.leaveHandler()

	for _, hook := range d.txnHooks {
		d.invokeIsolated(func() { hook(rec) })
	}
	if rec.event == nil {
		return
	}
	for _, entry := range d.subs.snapshot() {
		if !d.subs.isLive(entry) {
			continue
		}
		scoped := scopedEvent(rec.event, entry.scope)
		if scoped == nil {
			continue
		}
		fn := entry.fn
		d.invokeIsolated(func() { fn(scoped) })
	}
}

// invokeIsolated runs a handler and keeps its panic from aborting the
// triggering edit; the failure is reported through the error handler.
func (d *Doc) invokeIsolated(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.handlerMu.Lock()
			onError := d.onError
			d.handlerMu.Unlock()
			if onError != nil {
				onError(fmt.Errorf("handler panic: %v", r))
			}
		}
	}()
	fn()
}

// Subscribe registers a callback for events touching the given container or
// any container nested beneath it.
func (d *Doc) Subscribe(scope types.ContainerID, fn Subscriber) *Subscription {
	scopeCopy := scope
	return d.subs.add(&scopeCopy, fn)
}

// SubscribeRoot registers a callback for every event in the document.
func (d *Doc) SubscribeRoot(fn Subscriber) *Subscription {
	return d.subs.add(nil, fn)
}

// addTxnHook registers an internal transaction observer.
func (d *Doc) addTxnHook(hook txnHook) {
	_ = d.lock.execute(writeOperation, func() error {
		d.txnHooks = append(d.txnHooks, hook)
		return nil
	})
}

// GetDeepValue materializes every root container recursively into one map
// value keyed by root container name.
func (d *Doc) GetDeepValue() types.Value {
	res, _ := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		out := make(map[string]types.Value)
		for cid := range d.containers {
			if cid.IsRoot() {
				out[cid.Name] = d.deepValueOf(cid)
			}
		}
		return types.NewMap(out), nil
	})
	return res.(types.Value)
}

// GetPathToContainer returns the path from the document root to the given
// container.
func (d *Doc) GetPathToContainer(cid types.ContainerID) ([]PathItem, error) {
	res, err := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		if _, ok := d.containers[cid]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, cid)
		}
		return d.pathTo(cid), nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]PathItem), nil
}

// VersionVector returns a copy of the document's version vector.
func (d *Doc) VersionVector() VersionVector {
	res, _ := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return d.vv.Copy(), nil
	})
	return res.(VersionVector)
}

// Frontier returns the latest known operation ID per peer, sorted.
func (d *Doc) Frontier() []types.ID {
	res, _ := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		out := make([]types.ID, 0, len(d.lastOp))
		for _, id := range d.lastOp {
			out = append(out, id)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
		return out, nil
	})
	return res.([]types.ID)
}

// LenOps returns the number of operations the document has applied.
func (d *Doc) LenOps() int {
	res, _ := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return len(d.ops), nil
	})
	return res.(int)
}

// mutationGuard rejects nested mutation from inside an event handler or
// undo hook; handlers may read but must not edit the document that invoked
// them.
func (d *Doc) mutationGuard() error {
	if d.inHandler() {
		return ErrReentrantCall
	}
	return nil
}

func (d *Doc) enterHandler() {
	id := goroutineID()
	d.handlerMu.Lock()
	d.inHandlers[id]++
	d.handlerMu.Unlock()
}

func (d *Doc) leaveHandler() {
	id := goroutineID()
	d.handlerMu.Lock()
	d.inHandlers[id]--
	if d.inHandlers[id] <= 0 {
		delete(d.inHandlers, id)
	}
	d.handlerMu.Unlock()
}

func (d *Doc) inHandler() bool {
	id := goroutineID()
	d.handlerMu.Lock()
	defer d.handlerMu.Unlock()
	return d.inHandlers[id] > 0
}

// goroutineID parses the current goroutine's ID from the stack header. Used
// only for reentrancy detection, never for scheduling.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(s, ' '); i > 0 {
		if id, err := strconv.ParseUint(s[:i], 10, 64); err == nil {
			return id
		}
	}
	return 0
}
