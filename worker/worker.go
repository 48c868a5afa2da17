// Package worker implements the WorkerMap: the supervisor's
// object->worker demultiplexer, and the default worker body that
// drains an Object's inbound channel.
package worker

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/event"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/internal/logging"
	"github.com/oasislabs/relayer/object"
)

// ID is a monotonically increasing worker identity, used as an epoch
// tag so a stale Stopped message from a replaced worker can be told
// apart from the worker currently holding its Object.
type ID uint64

var nextID atomic.Uint64

func newID() ID {
	return ID(nextID.Inc())
}

// Msg is what the supervisor sends down a worker's inbound channel.
// At most one of Events or NewBlock is populated, matching the two
// cases EventClassifier produces: a batch of per-object events, or a
// bare NewBlock notification. A ClearPending message carries neither.
type Msg struct {
	Height        ibc.Height
	Events        []event.IbcEvent
	SourceChainID ibc.ChainID

	NewBlock *event.IbcEvent

	// ClearPending signals a subscription cancellation on the worker's
	// source chain: any packets the worker was tracking should be
	// considered stale.
	ClearPending bool
}

// StoppedMsg is what a worker sends on the status channel exactly
// once, as its last act before its goroutine exits.
type StoppedMsg struct {
	ID     ID
	Object object.Object
}

// Body is the function a worker runs: drain inbox until it closes
// (the supervisor dropped the sending side), then return. The real
// packet-relay/handshake-driving logic is a collaborator outside this
// repository's scope (§1); this package supplies the reconciling,
// backoff-guarded shell bodies run inside.
type Body func(id ID, obj object.Object, src, dst chain.Handle, inbox <-chan Msg)

// Worker is one entry in the WorkerMap: an Object's identity, its
// inbound channel, and the id tagging which spawn generation it is.
type Worker struct {
	ID     ID
	Object object.Object

	inbox chan Msg
}

// Send delivers msg to the worker's inbox without blocking. Returns
// false if the channel was full; callers log and drop on false, per
// §4.4's channel-full contract.
func (w *Worker) Send(msg Msg) bool {
	select {
	case w.inbox <- msg:
		return true
	default:
		return false
	}
}

const inboxCapacity = 64

// Map is the supervisor's Object -> Worker table. At most one live
// worker exists per Object at any instant; that invariant is
// enforced entirely by GetOrSpawn and RemoveStopped.
type Map struct {
	mu      sync.Mutex
	workers map[object.Object]*Worker
	body    Body
	status  chan StoppedMsg

	log *logging.Logger
}

// NewMap constructs an empty Map. body is run in its own goroutine
// for every worker spawned; status is the channel every spawned
// worker is handed to report StoppedMsg on exit.
func NewMap(body Body, status chan StoppedMsg) *Map {
	return &Map{
		workers: make(map[object.Object]*Worker),
		body:    body,
		status:  status,
		log:     logging.GetLogger("worker"),
	}
}

// Contains reports whether obj currently has a live worker.
func (m *Map) Contains(obj object.Object) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.workers[obj]
	return ok
}

// GetOrSpawn returns the existing worker for obj, or creates one:
// allocates a fresh ID, opens a bounded inbound channel, starts the
// worker body in its own goroutine, and inserts the mapping.
func (m *Map) GetOrSpawn(obj object.Object, src, dst chain.Handle) *Worker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.workers[obj]; ok {
		return w
	}

	w := &Worker{
		ID:     newID(),
		Object: obj,
		inbox:  make(chan Msg, inboxCapacity),
	}
	m.workers[obj] = w

	go m.runBody(w, src, dst)

	m.log.Info("spawned worker", "worker.id", w.ID, "object", obj.String())
	return w
}

func (m *Map) runBody(w *Worker, src, dst chain.Handle) {
	defer func() {
		m.status <- StoppedMsg{ID: w.ID, Object: w.Object}
	}()
	m.body(w.ID, w.Object, src, dst, w.inbox)
}

// RemoveStopped removes the mapping for obj iff the currently stored
// worker's id equals id. A stale Stopped from a since-replaced worker
// generation is a no-op, guarding the WorkerMap against the race
// described in the design notes: a Stopped for generation N can
// arrive after GetOrSpawn already installed generation N+1.
func (m *Map) RemoveStopped(id ID, obj object.Object) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[obj]
	if !ok || w.ID != id {
		return
	}
	delete(m.workers, obj)
	m.log.Debug("removed stopped worker", "worker.id", id, "object", obj.String())
}

// Objects returns every Object currently mapped to a live worker.
func (m *Map) Objects() []object.Object {
	m.mu.Lock()
	defer m.mu.Unlock()

	objs := make([]object.Object, 0, len(m.workers))
	for o := range m.workers {
		objs = append(objs, o)
	}
	return objs
}

// WorkersForChain returns every worker whose Object has chainID as
// source or destination.
func (m *Map) WorkersForChain(chainID ibc.ChainID) []*Worker {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Worker
	for o, w := range m.workers {
		if o.SrcChainID() == chainID || o.DstChainID() == chainID {
			out = append(out, w)
		}
	}
	return out
}

// ToNotify returns every worker for which a NewBlock from chainID is
// meaningful: those whose Object's source chain is chainID.
func (m *Map) ToNotify(chainID ibc.ChainID) []*Worker {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Worker
	for o, w := range m.workers {
		if o.SrcChainID() == chainID {
			out = append(out, w)
		}
	}
	return out
}

// RemoveAllForChain drops every mapping whose Object mentions chainID
// as source or destination, without waiting for the worker goroutines
// to exit. Used by shutdown_workers_for_chain: the workers still
// running will report Stopped asynchronously, at which point
// RemoveStopped finds nothing to do (the entry is already gone) and
// silently no-ops, which is the intended behavior.
func (m *Map) RemoveAllForChain(chainID ibc.ChainID) []*Worker {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []*Worker
	for o, w := range m.workers {
		if o.SrcChainID() == chainID || o.DstChainID() == chainID {
			delete(m.workers, o)
			removed = append(removed, w)
		}
	}
	return removed
}

// closeAll closes every worker's inbox, which is this package's sender-
// drop termination signal: the worker body drains whatever remains
// queued and returns, reporting Stopped.
func closeAll(workers []*Worker) {
	for _, w := range workers {
		close(w.inbox)
	}
}

// Shutdown closes the inbox of every worker returned, triggering
// their termination. Call after RemoveAllForChain with its result.
func Shutdown(workers []*Worker) {
	closeAll(workers)
}
