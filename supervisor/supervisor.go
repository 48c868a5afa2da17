// Package supervisor implements the cooperative reactor that ties
// every other component together: it multiplexes chain subscriptions,
// the worker status channel and the command channel, classifying and
// filtering events before dispatching them to the WorkerMap.
package supervisor

import (
	"context"
	"time"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/config"
	"github.com/oasislabs/relayer/event"
	"github.com/oasislabs/relayer/filter"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/internal/logging"
	"github.com/oasislabs/relayer/internal/service"
	"github.com/oasislabs/relayer/object"
	"github.com/oasislabs/relayer/registry"
	"github.com/oasislabs/relayer/telemetry"
	"github.com/oasislabs/relayer/worker"
)

// idleSleep bounds the worst-case event-to-dispatch latency when
// every channel is empty; see §5.
const idleSleep = 50 * time.Millisecond

const (
	statusChanCapacity = 256
	cmdChanCapacity    = 64
)

// subEntry pairs a live chain handle with its unwrapped batch channel.
type subEntry struct {
	handle  chain.Handle
	batches chan event.Batch
}

// Supervisor owns the Registry, WorkerMap and FilterPolicy
// exclusively; nothing outside the reactor goroutine touches them. It
// embeds BaseBackgroundService so it composes with the same
// Start/Stop/Quit/Cleanup lifecycle every other long-running
// component in this repository uses.
type Supervisor struct {
	*service.BaseBackgroundService

	cfg       *config.Config
	registry  *registry.Registry
	workers   *worker.Map
	policy    *filter.Policy
	telemetry *telemetry.Metrics

	cmdCh    chan Command
	statusCh chan worker.StoppedMsg

	subs []subEntry
	rr   int // round-robin cursor over subs

	cancel context.CancelFunc

	log *logging.Logger
}

// New constructs a Supervisor. body is the worker body every spawned
// worker runs.
func New(cfg *config.Config, reg *registry.Registry, policy *filter.Policy, metrics *telemetry.Metrics, body worker.Body) *Supervisor {
	statusCh := make(chan worker.StoppedMsg, statusChanCapacity)
	return &Supervisor{
		BaseBackgroundService: service.NewBaseBackgroundService("supervisor"),
		cfg:                   cfg,
		registry:              reg,
		workers:               worker.NewMap(body, statusCh),
		policy:                policy,
		telemetry:             metrics,
		cmdCh:                 make(chan Command, cmdChanCapacity),
		statusCh:              statusCh,
		log:                   logging.GetLogger("supervisor"),
	}
}

// Start implements service.BackgroundService: it launches the reactor
// in its own goroutine and returns immediately.
func (s *Supervisor) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		s.Run(ctx)
		s.BaseBackgroundService.Stop()
	}()
	return nil
}

// Stop implements service.BackgroundService: it cancels the reactor's
// context and waits for neither — Run observes cancellation on its
// next tick and Quit() closes once it has returned.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Commands returns the send side of the command channel.
func (s *Supervisor) Commands() chan<- Command { return s.cmdCh }

// Workers exposes the WorkerMap so a Startup SpawnContext can
// populate it before Run begins polling.
func (s *Supervisor) Workers() *worker.Map { return s.workers }

// classifier builds a fresh EventClassifier bound to the current
// WorkerMap and Config, used once per poll since handshake_enabled
// may have changed since the last tick.
func (s *Supervisor) classifier() *event.Classifier {
	return event.NewClassifier(s.cfg.Global().HandshakeEnabled, s.workers.Contains)
}

// Run executes the reactor loop until ctx is cancelled. It performs
// initial subscription bring-up itself (equivalent to a Startup
// SpawnContext pass having already populated the WorkerMap via the
// caller).
func (s *Supervisor) Run(ctx context.Context) {
	s.rebuildSubscriptions(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		progressed := s.pollSubscriptions(ctx)
		progressed = s.pollWorkerStatus() || progressed
		progressed = s.pollCommands(ctx) || progressed

		if !progressed {
			time.Sleep(idleSleep)
		}
	}
}

// pollSubscriptions attempts to receive one batch from any ready
// subscription, round-robin across ready senders, and dispatches it.
func (s *Supervisor) pollSubscriptions(ctx context.Context) bool {
	if len(s.subs) == 0 {
		return false
	}

	n := len(s.subs)
	for i := 0; i < n; i++ {
		idx := (s.rr + i) % n
		entry := s.subs[idx]
		select {
		case batch, ok := <-entry.batches:
			s.rr = (idx + 1) % n
			if !ok {
				s.log.Warn("subscription cancelled", "chain.id", entry.handle.ID())
				s.clearPendingPackets(entry.handle.ID())
				return true
			}
			s.handleBatch(ctx, entry.handle, batch)
			return true
		default:
		}
	}
	return false
}

// pollWorkerStatus drains at most one StoppedMsg per tick.
func (s *Supervisor) pollWorkerStatus() bool {
	select {
	case msg := <-s.statusCh:
		s.workers.RemoveStopped(msg.ID, msg.Object)
		if s.telemetry != nil {
			s.telemetry.WorkersStopped.WithLabelValues(msg.Object.Kind.String()).Inc()
		}
		return true
	default:
		return false
	}
}

// pollCommands drains at most one Command per tick.
func (s *Supervisor) pollCommands(ctx context.Context) bool {
	select {
	case cmd := <-s.cmdCh:
		if s.handleCmd(ctx, cmd) == effectConfigChanged {
			s.rebuildSubscriptions(ctx)
		}
		return true
	default:
		return false
	}
}

// handleBatch classifies and dispatches one batch.
func (s *Supervisor) handleBatch(ctx context.Context, h chain.Handle, batch event.Batch) {
	if batch.ChainID != h.ID() {
		s.log.Error("batch chain id mismatch", "expected", h.ID(), "got", batch.ChainID)
		panic("supervisor: batch chain id " + string(batch.ChainID) + " does not match subscription chain " + string(h.ID()))
	}

	collected := s.classifier().CollectEvents(h.ID(), batch)

	for obj, events := range collected.PerObject {
		if !s.relayOnObject(ctx, h.ID(), obj) {
			s.log.Debug("object denied by filter", "object", obj.String())
			continue
		}

		src, err := s.registry.GetOrSpawn(obj.SrcChainID())
		if err != nil {
			s.log.Error("cannot resolve src chain", "chain.id", obj.SrcChainID(), "err", err)
			continue
		}
		dst, err := s.registry.GetOrSpawn(obj.DstChainID())
		if err != nil {
			s.log.Error("cannot resolve dst chain", "chain.id", obj.DstChainID(), "err", err)
			continue
		}

		w := s.workers.GetOrSpawn(obj, src, dst)
		if s.telemetry != nil {
			s.telemetry.WorkersActive.WithLabelValues(obj.Kind.String()).Set(1)
		}
		if !w.Send(worker.Msg{Height: collected.Height, Events: events, SourceChainID: h.ID()}) {
			s.log.Warn("worker inbox full, dropping batch", "object", obj.String())
		}
	}

	if collected.HasNewBlock() {
		for _, w := range s.workers.ToNotify(h.ID()) {
			nb := *collected.NewBlock
			w.Send(worker.Msg{Height: collected.Height, SourceChainID: h.ID(), NewBlock: &nb})
		}
	}
}

// relayOnObject implements §4.5's combined channel + client filter.
func (s *Supervisor) relayOnObject(ctx context.Context, srcChainID ibc.ChainID, obj object.Object) bool {
	global := s.cfg.Global()
	if !global.Filter {
		return true
	}

	if p, ok := obj.AsPacket(); ok {
		if !s.cfg.PacketsOnChannelAllowed(srcChainID, p.SrcPortID, p.SrcChannelID) {
			return false
		}
	}

	perm, err := s.policy.ControlObject(ctx, obj)
	if err != nil {
		s.log.Warn("filter query failed, denying", "object", obj.String(), "err", err)
		if s.telemetry != nil {
			s.telemetry.FilterDenied.WithLabelValues("query_error").Inc()
		}
		return false
	}
	if perm != filter.Allow {
		if s.telemetry != nil {
			s.telemetry.FilterDenied.WithLabelValues("policy").Inc()
		}
		return false
	}
	return true
}

// clearPendingPackets forwards ClearPending to every worker for
// chainID, as handle_batch's subscription-cancelled branch requires.
func (s *Supervisor) clearPendingPackets(chainID ibc.ChainID) {
	for _, w := range s.workers.WorkersForChain(chainID) {
		w.Send(worker.Msg{ClearPending: true, SourceChainID: chainID})
	}
}

// rebuildSubscriptions replaces s.subs from the current Registry. If
// no chains are available, the previous (possibly empty) list is
// replaced with an empty one and the reactor keeps running, revivable
// by a later Add.
func (s *Supervisor) rebuildSubscriptions(ctx context.Context) {
	for _, old := range s.subs {
		_ = old // subscriptions are left to be GC'd with their Broker entries; Handle.Shutdown (on removal) tears down the source.
	}

	var subs []subEntry
	for _, id := range s.registry.Chains() {
		h, err := s.registry.GetOrSpawn(id)
		if err != nil {
			s.log.Warn("cannot resubscribe to chain", "chain.id", id, "err", err)
			continue
		}
		sub, err := h.Subscribe(ctx)
		if err != nil {
			s.log.Warn("subscribe failed", "chain.id", id, "err", err)
			continue
		}
		ch := make(chan event.Batch, 1)
		sub.Unwrap(ch)
		subs = append(subs, subEntry{handle: h, batches: ch})
	}

	if len(subs) == 0 {
		s.log.Warn("no chains available for subscriptions")
	}
	s.subs = subs
	s.rr = 0
}
