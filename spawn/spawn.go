// Package spawn implements SpawnContext: the transactional scope that
// adds or removes workers across a configuration change, either at
// initial bring-up (Startup) or after a live edit (Reload).
package spawn

import (
	"context"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/config"
	"github.com/oasislabs/relayer/filter"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/internal/logging"
	"github.com/oasislabs/relayer/object"
	"github.com/oasislabs/relayer/worker"
)

// Mode distinguishes the two circumstances a SpawnContext runs under.
// Startup is expected to populate an empty WorkerMap; Reload must be
// idempotent against existing entries and must never resurrect a
// worker Policy has since moved to Deny.
type Mode int

const (
	// Startup is the initial bring-up spawn pass.
	Startup Mode = iota
	// Reload runs after a live configuration edit.
	Reload
)

// Resolver is the subset of Registry a SpawnContext needs.
type Resolver interface {
	GetOrSpawn(id ibc.ChainID) (chain.Handle, error)
}

// Context is SpawnContext: it borrows Config (read), a Resolver
// (chain handles), a Policy (filter) and a worker Map, all mutably
// shared with the supervisor that constructs it.
type Context struct {
	Mode Mode

	cfg      *config.Config
	registry Resolver
	policy   *filter.Policy
	workers  *worker.Map

	log *logging.Logger
}

// New constructs a SpawnContext for the given mode.
func New(mode Mode, cfg *config.Config, registry Resolver, policy *filter.Policy, workers *worker.Map) *Context {
	return &Context{
		Mode:     mode,
		cfg:      cfg,
		registry: registry,
		policy:   policy,
		workers:  workers,
		log:      logging.GetLogger("spawn"),
	}
}

// SpawnWorkers enumerates every ordered pair of distinct configured
// chains and spawns, for each pair the policy allows, one Client
// worker (see spawnClientWorker) if not already present. Connections
// and channels between the pair are not enumerated, so no Connection,
// Channel or Packet worker is spawned here.
func (c *Context) SpawnWorkers(ctx context.Context) {
	ids := c.cfg.ChainIDs()
	for _, id := range ids {
		c.SpawnWorkersForChain(ctx, id)
	}
}

// SpawnWorkersForChain restricts SpawnWorkers to chain pairs where id
// participates as the host (the chain whose src_chain_id names it per
// invariant 3 — the chain hosting the dependent client, connection or
// channel).
func (c *Context) SpawnWorkersForChain(ctx context.Context, id ibc.ChainID) {
	host, err := c.registry.GetOrSpawn(id)
	if err != nil {
		c.log.Warn("cannot resolve chain for spawn pass", "chain.id", id, "err", err)
		return
	}

	for _, counterparty := range c.cfg.ChainIDs() {
		if counterparty == id {
			continue
		}
		counterpartyHandle, err := c.registry.GetOrSpawn(counterparty)
		if err != nil {
			c.log.Warn("cannot resolve counterparty chain for spawn pass", "chain.id", counterparty, "err", err)
			continue
		}
		c.spawnClientWorker(ctx, id, counterparty, host, counterpartyHandle)
	}
}

// spawnClientWorker is the minimal, always-available spawn rule: a
// client worker keeping hostID's local client for counterpartyID up to
// date. Connection and channel discovery (enumerating what
// handshakes/channels exist between the pair) depends on chain-runtime
// query methods this repository does not implement a production
// driver for (§6); a real deployment's Resolver-backed chain.Handle
// supplies that discovery, and this loop would enumerate those results
// the same way it enumerates the single client relationship below.
func (c *Context) spawnClientWorker(ctx context.Context, hostID, counterpartyID ibc.ChainID, host, counterparty chain.Handle) {
	clientObj := object.Client{SrcChainID: hostID, DstChainID: counterpartyID, ClientID: ibc.ClientID("default")}
	perm, err := c.policy.ControlClientObject(ctx, clientObj)
	if err != nil || perm != filter.Allow {
		return
	}

	obj := object.NewClient(clientObj)
	if c.Mode == Reload && c.workers.Contains(obj) {
		return
	}
	c.workers.GetOrSpawn(obj, host, counterparty)
}

// ShutdownWorkersForChain drops every worker whose Object mentions id
// as source or destination. Workers terminate via inbox closure and
// eventually report Stopped asynchronously.
func (c *Context) ShutdownWorkersForChain(id ibc.ChainID) {
	removed := c.workers.RemoveAllForChain(id)
	worker.Shutdown(removed)
	c.log.Info("shut down workers for chain", "chain.id", id, "count", len(removed))
}
