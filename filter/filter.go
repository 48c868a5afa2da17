// Package filter implements the client-trust policy that gates
// whether an Object may be relayed: control_client_object and its
// three derived variants for connections, channels and packets.
package filter

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/config"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/internal/logging"
	"github.com/oasislabs/relayer/object"
)

// Permission is the outcome of a control_*_object call.
type Permission int

// The two possible outcomes. There is no third "unknown" state —
// query errors are folded into Deny by the caller.
const (
	Deny Permission = iota
	Allow
)

func (p Permission) String() string {
	if p == Allow {
		return "allow"
	}
	return "deny"
}

// cacheKey must include the chain id alongside the client id: without
// it, an Allow decision cached for one chain's client could wrongly
// be served after that chain (and the evidence behind the decision)
// was removed.
type cacheKey struct {
	chain  ibc.ChainID
	client ibc.ClientID
}

// HandleResolver looks up a live chain.Handle for the given id, as
// the Registry does. FilterPolicy depends on this narrow interface
// rather than *registry.Registry directly, keeping the dependency
// one-directional.
type HandleResolver interface {
	GetOrSpawn(id ibc.ChainID) (chain.Handle, error)
}

// Policy is the client-trust FilterPolicy: a pure function of the
// client states it observes plus Config, with a cache to avoid
// re-querying a chain runtime on every event.
type Policy struct {
	cfg      *config.Config
	registry HandleResolver
	cache    *lru.TwoQueueCache

	log *logging.Logger
}

// New constructs a Policy backed by an LRU cache sized for size
// distinct (chain, client) pairs.
func New(cfg *config.Config, registry HandleResolver, size int) (*Policy, error) {
	cache, err := lru.New2Q(size)
	if err != nil {
		return nil, fmt.Errorf("filter: constructing cache: %w", err)
	}
	return &Policy{
		cfg:      cfg,
		registry: registry,
		cache:    cache,
		log:      logging.GetLogger("filter"),
	}, nil
}

// InvalidateChain drops every cached decision for clients hosted on
// chainID. Must be called on chain removal, or a stale Allow could
// outlive the evidence it was based on.
func (p *Policy) InvalidateChain(chainID ibc.ChainID) {
	for _, k := range p.cache.Keys() {
		ck, ok := k.(cacheKey)
		if ok && ck.chain == chainID {
			p.cache.Remove(k)
		}
	}
}

func (p *Policy) checkClient(ctx context.Context, hostChain ibc.ChainID, clientID ibc.ClientID) (Permission, error) {
	key := cacheKey{chain: hostChain, client: clientID}
	if v, ok := p.cache.Get(key); ok {
		return v.(Permission), nil
	}

	handle, err := p.registry.GetOrSpawn(hostChain)
	if err != nil {
		return Deny, err
	}
	cs, err := handle.ClientState(ctx, clientID)
	if err != nil {
		return Deny, err
	}

	perm := Allow
	if cs.Expired {
		perm = Deny
	}
	if cs.TrustingPeriod < p.cfg.Global().ClientMinTrustingPeriod {
		perm = Deny
	}

	p.cache.Add(key, perm)
	return perm, nil
}

// ControlClientObject decides whether a Client Object's client state
// satisfies policy. Per invariant 3 (every Object's src_chain_id is
// the chain it was observed on), the client itself is hosted on the
// object's src chain.
func (p *Policy) ControlClientObject(ctx context.Context, c object.Client) (Permission, error) {
	perm, err := p.checkClient(ctx, c.SrcChainID, c.ClientID)
	if err != nil {
		p.log.Warn("client state query failed", "chain.id", c.SrcChainID, "client.id", c.ClientID, "err", err)
		return Deny, err
	}
	return perm, nil
}

// ControlConnObject decides whether a Connection Object may be
// relayed: it depends transitively on the client underpinning the
// connection, looked up from the connection's host chain (src, per
// invariant 3).
func (p *Policy) ControlConnObject(ctx context.Context, c object.Connection) (Permission, error) {
	handle, err := p.registry.GetOrSpawn(c.SrcChainID)
	if err != nil {
		return Deny, err
	}
	conn, err := handle.ConnectionEnd(ctx, c.ConnectionID)
	if err != nil {
		p.log.Warn("connection lookup failed", "chain.id", c.SrcChainID, "connection.id", c.ConnectionID, "err", err)
		return Deny, err
	}

	perm, err := p.checkClient(ctx, c.SrcChainID, conn.ClientID)
	if err != nil {
		p.log.Warn("client state query failed", "chain.id", c.SrcChainID, "client.id", conn.ClientID, "err", err)
		return Deny, err
	}
	return perm, nil
}

// ControlChanObject decides whether a Channel Object may be relayed,
// by resolving the connection (and thus client) it is bound to. The
// channel is hosted on the object's src chain (src_port_id/channel_id
// name ids that live there, per invariant 3).
//
// chain.ChannelEnd carries no connection hops, so this queries the
// channel end only for existence: a channel that exists is allowed.
// No client state behind the channel's connection is checked.
func (p *Policy) ControlChanObject(ctx context.Context, c object.Channel) (Permission, error) {
	handle, err := p.registry.GetOrSpawn(c.SrcChainID)
	if err != nil {
		return Deny, err
	}
	if _, err := handle.ChannelEnd(ctx, c.SrcPortID, c.ChannelID); err != nil {
		p.log.Warn("channel lookup failed", "chain.id", c.SrcChainID, "channel.id", c.ChannelID, "err", err)
		return Deny, err
	}
	return Allow, nil
}

// ControlPacketObject decides whether a Packet Object may be relayed.
// Delegates to ControlChanObject over the packet's channel attributes.
func (p *Policy) ControlPacketObject(ctx context.Context, c object.Packet) (Permission, error) {
	return p.ControlChanObject(ctx, object.Channel{
		DstChainID: c.DstChainID,
		SrcChainID: c.SrcChainID,
		SrcPortID:  c.SrcPortID,
		ChannelID:  c.SrcChannelID,
	})
}

// ControlObject dispatches to the control_*_object method matching
// o's Kind.
func (p *Policy) ControlObject(ctx context.Context, o object.Object) (Permission, error) {
	switch o.Kind {
	case object.KindClient:
		c, _ := o.AsClient()
		return p.ControlClientObject(ctx, c)
	case object.KindConnection:
		c, _ := o.AsConnection()
		return p.ControlConnObject(ctx, c)
	case object.KindChannel:
		c, _ := o.AsChannel()
		return p.ControlChanObject(ctx, c)
	case object.KindPacket:
		c, _ := o.AsPacket()
		return p.ControlPacketObject(ctx, c)
	default:
		return Deny, fmt.Errorf("filter: unknown object kind %v", o.Kind)
	}
}
