// Package chain defines the contract the supervisor expects from a
// chain runtime collaborator (§6 of the specification: RPC, signing
// and light-client verification are out of scope here) and ships a
// Mock implementation suitable for tests and local development.
package chain

import (
	"context"
	"fmt"

	"github.com/oasislabs/relayer/event"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/internal/pubsub"
)

// ClientState is the subset of light-client state FilterPolicy needs
// to decide whether an object depending on a client may be relayed.
type ClientState struct {
	ClientID        ibc.ClientID
	ChainID         ibc.ChainID
	TrustingPeriod  int64 // seconds
	Expired         bool
}

// ConnectionEnd is the subset of connection state FilterPolicy or a
// worker body might need.
type ConnectionEnd struct {
	ConnectionID ibc.ConnectionID
	ClientID     ibc.ClientID
	State        string
}

// ChannelEnd is the subset of channel state FilterPolicy or a worker
// body might need.
type ChannelEnd struct {
	PortID    ibc.PortID
	ChannelID ibc.ChannelID
	State     string
}

// Handle is the chain-runtime collaborator contract: everything the
// supervisor and FilterPolicy need from a live chain, independent of
// what blockchain it actually talks to. Handles are cheap to copy;
// every copy shares the same underlying runtime and the last one
// shut down terminates it.
type Handle interface {
	// ID returns the chain identifier this handle was spawned for.
	ID() ibc.ChainID

	// Subscribe returns a Subscription delivering this chain's event
	// batches in non-decreasing height order.
	Subscribe(ctx context.Context) (*pubsub.Subscription, error)

	// ClientState looks up the state of a light client hosted on this
	// chain.
	ClientState(ctx context.Context, client ibc.ClientID) (ClientState, error)

	// ConnectionEnd looks up a connection hosted on this chain.
	ConnectionEnd(ctx context.Context, conn ibc.ConnectionID) (ConnectionEnd, error)

	// ChannelEnd looks up a channel hosted on this chain.
	ChannelEnd(ctx context.Context, port ibc.PortID, channel ibc.ChannelID) (ChannelEnd, error)

	// Shutdown tears down this handle's reference to the underlying
	// runtime. Safe to call more than once.
	Shutdown()
}

// ErrUnknownClient is returned by a Handle's ClientState when asked
// about a client it has no state for.
type ErrUnknownClient struct{ ClientID ibc.ClientID }

func (e *ErrUnknownClient) Error() string {
	return fmt.Sprintf("chain: unknown client %q", e.ClientID)
}

// ErrUnknownConnection is returned by a Handle's ConnectionEnd when
// asked about a connection it has no state for.
type ErrUnknownConnection struct{ ConnectionID ibc.ConnectionID }

func (e *ErrUnknownConnection) Error() string {
	return fmt.Sprintf("chain: unknown connection %q", e.ConnectionID)
}

// ErrUnknownChannel is returned by a Handle's ChannelEnd when asked
// about a channel it has no state for.
type ErrUnknownChannel struct {
	PortID    ibc.PortID
	ChannelID ibc.ChannelID
}

func (e *ErrUnknownChannel) Error() string {
	return fmt.Sprintf("chain: unknown channel %s/%s", e.PortID, e.ChannelID)
}

// EventSource lets a chain-runtime driver publish batches to every
// current Subscription. A Mock owns one directly; a real runtime
// would drive the same Broker from its own RPC subscription loop.
type EventSource interface {
	Publish(batch event.Batch)
}
