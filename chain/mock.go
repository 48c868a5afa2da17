package chain

import (
	"context"
	"sync"

	"github.com/oasislabs/relayer/event"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/internal/pubsub"
)

// Mock is an in-memory Handle for tests and local development. It is
// not a chain runtime: client/connection/channel state is whatever a
// test injects via SetClientState etc., and batches are whatever is
// fed through Publish. Production chain drivers (RPC, light-client
// verification) are out of scope for this repository; see §6.
type Mock struct {
	id ibc.ChainID

	mu          sync.RWMutex
	clients     map[ibc.ClientID]ClientState
	connections map[ibc.ConnectionID]ConnectionEnd
	channels    map[channelKey]ChannelEnd

	broker *pubsub.Broker
}

type channelKey struct {
	port    ibc.PortID
	channel ibc.ChannelID
}

// NewMock constructs a Mock handle for the given chain id.
func NewMock(id ibc.ChainID) *Mock {
	return &Mock{
		id:          id,
		clients:     make(map[ibc.ClientID]ClientState),
		connections: make(map[ibc.ConnectionID]ConnectionEnd),
		channels:    make(map[channelKey]ChannelEnd),
		broker:      pubsub.NewBroker(false),
	}
}

// ID implements Handle.
func (m *Mock) ID() ibc.ChainID { return m.id }

// Subscribe implements Handle. The returned Subscription's Unwrap
// must be called with a `chan event.Batch` to receive published
// batches.
func (m *Mock) Subscribe(_ context.Context) (*pubsub.Subscription, error) {
	return m.broker.Subscribe(), nil
}

// Publish implements EventSource: it broadcasts batch to every live
// subscription, simulating a chain runtime's own event feed.
func (m *Mock) Publish(batch event.Batch) {
	m.broker.Broadcast(batch)
}

// SetClientState injects or overwrites a client's state, as a test
// fixture or dev-mode configuration would.
func (m *Mock) SetClientState(cs ClientState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[cs.ClientID] = cs
}

// SetConnectionEnd injects or overwrites a connection's state.
func (m *Mock) SetConnectionEnd(ce ConnectionEnd) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[ce.ConnectionID] = ce
}

// SetChannelEnd injects or overwrites a channel's state.
func (m *Mock) SetChannelEnd(port ibc.PortID, channel ibc.ChannelID, ce ChannelEnd) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channelKey{port: port, channel: channel}] = ce
}

// ClientState implements Handle.
func (m *Mock) ClientState(_ context.Context, client ibc.ClientID) (ClientState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.clients[client]
	if !ok {
		return ClientState{}, &ErrUnknownClient{ClientID: client}
	}
	return cs, nil
}

// ConnectionEnd implements Handle.
func (m *Mock) ConnectionEnd(_ context.Context, conn ibc.ConnectionID) (ConnectionEnd, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ce, ok := m.connections[conn]
	if !ok {
		return ConnectionEnd{}, &ErrUnknownConnection{ConnectionID: conn}
	}
	return ce, nil
}

// ChannelEnd implements Handle.
func (m *Mock) ChannelEnd(_ context.Context, port ibc.PortID, channel ibc.ChannelID) (ChannelEnd, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ce, ok := m.channels[channelKey{port: port, channel: channel}]
	if !ok {
		return ChannelEnd{}, &ErrUnknownChannel{PortID: port, ChannelID: channel}
	}
	return ce, nil
}

// Shutdown implements Handle. Mock holds no external resources.
func (m *Mock) Shutdown() {}
