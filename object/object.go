// Package object defines the routing key every worker in the
// supervisor is keyed by: a small, closed set of IBC entities a worker
// relays on behalf of. An Object is a tagged union over four
// variants — Client, Connection, Channel and Packet — carrying just
// enough identity to decide where relayed data must flow.
package object

import (
	"fmt"

	"github.com/oasislabs/relayer/ibc"
)

// Kind discriminates the Object variants.
type Kind int

// The four Object variants, matching supervisor.rs's Object enum.
const (
	KindClient Kind = iota
	KindConnection
	KindChannel
	KindPacket
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindConnection:
		return "connection"
	case KindChannel:
		return "channel"
	case KindPacket:
		return "packet"
	default:
		return "unknown"
	}
}

// Client identifies a light client to be kept up to date. Per
// invariant 3 (every Object's src_chain_id is the chain it was
// observed on), the client itself lives on SrcChainID and tracks
// DstChainID's state.
type Client struct {
	DstChainID ibc.ChainID
	SrcChainID ibc.ChainID
	ClientID   ibc.ClientID
}

// Connection identifies one end of a connection handshake in progress.
type Connection struct {
	DstChainID   ibc.ChainID
	SrcChainID   ibc.ChainID
	ConnectionID ibc.ConnectionID
}

// Channel identifies one end of a channel handshake in progress.
type Channel struct {
	DstChainID ibc.ChainID
	SrcChainID ibc.ChainID
	SrcPortID  ibc.PortID
	ChannelID  ibc.ChannelID
}

// Packet identifies a channel whose packet traffic is being relayed.
type Packet struct {
	DstChainID ibc.ChainID
	SrcChainID ibc.ChainID
	SrcPortID  ibc.PortID
	SrcChannelID ibc.ChannelID
}

// Object is the routing key a Worker is spawned for. Exactly one of
// the four embedded fields is meaningful, selected by Kind; callers
// switch on Kind rather than type-asserting.
type Object struct {
	Kind Kind

	client     Client
	connection Connection
	channel    Channel
	packet     Packet
}

// NewClient constructs a Client-kind Object.
func NewClient(c Client) Object { return Object{Kind: KindClient, client: c} }

// NewConnection constructs a Connection-kind Object.
func NewConnection(c Connection) Object { return Object{Kind: KindConnection, connection: c} }

// NewChannel constructs a Channel-kind Object.
func NewChannel(c Channel) Object { return Object{Kind: KindChannel, channel: c} }

// NewPacket constructs a Packet-kind Object.
func NewPacket(p Packet) Object { return Object{Kind: KindPacket, packet: p} }

// AsClient returns the Client payload and true if o is Client-kind.
func (o Object) AsClient() (Client, bool) { return o.client, o.Kind == KindClient }

// AsConnection returns the Connection payload and true if o is Connection-kind.
func (o Object) AsConnection() (Connection, bool) { return o.connection, o.Kind == KindConnection }

// AsChannel returns the Channel payload and true if o is Channel-kind.
func (o Object) AsChannel() (Channel, bool) { return o.channel, o.Kind == KindChannel }

// AsPacket returns the Packet payload and true if o is Packet-kind.
func (o Object) AsPacket() (Packet, bool) { return o.packet, o.Kind == KindPacket }

// SrcChainID returns the chain the relayed data originates from.
func (o Object) SrcChainID() ibc.ChainID {
	switch o.Kind {
	case KindClient:
		return o.client.SrcChainID
	case KindConnection:
		return o.connection.SrcChainID
	case KindChannel:
		return o.channel.SrcChainID
	case KindPacket:
		return o.packet.SrcChainID
	default:
		return ""
	}
}

// DstChainID returns the chain the relayed data is delivered to.
func (o Object) DstChainID() ibc.ChainID {
	switch o.Kind {
	case KindClient:
		return o.client.DstChainID
	case KindConnection:
		return o.connection.DstChainID
	case KindChannel:
		return o.channel.DstChainID
	case KindPacket:
		return o.packet.DstChainID
	default:
		return ""
	}
}

// Equal reports structural equality, used by WorkerMap to dedupe
// workers spawned for the same Object.
func (o Object) Equal(other Object) bool {
	if o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case KindClient:
		return o.client == other.client
	case KindConnection:
		return o.connection == other.connection
	case KindChannel:
		return o.channel == other.channel
	case KindPacket:
		return o.packet == other.packet
	default:
		return true
	}
}

// String returns a short identity suitable for log lines.
func (o Object) String() string {
	switch o.Kind {
	case KindClient:
		return fmt.Sprintf("client{dst=%s src=%s client=%s}", o.client.DstChainID, o.client.SrcChainID, o.client.ClientID)
	case KindConnection:
		return fmt.Sprintf("connection{dst=%s src=%s conn=%s}", o.connection.DstChainID, o.connection.SrcChainID, o.connection.ConnectionID)
	case KindChannel:
		return fmt.Sprintf("channel{dst=%s src=%s port=%s chan=%s}", o.channel.DstChainID, o.channel.SrcChainID, o.channel.SrcPortID, o.channel.ChannelID)
	case KindPacket:
		return fmt.Sprintf("packet{dst=%s src=%s port=%s chan=%s}", o.packet.DstChainID, o.packet.SrcChainID, o.packet.SrcPortID, o.packet.SrcChannelID)
	default:
		return "object{unknown}"
	}
}
