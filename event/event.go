// Package event turns raw chain events into the Object routing keys
// the supervisor dispatches on. It knows nothing about workers or
// chains beyond the identifiers embedded in events; it is a pure
// classifier.
package event

import "github.com/oasislabs/relayer/ibc"

// Type discriminates the IBC event vocabulary the classifier
// recognizes. Events outside this set still appear in a Batch but the
// classifier's default arm ignores them.
type Type int

// The event types collect_events pattern-matches on, in the same
// order as the classifier's rule table.
const (
	TypeNewBlock Type = iota
	TypeUpdateClient
	TypeOpenInitConnection
	TypeOpenTryConnection
	TypeOpenAckConnection
	TypeOpenConfirmConnection
	TypeOpenInitChannel
	TypeOpenTryChannel
	TypeOpenAckChannel
	TypeOpenConfirmChannel
	TypeSendPacket
	TypeTimeoutPacket
	TypeWriteAcknowledgement
	TypeCloseInitChannel
	TypeOther
)

// Attributes carries the union of fields any recognized event type
// might populate. The classifier reads only the fields relevant to
// the event's Type; a malformed or missing required field is reported
// by Validate and causes the event to be dropped.
type Attributes struct {
	ClientID     ibc.ClientID
	ConnectionID ibc.ConnectionID
	ChannelID    ibc.ChannelID
	PortID       ibc.PortID
	CounterpartyChainID ibc.ChainID
	Sequence     uint64
}

// IbcEvent is one event within a Batch, as emitted by a chain runtime
// subscription.
type IbcEvent struct {
	Type  Type
	Attrs Attributes
}

// Validate reports whether Attrs carries the fields e.Type requires.
// Classification treats a validation failure as ClassificationError:
// the event is dropped and processing continues.
func (e IbcEvent) Validate() error {
	switch e.Type {
	case TypeNewBlock, TypeOther:
		return nil
	case TypeUpdateClient:
		if e.Attrs.ClientID == "" {
			return errMissingAttr("client_id")
		}
	case TypeOpenInitConnection, TypeOpenTryConnection, TypeOpenAckConnection, TypeOpenConfirmConnection:
		if e.Attrs.ConnectionID == "" || e.Attrs.CounterpartyChainID == "" {
			return errMissingAttr("connection_id/counterparty_chain_id")
		}
	case TypeOpenInitChannel, TypeOpenTryChannel, TypeOpenAckChannel, TypeOpenConfirmChannel, TypeCloseInitChannel:
		if e.Attrs.ChannelID == "" || e.Attrs.PortID == "" {
			return errMissingAttr("channel_id/port_id")
		}
	case TypeSendPacket, TypeTimeoutPacket, TypeWriteAcknowledgement:
		if e.Attrs.ChannelID == "" || e.Attrs.PortID == "" {
			return errMissingAttr("channel_id/port_id")
		}
	}
	return nil
}

type classificationError struct{ attr string }

func (e *classificationError) Error() string { return "event: missing attribute " + e.attr }

func errMissingAttr(attr string) error { return &classificationError{attr: attr} }

// Batch is the unit a chain's subscription delivers: every event
// observed at one height on one chain.
type Batch struct {
	ChainID ibc.ChainID
	Height  ibc.Height
	Events  []IbcEvent
}
