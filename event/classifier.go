package event

import (
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/internal/logging"
	"github.com/oasislabs/relayer/object"
)

// CollectedEvents is the per-batch classification result: at most one
// NewBlock, plus every event bucketed under the Object it routes to.
type CollectedEvents struct {
	Height   ibc.Height
	ChainID  ibc.ChainID
	NewBlock *IbcEvent
	PerObject map[object.Object][]IbcEvent
}

// HasNewBlock reports whether this batch carried a NewBlock event.
func (c CollectedEvents) HasNewBlock() bool { return c.NewBlock != nil }

func newCollectedEvents(chainID ibc.ChainID, height ibc.Height) CollectedEvents {
	return CollectedEvents{
		ChainID:   chainID,
		Height:    height,
		PerObject: make(map[object.Object][]IbcEvent),
	}
}

func (c *CollectedEvents) add(o object.Object, e IbcEvent) {
	c.PerObject[o] = append(c.PerObject[o], e)
}

// Classifier implements collect_events: it turns one chain's event
// Batch into CollectedEvents. HasWorker lets rule 2 (UpdateClient) ask
// the WorkerMap whether an update is meaningful, without the
// classifier importing the worker package directly.
type Classifier struct {
	HandshakeEnabled bool
	HasWorker        func(object.Object) bool

	log *logging.Logger
}

// NewClassifier constructs a Classifier. hasWorker may be nil, in
// which case UpdateClient events are always dropped (no worker ever
// exists to receive them) — callers normally wire it to
// WorkerMap.Contains.
func NewClassifier(handshakeEnabled bool, hasWorker func(object.Object) bool) *Classifier {
	if hasWorker == nil {
		hasWorker = func(object.Object) bool { return false }
	}
	return &Classifier{
		HandshakeEnabled: handshakeEnabled,
		HasWorker:        hasWorker,
		log:              logging.GetLogger("event"),
	}
}

// CollectEvents applies the classifier's rule table to every event in
// batch, in Batch order, stopping at the first matching rule per
// event. Malformed events are dropped silently (ClassificationError).
func (c *Classifier) CollectEvents(srcChain ibc.ChainID, batch Batch) CollectedEvents {
	collected := newCollectedEvents(batch.ChainID, batch.Height)

	for _, e := range batch.Events {
		if err := e.Validate(); err != nil {
			c.log.Debug("dropping malformed event", "chain.id", srcChain, "type", e.Type, "err", err)
			continue
		}
		c.classifyOne(srcChain, e, &collected)
	}
	return collected
}

func (c *Classifier) classifyOne(srcChain ibc.ChainID, e IbcEvent, collected *CollectedEvents) {
	switch e.Type {
	case TypeNewBlock:
		// Rule 1: recorded once; never added to per_object.
		ev := e
		collected.NewBlock = &ev

	case TypeUpdateClient:
		// Rule 2: noise unless a worker for the client already exists.
		obj := object.NewClient(object.Client{
			SrcChainID: srcChain,
			DstChainID: e.Attrs.CounterpartyChainID,
			ClientID:   e.Attrs.ClientID,
		})
		if c.HasWorker(obj) {
			collected.add(obj, e)
		}

	case TypeOpenInitConnection, TypeOpenTryConnection:
		// Rule 3: handshake-gated connection classification.
		if !c.HandshakeEnabled {
			return
		}
		obj := object.NewConnection(object.Connection{
			SrcChainID:   srcChain,
			DstChainID:   e.Attrs.CounterpartyChainID,
			ConnectionID: e.Attrs.ConnectionID,
		})
		collected.add(obj, e)

	case TypeOpenAckConnection:
		// Rule 4: same gating as OpenInit/OpenTry (see §9 open question:
		// OpenConfirmConnection is intentionally left unobserved).
		if !c.HandshakeEnabled {
			return
		}
		obj := object.NewConnection(object.Connection{
			SrcChainID:   srcChain,
			DstChainID:   e.Attrs.CounterpartyChainID,
			ConnectionID: e.Attrs.ConnectionID,
		})
		collected.add(obj, e)

	case TypeOpenInitChannel, TypeOpenTryChannel:
		// Rule 5: handshake-gated channel classification.
		if !c.HandshakeEnabled {
			return
		}
		obj := object.NewChannel(object.Channel{
			SrcChainID: srcChain,
			DstChainID: e.Attrs.CounterpartyChainID,
			SrcPortID:  e.Attrs.PortID,
			ChannelID:  e.Attrs.ChannelID,
		})
		collected.add(obj, e)

	case TypeOpenAckChannel:
		// Rule 6: three routings from one event — Client and Packet
		// unconditionally, Channel only if handshake is enabled.
		clientObj := object.NewClient(object.Client{
			SrcChainID: srcChain,
			DstChainID: e.Attrs.CounterpartyChainID,
			ClientID:   e.Attrs.ClientID,
		})
		collected.add(clientObj, e)

		packetObj := object.NewPacket(object.Packet{
			SrcChainID:   srcChain,
			DstChainID:   e.Attrs.CounterpartyChainID,
			SrcPortID:    e.Attrs.PortID,
			SrcChannelID: e.Attrs.ChannelID,
		})
		collected.add(packetObj, e)

		if c.HandshakeEnabled {
			channelObj := object.NewChannel(object.Channel{
				SrcChainID: srcChain,
				DstChainID: e.Attrs.CounterpartyChainID,
				SrcPortID:  e.Attrs.PortID,
				ChannelID:  e.Attrs.ChannelID,
			})
			collected.add(channelObj, e)
		}

	case TypeOpenConfirmChannel:
		// Rule 7: Client and Packet only; no Channel routing, the
		// handshake concludes on the source side.
		clientObj := object.NewClient(object.Client{
			SrcChainID: srcChain,
			DstChainID: e.Attrs.CounterpartyChainID,
			ClientID:   e.Attrs.ClientID,
		})
		collected.add(clientObj, e)

		packetObj := object.NewPacket(object.Packet{
			SrcChainID:   srcChain,
			DstChainID:   e.Attrs.CounterpartyChainID,
			SrcPortID:    e.Attrs.PortID,
			SrcChannelID: e.Attrs.ChannelID,
		})
		collected.add(packetObj, e)

	case TypeSendPacket, TypeTimeoutPacket, TypeWriteAcknowledgement, TypeCloseInitChannel:
		// Rule 8: packet lifecycle events route to a Packet object.
		obj := object.NewPacket(object.Packet{
			DstChainID:   e.Attrs.CounterpartyChainID,
			SrcChainID:   srcChain,
			SrcPortID:    e.Attrs.PortID,
			SrcChannelID: e.Attrs.ChannelID,
		})
		collected.add(obj, e)

	default:
		// Rule 9: everything else is ignored.
	}
}
