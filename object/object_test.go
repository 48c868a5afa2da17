package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasislabs/relayer/ibc"
)

func TestObjectEqual(t *testing.T) {
	a := NewPacket(Packet{
		DstChainID:   ibc.ChainID("chainA"),
		SrcChainID:   ibc.ChainID("chainB"),
		SrcPortID:    ibc.PortID("transfer"),
		SrcChannelID: ibc.ChannelID("channel-0"),
	})
	b := NewPacket(Packet{
		DstChainID:   ibc.ChainID("chainA"),
		SrcChainID:   ibc.ChainID("chainB"),
		SrcPortID:    ibc.PortID("transfer"),
		SrcChannelID: ibc.ChannelID("channel-0"),
	})
	c := NewPacket(Packet{
		DstChainID:   ibc.ChainID("chainA"),
		SrcChainID:   ibc.ChainID("chainB"),
		SrcPortID:    ibc.PortID("transfer"),
		SrcChannelID: ibc.ChannelID("channel-1"),
	})

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.Equal(t, ibc.ChainID("chainB"), a.SrcChainID())
	require.Equal(t, ibc.ChainID("chainA"), a.DstChainID())
}

func TestObjectKindMismatch(t *testing.T) {
	client := NewClient(Client{
		DstChainID: ibc.ChainID("chainA"),
		SrcChainID: ibc.ChainID("chainB"),
		ClientID:   ibc.ClientID("07-tendermint-0"),
	})
	conn := NewConnection(Connection{
		DstChainID:   ibc.ChainID("chainA"),
		SrcChainID:   ibc.ChainID("chainB"),
		ConnectionID: ibc.ConnectionID("connection-0"),
	})
	require.False(t, client.Equal(conn))

	_, ok := client.AsConnection()
	require.False(t, ok)
	c, ok := client.AsClient()
	require.True(t, ok)
	require.Equal(t, ibc.ClientID("07-tendermint-0"), c.ClientID)
}
