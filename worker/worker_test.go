package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/object"
)

func testObject() object.Object {
	return object.NewPacket(object.Packet{
		DstChainID:   ibc.ChainID("chainB"),
		SrcChainID:   ibc.ChainID("chainA"),
		SrcPortID:    ibc.PortID("transfer"),
		SrcChannelID: ibc.ChannelID("channel-0"),
	})
}

func TestGetOrSpawnIdempotent(t *testing.T) {
	status := make(chan StoppedMsg, 8)
	m := NewMap(DefaultBody(nil), status)

	src := chain.NewMock(ibc.ChainID("chainA"))
	dst := chain.NewMock(ibc.ChainID("chainB"))
	obj := testObject()

	w1 := m.GetOrSpawn(obj, src, dst)
	w2 := m.GetOrSpawn(obj, src, dst)
	require.Equal(t, w1.ID, w2.ID)
	require.Equal(t, 1, len(m.Objects()))
}

func TestRemoveStoppedRace(t *testing.T) {
	status := make(chan StoppedMsg, 8)
	m := NewMap(DefaultBody(nil), status)

	src := chain.NewMock(ibc.ChainID("chainA"))
	dst := chain.NewMock(ibc.ChainID("chainB"))
	obj := testObject()

	w1 := m.GetOrSpawn(obj, src, dst)

	// Simulate the stored worker having been replaced by a newer
	// generation before w1's stale Stopped arrives: drop w1's mapping
	// and close its inbox, as shutdown_workers_for_chain does.
	Shutdown(m.RemoveAllForChain(ibc.ChainID("chainA")))
	time.Sleep(10 * time.Millisecond)

	w2 := m.GetOrSpawn(obj, src, dst)
	require.NotEqual(t, w1.ID, w2.ID)

	// Stale Stopped for w1 must not evict w2.
	m.RemoveStopped(w1.ID, obj)
	require.True(t, m.Contains(obj))

	m.RemoveStopped(w2.ID, obj)
	require.False(t, m.Contains(obj))
}

func TestWorkersForChainAndToNotify(t *testing.T) {
	status := make(chan StoppedMsg, 8)
	m := NewMap(DefaultBody(nil), status)

	src := chain.NewMock(ibc.ChainID("chainA"))
	dst := chain.NewMock(ibc.ChainID("chainB"))
	obj := testObject()
	m.GetOrSpawn(obj, src, dst)

	require.Len(t, m.WorkersForChain(ibc.ChainID("chainA")), 1)
	require.Len(t, m.WorkersForChain(ibc.ChainID("chainB")), 1)
	require.Len(t, m.WorkersForChain(ibc.ChainID("chainC")), 0)

	require.Len(t, m.ToNotify(ibc.ChainID("chainA")), 1)
	require.Len(t, m.ToNotify(ibc.ChainID("chainB")), 0)
}
