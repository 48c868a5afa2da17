package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/config"
	"github.com/oasislabs/relayer/ibc"
)

func TestGetOrSpawnIdempotent(t *testing.T) {
	cfg := config.New(config.GlobalConfig{}, []config.ChainConfig{{ID: "A"}})
	spawnCount := 0
	reg := New(cfg, func(cc config.ChainConfig) (chain.Handle, error) {
		spawnCount++
		return chain.NewMock(cc.ID), nil
	})

	h1, err := reg.GetOrSpawn("A")
	require.NoError(t, err)
	h2, err := reg.GetOrSpawn("A")
	require.NoError(t, err)

	require.True(t, h1 == h2)
	require.Equal(t, 1, spawnCount)
	require.Equal(t, 1, reg.Size())
}

func TestSpawnUnknownChainFails(t *testing.T) {
	cfg := config.New(config.GlobalConfig{}, nil)
	reg := New(cfg, func(cc config.ChainConfig) (chain.Handle, error) {
		return chain.NewMock(cc.ID), nil
	})

	err := reg.Spawn("A")
	require.Error(t, err)
	require.Equal(t, 0, reg.Size())
}

func TestShutdownIdempotentAndTolerant(t *testing.T) {
	cfg := config.New(config.GlobalConfig{}, []config.ChainConfig{{ID: "A"}})
	reg := New(cfg, func(cc config.ChainConfig) (chain.Handle, error) {
		return chain.NewMock(cc.ID), nil
	})

	require.NoError(t, reg.Spawn("A"))
	reg.Shutdown("A")
	require.Equal(t, 0, reg.Size())

	// Idempotent, tolerates unknown ids.
	reg.Shutdown("A")
	reg.Shutdown(ibc.ChainID("unknown"))
}
