package supervisor

import (
	"context"

	"github.com/oasislabs/relayer/config"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/spawn"
)

// handleCmd dispatches cmd and returns the effect it had, per §4.7.
func (s *Supervisor) handleCmd(ctx context.Context, cmd Command) effect {
	switch cmd.kind {
	case cmdUpdateConfig:
		return s.handleConfigUpdate(ctx, cmd.update)
	case cmdDumpState:
		s.handleDumpState(cmd.reply)
		return effectNothing
	default:
		return effectNothing
	}
}

func (s *Supervisor) handleConfigUpdate(ctx context.Context, u ConfigUpdate) effect {
	switch u.Kind {
	case ConfigAdd:
		return s.addChain(ctx, u.Chain)
	case ConfigRemove:
		return s.removeChain(u.ID)
	case ConfigUpdateChain:
		removed := s.removeChain(u.Chain.ID)
		added := s.addChain(ctx, u.Chain)
		if removed == effectConfigChanged || added == effectConfigChanged {
			return effectConfigChanged
		}
		return effectNothing
	default:
		return effectNothing
	}
}

// addChain implements the Add handler: no-op if already configured,
// otherwise pushes into Config, spawns the chain, rolls the Config
// push back on spawn failure, and spawns workers for the chain on
// success.
func (s *Supervisor) addChain(ctx context.Context, cc config.ChainConfig) effect {
	if s.cfg.HasChain(cc.ID) {
		return effectNothing
	}

	s.cfg.AddChain(cc)
	if err := s.registry.Spawn(cc.ID); err != nil {
		s.log.Error("spawning chain failed, rolling back config", "chain.id", cc.ID, "err", err)
		s.cfg.RemoveChain(cc.ID)
		return effectNothing
	}

	sc := spawn.New(spawn.Reload, s.cfg, s.registry, s.policy, s.workers)
	sc.SpawnWorkersForChain(ctx, cc.ID)

	s.log.Info("chain added", "chain.id", cc.ID)
	return effectConfigChanged
}

// removeChain implements the Remove handler.
func (s *Supervisor) removeChain(id ibc.ChainID) effect {
	if !s.cfg.HasChain(id) {
		return effectNothing
	}

	s.cfg.RemoveChain(id)

	sc := spawn.New(spawn.Reload, s.cfg, s.registry, s.policy, s.workers)
	sc.ShutdownWorkersForChain(id)

	s.registry.Shutdown(id)
	s.policy.InvalidateChain(id)

	s.log.Info("chain removed", "chain.id", id)
	return effectConfigChanged
}

func (s *Supervisor) handleDumpState(reply chan SupervisorState) {
	if reply == nil {
		return
	}
	state := SupervisorState{
		Chains:  s.registry.Chains(),
		Workers: s.workers.Objects(),
	}
	select {
	case reply <- state:
	default:
	}
}
