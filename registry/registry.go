// Package registry owns the chain runtime handles the supervisor
// dispatches events and queries through. It is the single authority
// on which chains are currently live.
package registry

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/config"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/internal/logging"
)

// ErrUnknownChain is returned by Spawn when the requested id is not
// present in the live Config.
type ErrUnknownChain struct{ ChainID ibc.ChainID }

func (e *ErrUnknownChain) Error() string {
	return fmt.Sprintf("registry: chain %q is not configured", e.ChainID)
}

// Spawner constructs a chain.Handle for a configured chain. Production
// wiring supplies a function that dials the real chain runtime; tests
// and local development use chain.NewMock.
type Spawner func(cfg config.ChainConfig) (chain.Handle, error)

// Registry is the authoritative owner of chain.Handles: map
// ChainID -> Handle plus a count. Not safe on its own for concurrent
// use from multiple goroutines other than the supervisor's reactor
// thread and read-only accessors; the mutex is held only to protect
// the map against the rare cases (DumpState, tests) that read it from
// elsewhere.
type Registry struct {
	mu      sync.RWMutex
	cfg     *config.Config
	spawn   Spawner
	handles map[ibc.ChainID]chain.Handle

	log *logging.Logger
}

// New constructs an empty Registry over cfg, using spawner to bring
// up chain handles on demand.
func New(cfg *config.Config, spawner Spawner) *Registry {
	return &Registry{
		cfg:     cfg,
		spawn:   spawner,
		handles: make(map[ibc.ChainID]chain.Handle),
		log:     logging.GetLogger("registry"),
	}
}

// GetOrSpawn returns the existing handle for id, spawning one first
// if none exists yet. Idempotent: a second call never spawns twice.
func (r *Registry) GetOrSpawn(id ibc.ChainID) (chain.Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	if err := r.Spawn(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[id], nil
}

// Spawn brings up a handle for id if the id is known to Config and no
// handle exists yet. Fails, leaving the registry unchanged, if the id
// is unknown or runtime initialization errors.
func (r *Registry) Spawn(id ibc.ChainID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[id]; ok {
		return nil
	}

	chainCfg, ok := r.cfg.ChainConfig(id)
	if !ok {
		return &ErrUnknownChain{ChainID: id}
	}

	h, err := r.spawn(chainCfg)
	if err != nil {
		return errors.Wrapf(err, "registry: spawning chain %q", id)
	}

	r.handles[id] = h
	r.log.Info("spawned chain handle", "chain.id", id)
	return nil
}

// Shutdown tears down and forgets the handle for id. Idempotent and
// tolerant of unknown ids.
func (r *Registry) Shutdown(id ibc.ChainID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[id]
	if !ok {
		return
	}
	h.Shutdown()
	delete(r.handles, id)
	r.log.Info("shut down chain handle", "chain.id", id)
}

// Chains returns every currently live chain id.
func (r *Registry) Chains() []ibc.ChainID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ibc.ChainID, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	return ids
}

// Size returns the number of currently live chain handles.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
