// Package config models the supervisor's configuration: global
// switches plus one entry per chain it relays for. Config is shared,
// mutable state — many readers, one writer (the supervisor, while
// handling a command) — protected by a single RWMutex whose write
// half is held only across the chain list mutation itself, never across I/O
// or channel operations.
package config

import (
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/oasislabs/relayer/ibc"
)

// GlobalConfig holds the switches that gate classifier and filter
// behavior supervisor-wide.
type GlobalConfig struct {
	// Filter gates the channel allow-list and client-state policy in
	// relay_on_object. When false, every object is allowed.
	Filter bool `yaml:"filter"`

	// HandshakeEnabled gates whether connection/channel handshake
	// events are classified to routable Objects at all.
	HandshakeEnabled bool `yaml:"handshake_enabled"`

	// ClientMinTrustingPeriod is the lower bound FilterPolicy enforces
	// on a dependency client's trusting period, in seconds.
	ClientMinTrustingPeriod int64 `yaml:"client_min_trusting_period"`
}

// ChannelFilter names one allowed (port, channel) pair on a chain.
type ChannelFilter struct {
	PortID    ibc.PortID    `yaml:"port_id"`
	ChannelID ibc.ChannelID `yaml:"channel_id"`
}

// ChainConfig is everything the Registry needs to spawn a handle for
// one chain, plus that chain's packet filter allow-list.
type ChainConfig struct {
	ID ibc.ChainID `yaml:"id"`

	// RPCAddr, the only chain-runtime-specific field kept here: actual
	// dialing is the chain-runtime collaborator's responsibility (see
	// §6); Config only carries what a Spawner needs to find it.
	RPCAddr string `yaml:"rpc_addr"`

	// AllowedChannels is consulted by packets_on_channel_allowed when
	// the global channel filter is enabled. An empty list means no
	// packet on this chain passes the channel filter.
	AllowedChannels []ChannelFilter `yaml:"allowed_channels"`
}

// Config is the full supervisor configuration.
type Config struct {
	mu     sync.RWMutex
	global GlobalConfig
	chains []ChainConfig
}

// New constructs a Config from its initial global settings and chain
// list.
func New(global GlobalConfig, chains []ChainConfig) *Config {
	return &Config{global: global, chains: append([]ChainConfig(nil), chains...)}
}

// Load reads a YAML config file from path. Parsing only; it does not
// validate that referenced chains are reachable.
func Load(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: reading file")
	}

	var doc struct {
		Global GlobalConfig  `yaml:"global"`
		Chains []ChainConfig `yaml:"chains"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "config: parsing yaml")
	}

	return New(doc.Global, doc.Chains), nil
}

// Global returns a copy of the current global settings.
func (c *Config) Global() GlobalConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global
}

// HasChain reports whether id is currently configured.
func (c *Config) HasChain(id ibc.ChainID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cc := range c.chains {
		if cc.ID == id {
			return true
		}
	}
	return false
}

// ChainConfig returns the configuration for id, if present.
func (c *Config) ChainConfig(id ibc.ChainID) (ChainConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cc := range c.chains {
		if cc.ID == id {
			return cc, true
		}
	}
	return ChainConfig{}, false
}

// ChainIDs returns every currently configured chain id.
func (c *Config) ChainIDs() []ibc.ChainID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]ibc.ChainID, len(c.chains))
	for i, cc := range c.chains {
		ids[i] = cc.ID
	}
	return ids
}

// PacketsOnChannelAllowed reports whether packets on (port, channel)
// hosted on chain are allowed by that chain's allow-list. Unknown
// chains allow nothing.
func (c *Config) PacketsOnChannelAllowed(chainID ibc.ChainID, port ibc.PortID, channel ibc.ChannelID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cc := range c.chains {
		if cc.ID != chainID {
			continue
		}
		for _, af := range cc.AllowedChannels {
			if af.PortID == port && af.ChannelID == channel {
				return true
			}
		}
		return false
	}
	return false
}

// AddChain appends cc to the chain list. No-op (the caller should
// check HasChain first) is not enforced here; Add semantics live in
// the supervisor's command handler.
func (c *Config) AddChain(cc ChainConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chains = append(c.chains, cc)
}

// RemoveChain drops the entry for id, if present.
func (c *Config) RemoveChain(id ibc.ChainID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cc := range c.chains {
		if cc.ID == id {
			c.chains = append(c.chains[:i], c.chains[i+1:]...)
			return
		}
	}
}
