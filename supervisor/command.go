package supervisor

import (
	"github.com/oasislabs/relayer/config"
	"github.com/oasislabs/relayer/ibc"
	"github.com/oasislabs/relayer/object"
)

// ConfigUpdateKind discriminates the three ways a command can edit
// the chain set.
type ConfigUpdateKind int

// The three ConfigUpdate variants.
const (
	ConfigAdd ConfigUpdateKind = iota
	ConfigRemove
	ConfigUpdateChain
)

// ConfigUpdate is the payload of an UpdateConfig command.
type ConfigUpdate struct {
	Kind  ConfigUpdateKind
	Chain config.ChainConfig // meaningful for Add/Update
	ID    ibc.ChainID         // meaningful for Remove
}

// Add constructs an Add ConfigUpdate.
func Add(cc config.ChainConfig) ConfigUpdate { return ConfigUpdate{Kind: ConfigAdd, Chain: cc} }

// Remove constructs a Remove ConfigUpdate.
func Remove(id ibc.ChainID) ConfigUpdate { return ConfigUpdate{Kind: ConfigRemove, ID: id} }

// Update constructs an Update ConfigUpdate (Remove then Add).
func Update(cc config.ChainConfig) ConfigUpdate {
	return ConfigUpdate{Kind: ConfigUpdateChain, Chain: cc}
}

// commandKind discriminates the Command variants.
type commandKind int

const (
	cmdUpdateConfig commandKind = iota
	cmdDumpState
)

// Command is the supervisor's live-reconfiguration and inspection
// interface. Senders use the constructors below; the receiving end is
// owned exclusively by the supervisor's reactor.
type Command struct {
	kind   commandKind
	update ConfigUpdate
	reply  chan SupervisorState
}

// UpdateConfigCmd constructs a Command applying update.
func UpdateConfigCmd(update ConfigUpdate) Command {
	return Command{kind: cmdUpdateConfig, update: update}
}

// DumpStateCmd constructs a Command requesting a state snapshot,
// delivered once, best-effort, on reply.
func DumpStateCmd(reply chan SupervisorState) Command {
	return Command{kind: cmdDumpState, reply: reply}
}

// SupervisorState is the DumpState snapshot.
type SupervisorState struct {
	Chains  []ibc.ChainID
	Workers []object.Object
}

// effect is the observable outcome of a command handler, used by the
// reactor to decide whether to rebuild its subscription list.
type effect int

const (
	effectNothing effect = iota
	effectConfigChanged
)
