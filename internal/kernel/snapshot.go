package kernel

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Checkpoint is a complete, restorable snapshot of one simulation run,
// grounded on original_source's checkpoint.py field set: a config
// binding, a content hash for tamper/drift detection, and free-form
// provenance fields.
type Checkpoint struct {
	CheckpointID   string `json:"checkpoint_id"`
	SimulationID   string `json:"simulation_id"`
	ConfigHash     string `json:"config_hash"`
	StateHash      string `json:"state_hash"`
	Tick           Tick   `json:"tick"`
	Day            int64  `json:"day"`
	CheckpointType string `json:"checkpoint_type"` // "Manual" or "Automatic"
	Description    string `json:"description,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`

	State []byte `json:"state"`
}

// serializableState is the exact byte-for-byte content state_hash is
// computed over and LoadState restores from. Ordering (agents sorted by
// id, then transactions in the store's insertion order) is fixed so two
// independent runs that reach the same logical state always serialize
// identically.
type serializableState struct {
	CurrentTick  Tick                  `json:"current_tick"`
	CurrentDay   int64                 `json:"current_day"`
	TxSeq        int64                 `json:"tx_seq"`
	Agents       []serializableAgent   `json:"agents"`
	Transactions []*Transaction        `json:"transactions"`
	Costs        map[string]AgentCosts `json:"costs"`
	Queue2       []string              `json:"queue2"`
}

type serializableAgent struct {
	AgentID          string           `json:"agent_id"`
	Balance          Cents            `json:"balance"`
	PostedCollateral Cents            `json:"posted_collateral"`
	StateRegisters   map[string]int64 `json:"state_registers"`
	Queue1           []string         `json:"queue1"`
}

func (o *Orchestrator) buildSerializableState() serializableState {
	ids := o.sortedAgentIDs()
	agents := make([]serializableAgent, 0, len(ids))
	costs := make(map[string]AgentCosts, len(ids))
	for _, id := range ids {
		a := o.agents[id]
		agents = append(agents, serializableAgent{
			AgentID:          a.AgentID,
			Balance:          a.Balance,
			PostedCollateral: a.PostedCollateral,
			StateRegisters:   a.StateRegisters,
			Queue1:           append([]string(nil), a.Queue1...),
		})
		costs[id] = o.ledger.snapshot(id)
	}
	return serializableState{
		CurrentTick:  o.currentTick,
		CurrentDay:   o.currentDay,
		TxSeq:        o.txSeq,
		Agents:       agents,
		Transactions: o.store.all(),
		Costs:        costs,
		Queue2:       o.store.queue2Snapshot(),
	}
}

// SaveState produces a Checkpoint binding the current simulation state
// to this Orchestrator's config_hash. state_hash is computed over the
// exact serialized bytes, so any later LoadState can verify the
// checkpoint has not been altered independent of re-running anything.
func (o *Orchestrator) SaveState(checkpointType, description, createdBy string) (*Checkpoint, error) {
	state := o.buildSerializableState()
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("kernel: failed to serialize state: %w", err)
	}
	return &Checkpoint{
		CheckpointID:   uuid.NewString(),
		SimulationID:   o.simulationID,
		ConfigHash:     o.configHash,
		StateHash:      sha256Hex(raw),
		Tick:           o.currentTick,
		Day:            o.currentDay,
		CheckpointType: checkpointType,
		Description:    description,
		CreatedBy:      createdBy,
		State:          raw,
	}, nil
}

// LoadState restores an Orchestrator from a checkpoint previously
// produced by SaveState, against the given (freshly validated) config.
// A config_hash mismatch or a state_hash mismatch against the stored
// bytes are both fatal: the kernel refuses to silently resume against
// a configuration or a payload it cannot verify (spec §8).
func LoadState(cfg *Config, cp *Checkpoint) (*Orchestrator, error) {
	hash, err := ConfigHash(cfg)
	if err != nil {
		return nil, err
	}
	if hash != cp.ConfigHash {
		return nil, ErrConfigMismatch
	}
	if sha256Hex(cp.State) != cp.StateHash {
		return nil, ErrIntegrityError
	}

	var state serializableState
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrityError, err)
	}

	o, err := New(cfg)
	if err != nil {
		return nil, err
	}
	o.simulationID = cp.SimulationID
	o.journal.simulationID = cp.SimulationID
	o.configHash = hash
	o.currentTick = state.CurrentTick
	o.currentDay = state.CurrentDay
	o.txSeq = state.TxSeq

	for _, sa := range state.Agents {
		a, ok := o.agents[sa.AgentID]
		if !ok {
			return nil, fmt.Errorf("%w: checkpoint references unknown agent %q", ErrIntegrityError, sa.AgentID)
		}
		a.Balance = sa.Balance
		a.PostedCollateral = sa.PostedCollateral
		a.StateRegisters = sa.StateRegisters
		a.Queue1 = sa.Queue1
	}

	for _, tx := range state.Transactions {
		o.store.add(tx)
	}
	o.store.queue2 = append([]string(nil), state.Queue2...)

	for agentID, costs := range state.Costs {
		c := costs
		o.ledger.byAgent[agentID] = &c
	}

	return o, nil
}
