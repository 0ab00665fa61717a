package kernel

import "encoding/json"

// EventType enumerates every event kind the kernel can emit (spec §3).
type EventType string

const (
	EventArrival                  EventType = "Arrival"
	EventPolicyDecision           EventType = "PolicyDecision"
	EventRtgsImmediateSettlement  EventType = "RtgsImmediateSettlement"
	EventQueue1Hold               EventType = "Queue1Hold"
	EventQueue2Submit             EventType = "Queue2Submit"
	EventQueue2LiquidityRelease   EventType = "Queue2LiquidityRelease"
	EventLsmBilateralOffset       EventType = "LsmBilateralOffset"
	EventLsmCycleSettlement       EventType = "LsmCycleSettlement"
	EventBankBudgetSet            EventType = "BankBudgetSet"
	EventCollateralPosted         EventType = "CollateralPosted"
	EventCollateralReleased       EventType = "CollateralReleased"
	EventCostAccrual              EventType = "CostAccrual"
	EventStateRegisterSet         EventType = "StateRegisterSet"
	EventDeadlinePenaltyCharged   EventType = "DeadlinePenaltyCharged"
	EventOverdue                  EventType = "Overdue"
	EventDrop                     EventType = "Drop"
	EventEndOfDay                 EventType = "EndOfDay"
)

// Event is one journal entry. Exactly one of the typed payload fields
// is populated, matching its Type (a tagged union, spec §9 design
// note, rather than a duck-typed event dict). MarshalJSON flattens the
// active payload into the envelope so the external wire contract is a
// single flat JSON object per event.
type Event struct {
	SimulationID string    `json:"simulation_id"`
	Tick         Tick      `json:"tick"`
	SeqInTick    int       `json:"seq_in_tick"`
	Type         EventType `json:"event_type"`

	Arrival                 *ArrivalPayload                 `json:"-"`
	PolicyDecision          *PolicyDecisionPayload          `json:"-"`
	RtgsImmediateSettlement *SettlementPayload               `json:"-"`
	Queue1Hold              *QueueHoldPayload                `json:"-"`
	Queue2Submit            *Queue2SubmitPayload             `json:"-"`
	Queue2LiquidityRelease  *SettlementPayload               `json:"-"`
	LsmBilateralOffset      *LsmBilateralPayload             `json:"-"`
	LsmCycleSettlement      *LsmCyclePayload                 `json:"-"`
	BankBudgetSet           *BankBudgetPayload                `json:"-"`
	CollateralPosted        *CollateralPayload                `json:"-"`
	CollateralReleased      *CollateralPayload                `json:"-"`
	CostAccrual             *CostAccrualPayload                `json:"-"`
	StateRegisterSet        *StateRegisterPayload              `json:"-"`
	DeadlinePenaltyCharged  *DeadlinePenaltyPayload             `json:"-"`
	Overdue                 *OverduePayload                     `json:"-"`
	Drop                    *DropPayload                        `json:"-"`
	EndOfDay                *EndOfDayPayload                    `json:"-"`
}

type ArrivalPayload struct {
	TxID       string `json:"tx_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Amount     Cents  `json:"amount"`
	DeadlineTick Tick `json:"deadline_tick"`
}

type PolicyDecisionPayload struct {
	AgentID  string `json:"agent_id"`
	TxID     string `json:"tx_id,omitempty"`
	TreeName string `json:"tree_name"`
	NodeID   string `json:"node_id"`
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
}

type SettlementPayload struct {
	TxID       string `json:"tx_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Amount     Cents  `json:"amount"`
}

type QueueHoldPayload struct {
	TxID    string `json:"tx_id"`
	AgentID string `json:"agent_id"`
}

type Queue2SubmitPayload struct {
	TxID                 string `json:"tx_id"`
	DeclaredRTGSPriority int    `json:"declared_rtgs_priority"`
}

type LsmBilateralPayload struct {
	AgentA      string   `json:"agent_a"`
	AgentB      string   `json:"agent_b"`
	NetSettled  Cents    `json:"net_settled"`
	TxIDsAToB   []string `json:"tx_ids_a_to_b"`
	TxIDsBToA   []string `json:"tx_ids_b_to_a"`
}

type LsmCyclePayload struct {
	AgentCycle []string `json:"agent_cycle"`
	TxIDs      []string `json:"tx_ids"`
}

type BankBudgetPayload struct {
	AgentID string `json:"agent_id"`
	MaxValue Cents `json:"max_value"`
}

type CollateralPayload struct {
	AgentID string `json:"agent_id"`
	Amount  Cents  `json:"amount"`
}

type CostAccrualPayload struct {
	AgentID  string       `json:"agent_id"`
	Category CostCategory `json:"category"`
	Amount   Cents        `json:"amount"`
}

type StateRegisterPayload struct {
	AgentID string `json:"agent_id"`
	Key     string `json:"key"`
	Value   int64  `json:"value"`
}

type DeadlinePenaltyPayload struct {
	TxID    string `json:"tx_id"`
	AgentID string `json:"agent_id"`
	Amount  Cents  `json:"amount"`
}

type OverduePayload struct {
	TxID string `json:"tx_id"`
}

type DropPayload struct {
	TxID   string `json:"tx_id"`
	Reason string `json:"reason"`
}

type EndOfDayPayload struct {
	Day              int64 `json:"day"`
	UnsettledCount   int64 `json:"unsettled_count"`
	PenaltiesCharged Cents `json:"penalties_charged"`
}

// payload returns the active payload, whichever field it lives in.
func (e *Event) payload() any {
	switch e.Type {
	case EventArrival:
		return e.Arrival
	case EventPolicyDecision:
		return e.PolicyDecision
	case EventRtgsImmediateSettlement:
		return e.RtgsImmediateSettlement
	case EventQueue1Hold:
		return e.Queue1Hold
	case EventQueue2Submit:
		return e.Queue2Submit
	case EventQueue2LiquidityRelease:
		return e.Queue2LiquidityRelease
	case EventLsmBilateralOffset:
		return e.LsmBilateralOffset
	case EventLsmCycleSettlement:
		return e.LsmCycleSettlement
	case EventBankBudgetSet:
		return e.BankBudgetSet
	case EventCollateralPosted:
		return e.CollateralPosted
	case EventCollateralReleased:
		return e.CollateralReleased
	case EventCostAccrual:
		return e.CostAccrual
	case EventStateRegisterSet:
		return e.StateRegisterSet
	case EventDeadlinePenaltyCharged:
		return e.DeadlinePenaltyCharged
	case EventOverdue:
		return e.Overdue
	case EventDrop:
		return e.Drop
	case EventEndOfDay:
		return e.EndOfDay
	default:
		return nil
	}
}

// MarshalJSON flattens the envelope and the active payload into one
// JSON object, the flat wire contract external consumers rely on.
func (e *Event) MarshalJSON() ([]byte, error) {
	envelope := map[string]any{
		"simulation_id": e.SimulationID,
		"tick":          e.Tick,
		"seq_in_tick":   e.SeqInTick,
		"event_type":    e.Type,
	}
	if p := e.payload(); p != nil {
		pb, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(pb, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			envelope[k] = v
		}
	}
	return json.Marshal(envelope)
}

// journal is the append-only event log for one simulation run.
type journal struct {
	simulationID string
	events       []*Event
	seqInTick    int
	tick         Tick
}

func newJournal(simulationID string) *journal {
	return &journal{simulationID: simulationID}
}

// startTick resets the per-tick sequence counter; called once at the
// start of stage 1 of every tick.
func (j *journal) startTick(tick Tick) {
	j.tick = tick
	j.seqInTick = 0
}

func (j *journal) emit(t EventType, set func(*Event)) *Event {
	e := &Event{
		SimulationID: j.simulationID,
		Tick:         j.tick,
		SeqInTick:    j.seqInTick,
		Type:         t,
	}
	j.seqInTick++
	set(e)
	j.events = append(j.events, e)
	return e
}

func (j *journal) all() []*Event {
	return j.events
}

func (j *journal) sinceTick(tick Tick) []*Event {
	var out []*Event
	for _, e := range j.events {
		if e.Tick == tick {
			out = append(out, e)
		}
	}
	return out
}
