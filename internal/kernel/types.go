// Package kernel implements the deterministic, tick-driven settlement
// simulation kernel: transaction lifecycle, liquidity-saving mechanisms,
// policy-driven agent decisions, cost accounting, and the replayable
// event journal.
package kernel

import "github.com/aristath/settlement-kernel/internal/kernel/policy"

// Cents is an integer-cent monetary amount. No floating point monetary
// value is ever produced on the hot path.
type Cents = int64

// Tick is the atomic simulation time unit.
type Tick = int64

// TxStatus is a transaction's position in its lifecycle.
type TxStatus string

const (
	StatusPending  TxStatus = "Pending"
	StatusQueued1  TxStatus = "Queued1"
	StatusQueued2  TxStatus = "Queued2"
	StatusSettled  TxStatus = "Settled"
	StatusDropped  TxStatus = "Dropped"
	StatusOverdue  TxStatus = "Overdue"
)

// allowedTransitions is the status transition graph from spec §4.3.
var allowedTransitions = map[TxStatus]map[TxStatus]bool{
	StatusPending: {StatusSettled: true, StatusQueued1: true, StatusQueued2: true, StatusDropped: true},
	StatusQueued1: {StatusQueued2: true, StatusSettled: true},
	StatusQueued2: {StatusSettled: true, StatusOverdue: true},
	StatusOverdue: {StatusSettled: true},
	StatusSettled: {},
	StatusDropped: {},
}

// CanTransition reports whether from->to is a legal status transition.
func CanTransition(from, to TxStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Transaction is a payment instruction moving through the settlement
// pipeline. Fields other than the lifecycle fields are immutable once
// created.
type Transaction struct {
	TxID       string `json:"tx_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Amount     Cents  `json:"amount"`
	Priority   int    `json:"priority"`

	ArrivalTick  Tick `json:"arrival_tick"`
	DeadlineTick Tick `json:"deadline_tick"`
	IsDivisible  bool `json:"is_divisible"`

	// DeclaredRTGSPriority is the effective Queue 2 priority. It starts
	// equal to Priority and is replaced by a payment_tree SetPriority
	// action; bank_tree budget decisions do not change it.
	DeclaredRTGSPriority int  `json:"declared_rtgs_priority"`
	SubmissionTick       Tick `json:"submission_tick"`

	Status           TxStatus `json:"status"`
	SettlementTick   *Tick    `json:"settlement_tick,omitempty"`
	AmountSettled    Cents    `json:"amount_settled"`
	OverdueSinceTick *Tick    `json:"overdue_since_tick,omitempty"`
	DeadlinePenaltyCharged bool `json:"deadline_penalty_charged"`

	ParentTxID *string `json:"parent_tx_id,omitempty"`
	SplitIndex *int    `json:"split_index,omitempty"`

	// HeldSinceTick is the tick at which the transaction entered a
	// queue (Queue1 or Queue2); delay cost accrues only while it is set.
	HeldSinceTick *Tick `json:"held_since_tick,omitempty"`
}

// TicksToDeadline returns DeadlineTick-currentTick, which may be negative
// once a transaction is overdue.
func (t *Transaction) TicksToDeadline(currentTick Tick) int64 {
	return t.DeadlineTick - currentTick
}

// IsOverdueAt reports whether the transaction is past its deadline at
// the given tick while still unsettled.
func (t *Transaction) IsOverdueAt(currentTick Tick) bool {
	return currentTick > t.DeadlineTick && t.Status != StatusSettled && t.Status != StatusDropped
}

// remaining is the outstanding amount still owed: Amount minus
// whatever a prior partial cycle settlement already paid. Ordinary
// settlement paths (RTGS, Queue 2 drain, bilateral offset) must always
// move this, not the original Amount, or a transaction a cycle pass
// partially settled earlier would be paid twice.
func (t *Transaction) remaining() Cents {
	return t.Amount - t.AmountSettled
}

// clone returns a shallow value copy, used so callers of query methods
// never observe a pointer into kernel-owned state.
func (t *Transaction) clone() *Transaction {
	c := *t
	if t.SettlementTick != nil {
		v := *t.SettlementTick
		c.SettlementTick = &v
	}
	if t.OverdueSinceTick != nil {
		v := *t.OverdueSinceTick
		c.OverdueSinceTick = &v
	}
	if t.ParentTxID != nil {
		v := *t.ParentTxID
		c.ParentTxID = &v
	}
	if t.SplitIndex != nil {
		v := *t.SplitIndex
		c.SplitIndex = &v
	}
	if t.HeldSinceTick != nil {
		v := *t.HeldSinceTick
		c.HeldSinceTick = &v
	}
	return &c
}

// Agent is a settlement participant.
type Agent struct {
	AgentID               string `json:"agent_id"`
	OpeningBalance        Cents  `json:"opening_balance"`
	UnsecuredCap          Cents  `json:"unsecured_cap"`
	PostedCollateral      Cents  `json:"posted_collateral"`
	MaxCollateralCapacity Cents  `json:"max_collateral_capacity"`
	Balance               Cents  `json:"balance"`

	Policy        *policy.CompiledPolicy `json:"-"`
	ArrivalConfig *ArrivalConfig         `json:"arrival_config,omitempty"`

	StateRegisters map[string]int64 `json:"state_registers"`

	// Queue1 holds tx_ids this agent has chosen to hold, insertion order.
	Queue1 []string `json:"queue1"`

	// releaseBudget is the per-tick budget set by the bank_tree this
	// tick; nil means no budget was set, and then nothing is promoted
	// from Queue1 to Queue2 this tick. Reset at the start of every tick.
	releaseBudget *releaseBudgetState
}

type releaseBudgetState struct {
	MaxValue            Cents
	Spent               Cents
	FocusCounterparties map[string]bool
	MaxPerCounterparty  Cents
	SpentByCounterparty map[string]Cents
}

// AllowedOverdraftLimit is unsecured_cap + floor(posted_collateral*(1-haircut)).
func AllowedOverdraftLimit(unsecuredCap, postedCollateral Cents, haircutBps int64) Cents {
	// floor(posted_collateral * (10000-haircutBps) / 10000)
	num := postedCollateral * (10000 - haircutBps)
	collateralCredit := num / 10000 // integer division truncates toward zero; both operands non-negative so this is floor.
	return unsecuredCap + collateralCredit
}

func (a *Agent) clone() *Agent {
	c := *a
	c.StateRegisters = make(map[string]int64, len(a.StateRegisters))
	for k, v := range a.StateRegisters {
		c.StateRegisters[k] = v
	}
	c.Queue1 = append([]string(nil), a.Queue1...)
	c.Policy = a.Policy
	c.releaseBudget = nil
	return &c
}
