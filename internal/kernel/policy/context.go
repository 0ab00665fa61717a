package policy

import "strings"

// Context is the typed, closed set of context fields a tree may read,
// per spec §4.4. Building it from reflection-free struct fields keeps
// field lookups out of the hot loop (spec §9 design note).
type Context struct {
	// Transaction-local (nil fields for bank_tree/collateral trees,
	// which are evaluated without a specific transaction).
	HasTransaction bool
	Amount         int64
	Priority       int64
	DeadlineTick   int64
	TicksToDeadline int64
	IsDivisible    int64 // boolean coerced to 0/1
	SenderID       string
	ReceiverID     string

	// Agent-local
	Balance                     int64
	AvailableCredit             int64
	RemainingCollateralCapacity int64
	PostedCollateral            int64
	Queue1Size                  int64
	StateRegisters              map[string]int64

	// Time
	SystemTick      int64
	SystemTickInDay int64
	Day             int64

	// System
	Queue2Size     int64
	TotalTxnsToday int64
}

// FieldValue resolves a context field by name, including the
// state_register[<key>] indexed form. ok is false for unknown fields
// (a load-time validation error) or for transaction-local fields
// referenced outside a per-transaction evaluation.
func (c *Context) FieldValue(name string) (int64, bool) {
	if strings.HasPrefix(name, "state_register[") && strings.HasSuffix(name, "]") {
		key := name[len("state_register[") : len(name)-1]
		v, ok := c.StateRegisters[key]
		return v, ok
	}
	switch name {
	case "amount":
		return boolOr(c.HasTransaction, c.Amount), c.HasTransaction
	case "priority":
		return c.Priority, c.HasTransaction
	case "deadline_tick":
		return c.DeadlineTick, c.HasTransaction
	case "ticks_to_deadline":
		return c.TicksToDeadline, c.HasTransaction
	case "is_divisible":
		return c.IsDivisible, c.HasTransaction
	case "balance":
		return c.Balance, true
	case "available_credit":
		return c.AvailableCredit, true
	case "remaining_collateral_capacity":
		return c.RemainingCollateralCapacity, true
	case "posted_collateral":
		return c.PostedCollateral, true
	case "queue1_size":
		return c.Queue1Size, true
	case "system_tick":
		return c.SystemTick, true
	case "system_tick_in_day":
		return c.SystemTickInDay, true
	case "day":
		return c.Day, true
	case "queue2_size":
		return c.Queue2Size, true
	case "total_txns_today":
		return c.TotalTxnsToday, true
	default:
		return 0, false
	}
}

func boolOr(ok bool, v int64) int64 {
	if !ok {
		return 0
	}
	return v
}

// IsKnownField reports whether name is in the closed field set,
// independent of whether it is currently populated. Used at load-time
// validation so an unknown field is always a validation error even if
// evaluation never reaches that branch.
func IsKnownField(name string) bool {
	if strings.HasPrefix(name, "state_register[") && strings.HasSuffix(name, "]") {
		return true
	}
	switch name {
	case "amount", "priority", "deadline_tick", "ticks_to_deadline", "is_divisible",
		"sender_id", "receiver_id",
		"balance", "available_credit", "remaining_collateral_capacity", "posted_collateral",
		"queue1_size",
		"system_tick", "system_tick_in_day", "day",
		"queue2_size", "total_txns_today":
		return true
	default:
		return false
	}
}

// transactionOnlyFields is the subset of IsKnownField names that only
// make sense with a concrete transaction in scope (payment_tree).
var transactionOnlyFields = map[string]bool{
	"amount": true, "priority": true, "deadline_tick": true, "ticks_to_deadline": true,
	"is_divisible": true, "sender_id": true, "receiver_id": true,
}

// IsTransactionField reports whether name requires HasTransaction.
func IsTransactionField(name string) bool {
	return transactionOnlyFields[name]
}
