package kernel

import (
	"sort"

	"github.com/aristath/settlement-kernel/internal/kernel/policy"
)

// buildAgentContext assembles the transaction-free evaluation context
// used by the bank_tree and both collateral trees, which reason about
// an agent's own state rather than a specific transaction.
func (o *Orchestrator) buildAgentContext(agentID string) *policy.Context {
	a := o.agents[agentID]
	limit := AllowedOverdraftLimit(a.UnsecuredCap, a.PostedCollateral, o.cfg.HaircutBps)
	return &policy.Context{
		HasTransaction:              false,
		Balance:                     a.Balance,
		AvailableCredit:             a.Balance + limit,
		RemainingCollateralCapacity: a.MaxCollateralCapacity - a.PostedCollateral,
		PostedCollateral:            a.PostedCollateral,
		Queue1Size:                  int64(len(a.Queue1)),
		StateRegisters:              a.StateRegisters,
		SystemTick:                  o.currentTick,
		SystemTickInDay:             o.currentTick % int64(o.cfg.Simulation.TicksPerDay),
		Day:                         o.currentDay,
		Queue2Size:                  int64(len(o.store.queue2Snapshot())),
	}
}

// buildTxContext extends the agent context with the transaction-local
// fields the payment_tree reads.
func (o *Orchestrator) buildTxContext(agentID string, tx *Transaction) *policy.Context {
	ctx := o.buildAgentContext(agentID)
	ctx.HasTransaction = true
	ctx.Amount = tx.Amount
	ctx.Priority = int64(tx.Priority)
	ctx.DeadlineTick = tx.DeadlineTick
	ctx.TicksToDeadline = tx.TicksToDeadline(o.currentTick)
	if tx.IsDivisible {
		ctx.IsDivisible = 1
	}
	ctx.SenderID = tx.SenderID
	ctx.ReceiverID = tx.ReceiverID
	return ctx
}

// applyCollateralAction applies the outcome of evaluating a strategic
// or end-of-tick collateral tree. PostCollateral's declared amount is a
// cap, not a guaranteed amount: it is clamped to the agent's remaining
// collateral capacity, per the built-in liquidity-aware policy's design
// (see policy.liquidityAwareTrees).
func (o *Orchestrator) applyCollateralAction(agentID string, action *policy.ActionSpec) {
	a := o.agents[agentID]
	switch action.Type {
	case policy.ActionPostCollateral:
		amount := action.Parameters["amount"]
		room := a.MaxCollateralCapacity - a.PostedCollateral
		if amount > room {
			amount = room
		}
		if amount <= 0 {
			return
		}
		a.PostedCollateral += amount
		o.journal.emit(EventCollateralPosted, func(e *Event) {
			e.CollateralPosted = &CollateralPayload{AgentID: agentID, Amount: amount}
		})
	case policy.ActionHoldCollateral:
		// no state change; explicit refusal to post further collateral.
	}
}

// runEndOfDay is stage 10, run only on the last tick of a day: each
// agent's end_of_tick_collateral_tree is evaluated against its own
// state, then every transaction not yet Settled or Dropped is counted
// as an unsettled obligation and, if an EOD penalty rate is configured,
// charged to its sender.
func (o *Orchestrator) runEndOfDay() error {
	var ids []string
	for id := range o.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		tree := o.agents[id].Policy.EndOfTickCollateralTree
		if tree == nil {
			continue
		}
		ctx := o.buildAgentContext(id)
		action, err := policy.Evaluate(tree, ctx, nil)
		if err != nil {
			return wrapPolicyEvalError(err)
		}
		o.applyCollateralAction(id, action)
	}

	var unsettledCount int64
	var penaltiesCharged Cents
	rate := o.cfg.CostRates.EODPenaltyCents
	for _, tx := range o.store.all() {
		if tx.Status == StatusSettled || tx.Status == StatusDropped {
			continue
		}
		unsettledCount++
		if rate > 0 {
			o.ledger.accrue(tx.SenderID, CostEODPenalty, rate)
			penaltiesCharged += rate
		}
	}

	o.journal.emit(EventEndOfDay, func(e *Event) {
		e.EndOfDay = &EndOfDayPayload{
			Day:              o.currentDay,
			UnsettledCount:   unsettledCount,
			PenaltiesCharged: penaltiesCharged,
		}
	})
	return nil
}
