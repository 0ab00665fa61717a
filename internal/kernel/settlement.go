package kernel

// creditHeadroom returns how many more cents agentID could pay out
// without breaching INV-CREDIT: balance - amount >= -AllowedOverdraftLimit.
func (o *Orchestrator) creditHeadroom(agentID string) Cents {
	a := o.agents[agentID]
	limit := AllowedOverdraftLimit(a.UnsecuredCap, a.PostedCollateral, o.cfg.HaircutBps)
	return a.Balance + limit
}

// canSettle reports whether settling amount from sender would respect
// INV-CREDIT.
func (o *Orchestrator) canSettle(senderID string, amount Cents) bool {
	return o.creditHeadroom(senderID) >= amount
}

// applyTransfer moves amount from sender to receiver's balance. Callers
// must have already verified canSettle.
func (o *Orchestrator) applyTransfer(senderID, receiverID string, amount Cents) {
	o.agents[senderID].Balance -= amount
	o.agents[receiverID].Balance += amount
}

// settle marks tx settled at the current tick for the given event type
// and records the balance transfer. eventType is either
// EventRtgsImmediateSettlement (stage 3 only) or
// EventQueue2LiquidityRelease (stage 6 only); the two are mutually
// exclusive per transaction (INV-EXCLUSIVITY) because a transaction
// can only pass through this function once, on whichever stage first
// succeeds.
func (o *Orchestrator) settle(tx *Transaction, eventType EventType) {
	amount := tx.remaining()
	o.applyTransfer(tx.SenderID, tx.ReceiverID, amount)
	tick := o.currentTick
	tx.SettlementTick = &tick
	tx.AmountSettled = tx.Amount
	o.store.setStatus(tx, StatusSettled)
	o.store.queue2Remove(tx.TxID)
	o.removeFromQueue1(tx)

	o.journal.emit(eventType, func(e *Event) {
		payload := &SettlementPayload{TxID: tx.TxID, SenderID: tx.SenderID, ReceiverID: tx.ReceiverID, Amount: amount}
		if eventType == EventRtgsImmediateSettlement {
			e.RtgsImmediateSettlement = payload
		} else {
			e.Queue2LiquidityRelease = payload
		}
	})
}

// attemptImmediateSettlement is stage 3: for a transaction whose
// policy decision is Release this tick (arrival or a held
// transaction released from Queue1 by a fresh decision), settle it now
// if liquidity allows.
func (o *Orchestrator) attemptImmediateSettlement(tx *Transaction) bool {
	if !o.canSettle(tx.SenderID, tx.remaining()) {
		return false
	}
	o.settle(tx, EventRtgsImmediateSettlement)
	return true
}

// holdInQueue1 is stage 4: a transaction the payment_tree chose to
// hold rather than release is appended to the sender's Queue 1.
func (o *Orchestrator) holdInQueue1(tx *Transaction) {
	agent := o.agents[tx.SenderID]
	agent.Queue1 = append(agent.Queue1, tx.TxID)
	tick := o.currentTick
	tx.HeldSinceTick = &tick
	o.store.setStatus(tx, StatusQueued1)

	o.journal.emit(EventQueue1Hold, func(e *Event) {
		e.Queue1Hold = &QueueHoldPayload{TxID: tx.TxID, AgentID: tx.SenderID}
	})
}

// removeFromQueue1 removes tx from its sender's Queue1 if present.
func (o *Orchestrator) removeFromQueue1(tx *Transaction) {
	agent := o.agents[tx.SenderID]
	for i, id := range agent.Queue1 {
		if id == tx.TxID {
			agent.Queue1 = append(agent.Queue1[:i], agent.Queue1[i+1:]...)
			return
		}
	}
}

// submitToQueue2 moves a transaction out of Queue1 into the
// system-wide total order once the agent's bank_tree authorizes
// release.
func (o *Orchestrator) submitToQueue2(tx *Transaction) {
	o.removeFromQueue1(tx)
	o.store.setStatus(tx, StatusQueued2)
	if tx.HeldSinceTick == nil {
		tick := o.currentTick
		tx.HeldSinceTick = &tick
	}
	o.store.queue2Insert(tx.TxID)

	o.journal.emit(EventQueue2Submit, func(e *Event) {
		e.Queue2Submit = &Queue2SubmitPayload{TxID: tx.TxID, DeclaredRTGSPriority: tx.DeclaredRTGSPriority}
	})
}

// drainQueue2 is stage 6: walk Queue 2 in its fixed total order and
// settle each transaction liquidity allows at the moment it is reached.
// This is a single pass: each entry is checked against the balances of
// that moment, so an entry skipped earlier in the pass is not
// revisited when a later settlement credits its sender; it stays
// queued and is tried again on a later tick.
func (o *Orchestrator) drainQueue2() {
	for _, txID := range o.store.queue2Snapshot() {
		tx, ok := o.store.get(txID)
		if !ok || (tx.Status != StatusQueued2 && tx.Status != StatusOverdue) {
			continue
		}
		if o.canSettle(tx.SenderID, tx.remaining()) {
			o.settle(tx, EventQueue2LiquidityRelease)
		}
	}
}
