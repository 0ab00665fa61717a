package kernel

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/aristath/settlement-kernel/internal/kernel/policy"
)

// Orchestrator owns every piece of mutable simulation state and drives
// the fixed eleven-stage tick pipeline of spec §2. It is not safe for
// concurrent use: the kernel is deliberately single-threaded so that a
// replay with the same config and seed is byte-identical (INV-REPLAY).
type Orchestrator struct {
	cfg          *Config
	configHash   string
	simulationID string

	agents  map[string]*Agent
	store   *store
	ledger  *ledger
	journal *journal

	currentTick Tick
	currentDay  int64

	// txSeq generates tx_ids deterministically: a random UUID here would
	// break INV-DETERMINISM and INV-REPLAY despite every other part of
	// the pipeline being seeded, since ordinary transaction ids are
	// never replayed from outside (unlike SubmitTransaction's caller-
	// supplied TxID).
	txSeq int64

	// decisions is per-tick scratch state: the final payment_tree action
	// chosen for each candidate transaction this tick, consumed by the
	// immediate-settlement and Queue1-hold stages, then discarded.
	decisions map[string]*policy.ActionSpec
}

// New constructs an Orchestrator from a fully specified configuration.
// The kernel never reads or parses configuration files itself (that is
// the driver's job, see cmd/simkernel); New only validates and compiles
// the in-memory Config.
func New(cfg *Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hash, err := ConfigHash(cfg)
	if err != nil {
		return nil, err
	}

	agents := make(map[string]*Agent, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		compiled, err := compilePolicy(ac.Policy)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", ac.ID, err)
		}
		agents[ac.ID] = &Agent{
			AgentID:               ac.ID,
			OpeningBalance:        ac.OpeningBalance,
			UnsecuredCap:          ac.UnsecuredCap,
			PostedCollateral:      ac.PostedCollateral,
			MaxCollateralCapacity: ac.MaxCollateralCapacity,
			Balance:               ac.OpeningBalance,
			Policy:                compiled,
			ArrivalConfig:         ac.ArrivalConfig,
			StateRegisters:        make(map[string]int64),
		}
	}

	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}

	o := &Orchestrator{
		cfg:          cfg,
		configHash:   hash,
		simulationID: uuid.NewString(),
		agents:       agents,
		store:        newStore(),
		ledger:       newLedger(ids),
	}
	o.journal = newJournal(o.simulationID)
	return o, nil
}

// newTxID deterministically mints a system-generated transaction id
// (arrivals, scenario injections, splits). It is distinct from the
// simulation_id and checkpoint_id, which identify a run/artifact
// rather than a replayable piece of simulation state and so may stay
// randomly generated.
func (o *Orchestrator) newTxID() string {
	o.txSeq++
	return fmt.Sprintf("tx-%s-%d", o.simulationID, o.txSeq)
}

func (o *Orchestrator) sortedAgentIDs() []string {
	ids := make([]string, 0, len(o.agents))
	for id := range o.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TickResult is the public summary of one Tick call.
type TickResult struct {
	Tick       Tick
	Day        int64
	Events     []*Event
	IsEndOfDay bool
}

// Tick advances the simulation by exactly one tick, running the fixed
// eleven-stage pipeline: arrivals, policy decisions, immediate RTGS,
// Queue1 holds, LSM, Queue2 drain, overdue detection, cost accrual,
// event emission, end-of-day (only on the last tick of a day), and
// finally the tick increment.
func (o *Orchestrator) Tick() (TickResult, error) {
	o.journal.startTick(o.currentTick)

	if err := o.applyScenarioEvents(); err != nil {
		return TickResult{}, err
	}
	if err := o.runArrivals(); err != nil {
		return TickResult{}, err
	}
	if err := o.runPolicyDecisions(); err != nil {
		return TickResult{}, err
	}
	o.runImmediateSettlement()
	o.runQueue1Holds()
	o.runLSM()
	o.drainQueue2()
	o.runOverdueDetection()
	o.runCostAccrual()
	// Stage 9, event emission, is a no-op here: every prior stage appends
	// to the journal synchronously as it acts, so by this point the
	// tick's events are already complete and ordered.

	isEOD := (o.currentTick+1)%int64(o.cfg.Simulation.TicksPerDay) == 0
	if isEOD {
		if err := o.runEndOfDay(); err != nil {
			return TickResult{}, err
		}
	}

	result := TickResult{
		Tick:       o.currentTick,
		Day:        o.currentDay,
		Events:     o.journal.sinceTick(o.currentTick),
		IsEndOfDay: isEOD,
	}
	o.currentTick++
	if isEOD {
		o.currentDay++
	}
	return result, nil
}

// runArrivals is stage 1 for the deterministic per-agent arrival
// stream; scenario-injected arrivals are handled by applyScenarioEvents
// earlier in the same stage.
func (o *Orchestrator) runArrivals() error {
	for _, id := range o.sortedAgentIDs() {
		tx, err := o.generateArrivalsForAgent(id, o.currentTick)
		if err != nil {
			return err
		}
		if tx == nil {
			continue
		}
		tx.TxID = o.newTxID()
		tx.SubmissionTick = o.currentTick
		tx.DeclaredRTGSPriority = tx.Priority
		o.store.add(tx)
		o.journal.emit(EventArrival, func(e *Event) {
			e.Arrival = &ArrivalPayload{TxID: tx.TxID, SenderID: tx.SenderID, ReceiverID: tx.ReceiverID, Amount: tx.Amount, DeadlineTick: tx.DeadlineTick}
		})
	}
	return nil
}

// applyScenarioEvents applies every configured scenario event whose
// schedule fires on the current tick (spec §6).
func (o *Orchestrator) applyScenarioEvents() error {
	for _, se := range o.cfg.ScenarioEvents {
		if !se.Schedule.fires(o.currentTick) {
			continue
		}
		switch se.Type {
		case ScenarioDirectTransfer:
			if err := o.applyDirectTransfer(se); err != nil {
				return err
			}
		case ScenarioCustomTransactionArrival:
			if err := o.applyCustomArrival(se); err != nil {
				return err
			}
		case ScenarioCollateralAdjustment:
			if err := o.applyCollateralAdjustment(se); err != nil {
				return err
			}
		case ScenarioGlobalArrivalRateChange:
			o.applyRateChange(se)
		default:
			return &ScenarioEventError{EventType: string(se.Type), Reason: "unknown scenario event type"}
		}
	}
	return nil
}

// applyDirectTransfer is an unconditional, externally-injected
// settlement: it bypasses the credit check entirely, representing an
// administrative operation (e.g. a central bank cash injection) rather
// than an ordinary participant payment.
func (o *Orchestrator) applyDirectTransfer(se ScenarioEvent) error {
	if _, ok := o.agents[se.SenderID]; !ok {
		return &ScenarioEventError{EventType: string(se.Type), Reason: fmt.Sprintf("unknown sender %q", se.SenderID)}
	}
	if _, ok := o.agents[se.ReceiverID]; !ok {
		return &ScenarioEventError{EventType: string(se.Type), Reason: fmt.Sprintf("unknown receiver %q", se.ReceiverID)}
	}
	if se.Amount <= 0 {
		return &ScenarioEventError{EventType: string(se.Type), Reason: "amount must be > 0"}
	}
	tx := &Transaction{
		TxID: o.newTxID(), SenderID: se.SenderID, ReceiverID: se.ReceiverID, Amount: se.Amount,
		ArrivalTick: o.currentTick, DeadlineTick: o.currentTick, SubmissionTick: o.currentTick,
		DeclaredRTGSPriority: 10, Status: StatusPending,
	}
	o.store.add(tx)
	o.applyTransfer(tx.SenderID, tx.ReceiverID, tx.Amount)
	tick := o.currentTick
	tx.SettlementTick = &tick
	tx.AmountSettled = tx.Amount
	o.store.setStatus(tx, StatusSettled)
	o.journal.emit(EventRtgsImmediateSettlement, func(e *Event) {
		e.RtgsImmediateSettlement = &SettlementPayload{TxID: tx.TxID, SenderID: tx.SenderID, ReceiverID: tx.ReceiverID, Amount: tx.Amount}
	})
	return nil
}

func (o *Orchestrator) applyCustomArrival(se ScenarioEvent) error {
	if _, ok := o.agents[se.SenderID]; !ok {
		return &ScenarioEventError{EventType: string(se.Type), Reason: fmt.Sprintf("unknown sender %q", se.SenderID)}
	}
	if _, ok := o.agents[se.ReceiverID]; !ok {
		return &ScenarioEventError{EventType: string(se.Type), Reason: fmt.Sprintf("unknown receiver %q", se.ReceiverID)}
	}
	if se.Amount <= 0 {
		return &ScenarioEventError{EventType: string(se.Type), Reason: "amount must be > 0"}
	}
	tx := &Transaction{
		TxID: o.newTxID(), SenderID: se.SenderID, ReceiverID: se.ReceiverID, Amount: se.Amount,
		Priority: se.Priority, ArrivalTick: o.currentTick, DeadlineTick: se.Deadline, IsDivisible: se.Divisible,
		DeclaredRTGSPriority: se.Priority, SubmissionTick: o.currentTick, Status: StatusPending,
	}
	o.store.add(tx)
	o.journal.emit(EventArrival, func(e *Event) {
		e.Arrival = &ArrivalPayload{TxID: tx.TxID, SenderID: tx.SenderID, ReceiverID: tx.ReceiverID, Amount: tx.Amount, DeadlineTick: tx.DeadlineTick}
	})
	return nil
}

func (o *Orchestrator) applyCollateralAdjustment(se ScenarioEvent) error {
	a, ok := o.agents[se.AgentID]
	if !ok {
		return &ScenarioEventError{EventType: string(se.Type), Reason: fmt.Sprintf("unknown agent %q", se.AgentID)}
	}
	if se.CollateralAdj > 0 {
		amt := se.CollateralAdj
		if room := a.MaxCollateralCapacity - a.PostedCollateral; amt > room {
			amt = room
		}
		if amt <= 0 {
			return nil
		}
		a.PostedCollateral += amt
		o.journal.emit(EventCollateralPosted, func(e *Event) {
			e.CollateralPosted = &CollateralPayload{AgentID: se.AgentID, Amount: amt}
		})
	} else if se.CollateralAdj < 0 {
		amt := -se.CollateralAdj
		if amt > a.PostedCollateral {
			amt = a.PostedCollateral
		}
		if amt <= 0 {
			return nil
		}
		a.PostedCollateral -= amt
		o.journal.emit(EventCollateralReleased, func(e *Event) {
			e.CollateralReleased = &CollateralPayload{AgentID: se.AgentID, Amount: amt}
		})
	}
	return nil
}

func (o *Orchestrator) applyRateChange(se ScenarioEvent) {
	if se.AgentID != "" {
		if a, ok := o.agents[se.AgentID]; ok && a.ArrivalConfig != nil {
			a.ArrivalConfig.RatePerTick = se.NewRatePerTick
		}
		return
	}
	for _, a := range o.agents {
		if a.ArrivalConfig != nil {
			a.ArrivalConfig.RatePerTick = se.NewRatePerTick
		}
	}
}

// runPolicyDecisions is stage 2: each agent's bank_tree and then its
// strategic_collateral_tree run once against its own state, then its
// payment_tree runs once per candidate
// transaction (this tick's fresh arrivals plus anything already
// waiting in its Queue1), producing the decision consumed by stages 3
// and 4.
func (o *Orchestrator) runPolicyDecisions() error {
	o.decisions = make(map[string]*policy.ActionSpec)

	for _, id := range o.sortedAgentIDs() {
		agent := o.agents[id]
		agent.releaseBudget = nil

		if agent.Policy.BankTree != nil {
			ctx := o.buildAgentContext(id)
			action, err := policy.Evaluate(agent.Policy.BankTree, ctx, nil)
			if err != nil {
				return wrapPolicyEvalError(err)
			}
			o.applyBankAction(id, action)
		}

		if agent.Policy.StrategicCollateralTree != nil {
			ctx := o.buildAgentContext(id)
			action, err := policy.Evaluate(agent.Policy.StrategicCollateralTree, ctx, nil)
			if err != nil {
				return wrapPolicyEvalError(err)
			}
			o.applyCollateralAction(id, action)
		}

		if agent.Policy.PaymentTree == nil {
			continue
		}
		candidates := o.paymentCandidates(id)
		for _, tx := range candidates {
			ctx := o.buildTxContext(id, tx)
			action, err := policy.Evaluate(agent.Policy.PaymentTree, ctx, nil)
			if err != nil {
				return wrapPolicyEvalError(err)
			}
			o.journal.emit(EventPolicyDecision, func(e *Event) {
				e.PolicyDecision = &PolicyDecisionPayload{AgentID: id, TxID: tx.TxID, TreeName: string(policy.PaymentTree), Action: string(action.Type)}
			})
			o.applyPaymentAction(id, tx, action)
		}
	}
	return nil
}

// paymentCandidates collects, in a fixed snapshot taken once at the
// start of the tick's decision stage, every transaction the
// payment_tree must rule on: this agent's Pending transactions (fresh
// arrivals, plus split children created on an earlier tick) and
// whatever already sits in its Queue1. A Split action may add new
// transactions to the store mid-stage; because candidates is a fixed
// slice, those children are never retroactively added to this tick's
// candidate list, which is exactly the "offered next tick" rule.
func (o *Orchestrator) paymentCandidates(agentID string) []*Transaction {
	agent := o.agents[agentID]
	var candidates []*Transaction
	for _, txID := range agent.Queue1 {
		if tx, ok := o.store.get(txID); ok {
			candidates = append(candidates, tx)
		}
	}
	for _, tx := range o.store.all() {
		if tx.SenderID == agentID && tx.Status == StatusPending && tx.ArrivalTick <= o.currentTick {
			candidates = append(candidates, tx)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].TxID < candidates[j].TxID })
	return candidates
}

func (o *Orchestrator) applyPaymentAction(agentID string, tx *Transaction, action *policy.ActionSpec) {
	switch action.Type {
	case policy.ActionRelease:
		o.decisions[tx.TxID] = action
	case policy.ActionHold:
		o.decisions[tx.TxID] = action
	case policy.ActionSplit:
		if tx.Status != StatusPending {
			o.decisions[tx.TxID] = &policy.ActionSpec{Type: policy.ActionHold}
			return
		}
		o.splitTransaction(tx, action)
	case policy.ActionSetPriority:
		if p, ok := action.Parameters["priority"]; ok {
			tx.DeclaredRTGSPriority = int(p)
		}
		o.decisions[tx.TxID] = &policy.ActionSpec{Type: policy.ActionHold}
	default:
		o.decisions[tx.TxID] = &policy.ActionSpec{Type: policy.ActionHold}
	}
}

// splitTransaction implements the Split action: the original
// transaction is dropped and replaced by two children whose amounts
// divide it by fraction_bps. Children are created Pending at the
// current tick, are immediately visible to queries, but (per
// paymentCandidates' fixed-snapshot design) are not offered to the
// payment_tree until next tick. split_friction_cost is charged exactly
// once, at this instant.
func (o *Orchestrator) splitTransaction(tx *Transaction, action *policy.ActionSpec) {
	fractionBps := action.Parameters["fraction_bps"]
	firstAmount := tx.Amount * fractionBps / 10000
	secondAmount := tx.Amount - firstAmount
	if firstAmount <= 0 || secondAmount <= 0 {
		o.decisions[tx.TxID] = &policy.ActionSpec{Type: policy.ActionHold}
		return
	}

	o.store.setStatus(tx, StatusDropped)
	o.journal.emit(EventDrop, func(e *Event) {
		e.Drop = &DropPayload{TxID: tx.TxID, Reason: "split"}
	})

	parentID := tx.TxID
	amounts := [2]Cents{firstAmount, secondAmount}
	for i, amt := range amounts {
		idx := i
		child := &Transaction{
			TxID: o.newTxID(), SenderID: tx.SenderID, ReceiverID: tx.ReceiverID, Amount: amt,
			Priority: tx.Priority, ArrivalTick: o.currentTick, DeadlineTick: tx.DeadlineTick,
			IsDivisible: tx.IsDivisible, DeclaredRTGSPriority: tx.DeclaredRTGSPriority,
			Status: StatusPending, ParentTxID: &parentID, SplitIndex: &idx,
		}
		o.store.add(child)
		o.journal.emit(EventArrival, func(e *Event) {
			e.Arrival = &ArrivalPayload{TxID: child.TxID, SenderID: child.SenderID, ReceiverID: child.ReceiverID, Amount: child.Amount, DeadlineTick: child.DeadlineTick}
		})
	}

	fee := o.cfg.CostRates.SplitFrictionCostCents
	if fee > 0 {
		o.ledger.accrue(tx.SenderID, CostSplitFriction, fee)
		o.emitCostAccrual(tx.SenderID, CostSplitFriction, fee)
	}
}

func (o *Orchestrator) applyBankAction(agentID string, action *policy.ActionSpec) {
	switch action.Type {
	case policy.ActionSetReleaseBudget:
		maxValue := action.Parameters["max_value"]
		maxPerCounterparty := action.Parameters["max_per_counterparty"]
		focus := make(map[string]bool, len(action.FocusCounterparties))
		for _, cp := range action.FocusCounterparties {
			focus[cp] = true
		}
		o.agents[agentID].releaseBudget = &releaseBudgetState{
			MaxValue: maxValue, FocusCounterparties: focus, MaxPerCounterparty: maxPerCounterparty,
			SpentByCounterparty: make(map[string]Cents),
		}
		o.journal.emit(EventBankBudgetSet, func(e *Event) {
			e.BankBudgetSet = &BankBudgetPayload{AgentID: agentID, MaxValue: maxValue}
		})
	case policy.ActionSetStateRegister:
		value := action.Parameters["value"]
		o.agents[agentID].StateRegisters[action.StateKey] = value
		o.journal.emit(EventStateRegisterSet, func(e *Event) {
			e.StateRegisterSet = &StateRegisterPayload{AgentID: agentID, Key: action.StateKey, Value: value}
		})
	case policy.ActionNoOp:
	}
}

// runImmediateSettlement is stage 3: attempt RTGS settlement for every
// transaction whose payment_tree decision this tick is Release. A
// transaction that fails the credit check here falls back to a Hold
// decision and is picked up by stage 4 instead.
func (o *Orchestrator) runImmediateSettlement() {
	var txIDs []string
	for id, act := range o.decisions {
		if act.Type == policy.ActionRelease {
			txIDs = append(txIDs, id)
		}
	}
	sort.Strings(txIDs)
	for _, id := range txIDs {
		tx, ok := o.store.get(id)
		if !ok || tx.Status == StatusSettled {
			continue
		}
		if !o.attemptImmediateSettlement(tx) {
			o.decisions[id] = &policy.ActionSpec{Type: policy.ActionHold}
		}
	}
}

// runQueue1Holds is stage 4: every surviving Hold decision is queued
// (or stays queued) in its sender's Queue1, then each agent whose
// bank_tree set a release budget this tick has that budget's worth of
// its Queue1 promoted into the system-wide Queue2.
func (o *Orchestrator) runQueue1Holds() {
	var txIDs []string
	for id, act := range o.decisions {
		if act.Type == policy.ActionHold {
			txIDs = append(txIDs, id)
		}
	}
	sort.Strings(txIDs)
	for _, id := range txIDs {
		tx, ok := o.store.get(id)
		if !ok || tx.Status == StatusSettled || tx.Status == StatusQueued1 {
			continue
		}
		o.holdInQueue1(tx)
	}

	for _, id := range o.sortedAgentIDs() {
		agent := o.agents[id]
		if agent.releaseBudget == nil {
			continue
		}
		for _, txID := range append([]string(nil), agent.Queue1...) {
			tx, ok := o.store.get(txID)
			if !ok {
				continue
			}
			if !o.releaseBudgetAllows(id, tx) {
				continue
			}
			o.submitToQueue2(tx)
		}
	}
}

func (o *Orchestrator) releaseBudgetAllows(agentID string, tx *Transaction) bool {
	rb := o.agents[agentID].releaseBudget
	if rb == nil {
		return true
	}
	if len(rb.FocusCounterparties) > 0 && !rb.FocusCounterparties[tx.ReceiverID] {
		return false
	}
	if rb.MaxValue > 0 && rb.Spent+tx.Amount > rb.MaxValue {
		return false
	}
	if rb.MaxPerCounterparty > 0 && rb.SpentByCounterparty[tx.ReceiverID]+tx.Amount > rb.MaxPerCounterparty {
		return false
	}
	rb.Spent += tx.Amount
	rb.SpentByCounterparty[tx.ReceiverID] += tx.Amount
	return true
}

// runOverdueDetection is stage 7: a Queue2 transaction past its
// deadline transitions to Overdue and, the first time this happens for
// it, incurs its deadline penalty exactly once.
func (o *Orchestrator) runOverdueDetection() {
	for _, tx := range o.store.all() {
		if tx.Status != StatusQueued2 || !tx.IsOverdueAt(o.currentTick) {
			continue
		}
		tick := o.currentTick
		tx.OverdueSinceTick = &tick
		o.store.setStatus(tx, StatusOverdue)
		o.journal.emit(EventOverdue, func(e *Event) {
			e.Overdue = &OverduePayload{TxID: tx.TxID}
		})
		if !tx.DeadlinePenaltyCharged {
			tx.DeadlinePenaltyCharged = true
			amt := o.cfg.CostRates.DeadlinePenaltyCents
			if amt > 0 {
				o.ledger.accrue(tx.SenderID, CostDeadlinePenalty, amt)
			}
			o.journal.emit(EventDeadlinePenaltyCharged, func(e *Event) {
				e.DeadlinePenaltyCharged = &DeadlinePenaltyPayload{TxID: tx.TxID, AgentID: tx.SenderID, Amount: amt}
			})
		}
	}
}

// runCostAccrual is stage 8: per-agent liquidity and collateral cost,
// plus per-transaction delay cost for everything still waiting.
func (o *Orchestrator) runCostAccrual() {
	for _, id := range o.sortedAgentIDs() {
		a := o.agents[id]
		if a.Balance < 0 {
			if amt := ceilDiv10000(-a.Balance, o.cfg.CostRates.OverdraftBpsPerTick); amt > 0 {
				o.ledger.accrue(id, CostLiquidity, amt)
				o.emitCostAccrual(id, CostLiquidity, amt)
			}
		}
		if a.PostedCollateral > 0 {
			if amt := ceilDiv10000(a.PostedCollateral, o.cfg.CostRates.CollateralBpsPerTick); amt > 0 {
				o.ledger.accrue(id, CostCollateral, amt)
				o.emitCostAccrual(id, CostCollateral, amt)
			}
		}
	}

	for _, tx := range o.store.all() {
		if tx.HeldSinceTick == nil {
			continue
		}
		switch tx.Status {
		case StatusQueued1, StatusQueued2, StatusOverdue:
		default:
			continue
		}
		amt := ceilDiv10000(tx.Amount, o.cfg.CostRates.DelayCostPerTickPerCentBp)
		if tx.Status == StatusOverdue {
			mult := o.cfg.CostRates.OverdueDelayMultiplierX10
			if mult == 0 {
				mult = 50
			}
			amt = amt * mult / 10
		}
		if amt > 0 {
			o.ledger.accrue(tx.SenderID, CostDelay, amt)
			o.emitCostAccrual(tx.SenderID, CostDelay, amt)
		}
	}
}

func (o *Orchestrator) emitCostAccrual(agentID string, category CostCategory, amount Cents) {
	o.journal.emit(EventCostAccrual, func(e *Event) {
		e.CostAccrual = &CostAccrualPayload{AgentID: agentID, Category: category, Amount: amount}
	})
}

// TransactionInput is an externally submitted transaction request,
// used by SubmitTransaction. TxID is optional; when empty the kernel
// generates one.
type TransactionInput struct {
	TxID         string
	SenderID     string
	ReceiverID   string
	Amount       Cents
	Priority     int
	DeadlineTick Tick
	IsDivisible  bool
}

// SubmitTransaction injects a transaction directly, bypassing the
// deterministic arrival generator. The transaction enters the pipeline
// as a Pending arrival of the current tick, subject to the owning
// agent's policy on the following Tick call.
func (o *Orchestrator) SubmitTransaction(in TransactionInput) (string, error) {
	if _, ok := o.agents[in.SenderID]; !ok {
		return "", ErrUnknownAgent
	}
	if _, ok := o.agents[in.ReceiverID]; !ok {
		return "", ErrUnknownAgent
	}
	if in.Amount <= 0 {
		return "", ErrInvalidAmount
	}
	if in.DeadlineTick < o.currentTick {
		return "", ErrInvalidDeadline
	}
	txID := in.TxID
	if txID == "" {
		txID = o.newTxID()
	} else if o.store.has(txID) {
		return "", ErrDuplicateTxID
	}

	tx := &Transaction{
		TxID: txID, SenderID: in.SenderID, ReceiverID: in.ReceiverID, Amount: in.Amount,
		Priority: in.Priority, ArrivalTick: o.currentTick, DeadlineTick: in.DeadlineTick,
		IsDivisible: in.IsDivisible, DeclaredRTGSPriority: in.Priority, SubmissionTick: o.currentTick,
		Status: StatusPending,
	}
	o.store.add(tx)
	o.journal.emit(EventArrival, func(e *Event) {
		e.Arrival = &ArrivalPayload{TxID: tx.TxID, SenderID: tx.SenderID, ReceiverID: tx.ReceiverID, Amount: tx.Amount, DeadlineTick: tx.DeadlineTick}
	})
	return txID, nil
}

// SystemMetrics is a point-in-time summary of the simulation, exposed
// for diagnostics and batch-run reporting.
type SystemMetrics struct {
	CurrentTick       Tick
	CurrentDay        int64
	TotalAgents       int
	Queue2Size        int
	TotalEventsEmitted int
}

func (o *Orchestrator) ConfigHash() string   { return o.configHash }
func (o *Orchestrator) SimulationID() string { return o.simulationID }

func (o *Orchestrator) GetAgentBalance(agentID string) (Cents, error) {
	a, ok := o.agents[agentID]
	if !ok {
		return 0, ErrUnknownAgent
	}
	return a.Balance, nil
}

func (o *Orchestrator) GetAgentAllowedOverdraftLimit(agentID string) (Cents, error) {
	a, ok := o.agents[agentID]
	if !ok {
		return 0, ErrUnknownAgent
	}
	return AllowedOverdraftLimit(a.UnsecuredCap, a.PostedCollateral, o.cfg.HaircutBps), nil
}

func (o *Orchestrator) GetAgentCreditLimit(agentID string) (Cents, error) {
	if _, ok := o.agents[agentID]; !ok {
		return 0, ErrUnknownAgent
	}
	return o.creditHeadroom(agentID), nil
}

func (o *Orchestrator) GetAgentCollateralPosted(agentID string) (Cents, error) {
	a, ok := o.agents[agentID]
	if !ok {
		return 0, ErrUnknownAgent
	}
	return a.PostedCollateral, nil
}

func (o *Orchestrator) GetAgentCosts(agentID string) (AgentCosts, error) {
	if _, ok := o.agents[agentID]; !ok {
		return AgentCosts{}, ErrUnknownAgent
	}
	return o.ledger.snapshot(agentID), nil
}

func (o *Orchestrator) GetTransactionDetails(txID string) (*Transaction, error) {
	tx, ok := o.store.get(txID)
	if !ok {
		return nil, fmt.Errorf("kernel: unknown transaction %q", txID)
	}
	return tx.clone(), nil
}

func (o *Orchestrator) GetQueue2Size() int {
	return len(o.store.queue2Snapshot())
}

func (o *Orchestrator) GetAllEvents() []*Event {
	return o.journal.all()
}

func (o *Orchestrator) GetTickEvents(tick Tick) []*Event {
	return o.journal.sinceTick(tick)
}

func (o *Orchestrator) GetSystemMetrics() SystemMetrics {
	return SystemMetrics{
		CurrentTick:        o.currentTick,
		CurrentDay:         o.currentDay,
		TotalAgents:        len(o.agents),
		Queue2Size:         o.GetQueue2Size(),
		TotalEventsEmitted: len(o.journal.all()),
	}
}
