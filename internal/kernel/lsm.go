package kernel

import "sort"

// runLSM is stage 5: bilateral offsetting followed by multilateral
// cycle settlement, both operating only on transactions already
// submitted to Queue 2 (Queue 1 holds are bank-internal staging and
// are not yet visible to the system-wide netting passes). Every
// transaction this stage settles is settled here exclusively: it never
// also produces an RtgsImmediateSettlement or Queue2LiquidityRelease
// event (INV-EXCLUSIVITY), because LSM removes a transaction from
// Queue 2 the moment it nets out.
func (o *Orchestrator) runLSM() {
	if o.cfg.LSM.EnableBilateral {
		o.runBilateralOffset()
	}
	if o.cfg.LSM.EnableCycles {
		o.runCycleSettlement()
	}
}

func (o *Orchestrator) queue2Transactions() []*Transaction {
	var out []*Transaction
	for _, txID := range o.store.queue2Snapshot() {
		if tx, ok := o.store.get(txID); ok {
			out = append(out, tx)
		}
	}
	return out
}

// runBilateralOffset nets each unordered agent pair's mutual Queue 2
// obligations: net = min(ΣA→B, ΣB→A), then a head-of-queue bundle on
// each side whose sum first reaches net is selected for settlement.
// Legs past the selected bundle stay queued for a later pass.
func (o *Orchestrator) runBilateralOffset() {
	type pairKey struct{ a, b string }
	groups := map[pairKey][]*Transaction{}
	for _, tx := range o.queue2Transactions() {
		a, b := tx.SenderID, tx.ReceiverID
		if a > b {
			a, b = b, a
		}
		// o.queue2Transactions() already walks Queue 2 in its fixed
		// total order; preserving that order here is what makes the
		// later bundle selection "head-of-queue".
		groups[pairKey{a, b}] = append(groups[pairKey{a, b}], tx)
	}

	var keys []pairKey
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	for _, k := range keys {
		txs := groups[k]

		var aToB, bToA []*Transaction
		var sumAB, sumBA Cents
		for _, tx := range txs {
			if tx.SenderID == k.a {
				aToB = append(aToB, tx)
				sumAB += tx.remaining()
			} else {
				bToA = append(bToA, tx)
				sumBA += tx.remaining()
			}
		}
		if len(aToB) == 0 || len(bToA) == 0 {
			continue
		}

		net := sumAB
		if sumBA < sumAB {
			net = sumBA
		}

		bundleAB, sumSelAB := selectBundle(aToB, net)
		bundleBA, sumSelBA := selectBundle(bToA, net)

		// The bundle sums meet or first exceed net on each side, so
		// only their difference actually needs to change hands.
		diff := sumSelAB - sumSelBA
		payer, payee := k.a, k.b
		transfer := diff
		if diff < 0 {
			payer, payee = k.b, k.a
			transfer = -diff
		}
		if transfer > 0 && !o.canSettle(payer, transfer) {
			continue
		}
		if transfer > 0 {
			o.applyTransfer(payer, payee, transfer)
		}

		settleLeg := func(txs []*Transaction) []string {
			var ids []string
			for _, tx := range txs {
				tick := o.currentTick
				tx.SettlementTick = &tick
				tx.AmountSettled = tx.Amount
				o.store.setStatus(tx, StatusSettled)
				o.store.queue2Remove(tx.TxID)
				ids = append(ids, tx.TxID)
			}
			sort.Strings(ids)
			return ids
		}
		idsAToB := settleLeg(bundleAB)
		idsBToA := settleLeg(bundleBA)

		o.journal.emit(EventLsmBilateralOffset, func(e *Event) {
			e.LsmBilateralOffset = &LsmBilateralPayload{
				AgentA:     k.a,
				AgentB:     k.b,
				NetSettled: net,
				TxIDsAToB:  idsAToB,
				TxIDsBToA:  idsBToA,
			}
		})
	}
}

// selectBundle walks txs in head-of-queue order, accumulating
// remaining amounts until the running sum equals or first exceeds
// target, and returns that prefix along with its sum. Since target is
// never more than the full sum of txs wherever this is called (net is
// the minimum of both sides' totals), a qualifying prefix always
// exists.
func selectBundle(txs []*Transaction, target Cents) ([]*Transaction, Cents) {
	var sum Cents
	for i, tx := range txs {
		sum += tx.remaining()
		if sum >= target {
			return txs[:i+1], sum
		}
	}
	return txs, sum
}

type lsmEdge struct {
	to   string
	txID string
}

// buildCycleEdges picks, for every ordered agent pair with at least
// one Queue 2 obligation, the lexicographically smallest tx_id as that
// pair's cycle-detection representative. Using a single representative
// edge per pair keeps cycle search a simple graph walk; transactions
// not chosen as a representative are reconsidered on a later tick once
// the representative they lost to has settled or been removed.
func (o *Orchestrator) buildCycleEdges() map[string][]lsmEdge {
	byPair := map[[2]string]string{}
	for _, tx := range o.queue2Transactions() {
		key := [2]string{tx.SenderID, tx.ReceiverID}
		if cur, ok := byPair[key]; !ok || tx.TxID < cur {
			byPair[key] = tx.TxID
		}
	}
	edges := map[string][]lsmEdge{}
	for k, txID := range byPair {
		edges[k[0]] = append(edges[k[0]], lsmEdge{to: k[1], txID: txID})
	}
	for k := range edges {
		sort.Slice(edges[k], func(i, j int) bool { return edges[k][i].to < edges[k][j].to })
	}
	return edges
}

// findCycle performs a deterministic bounded-depth DFS over the
// candidate-edge graph, trying start vertices in sorted order and each
// vertex's outgoing edges in sorted order, returning the tx_ids of the
// first cycle found of length 2..maxLen.
func (o *Orchestrator) findCycle(maxLen int) []string {
	edges := o.buildCycleEdges()
	var starts []string
	for k := range edges {
		starts = append(starts, k)
	}
	sort.Strings(starts)

	for _, start := range starts {
		visited := map[string]bool{start: true}
		if found := dfsCycle(edges, start, start, maxLen, nil, visited); found != nil {
			return found
		}
	}
	return nil
}

func dfsCycle(edges map[string][]lsmEdge, start, current string, maxLen int, txPath []string, visited map[string]bool) []string {
	if len(txPath) >= maxLen {
		return nil
	}
	for _, e := range edges[current] {
		next := append(append([]string{}, txPath...), e.txID)
		if e.to == start && len(next) >= 2 {
			return next
		}
		if visited[e.to] {
			continue
		}
		visited[e.to] = true
		if res := dfsCycle(edges, start, e.to, maxLen, next, visited); res != nil {
			return res
		}
		delete(visited, e.to)
	}
	return nil
}

// runCycleSettlement repeatedly finds and settles multilateral cycles
// up to MaxCyclesPerTick. A cycle never requires new liquidity: every
// participant's incoming and outgoing legs are the same amount, so the
// pass settles cycles unconditionally once found, without a credit
// check.
func (o *Orchestrator) runCycleSettlement() {
	for i := 0; i < o.cfg.LSM.MaxCyclesPerTick; i++ {
		cycle := o.findCycle(o.cfg.LSM.MaxCycleLength)
		if cycle == nil {
			return
		}
		if !o.settleCycle(cycle) {
			return
		}
	}
}

// settleCycle nets the minimum outstanding amount across every
// transaction in the cycle. Legs whose outstanding amount equals that
// minimum settle fully; a larger, divisible leg settles partially,
// remaining in Queue 2 at its reduced outstanding amount for a future
// pass. A larger, non-divisible leg cannot absorb a partial net, so the
// whole cycle is abandoned rather than settled inconsistently.
func (o *Orchestrator) settleCycle(txIDs []string) bool {
	var txs []*Transaction
	minRemaining := Cents(-1)
	for _, id := range txIDs {
		tx, ok := o.store.get(id)
		if !ok || (tx.Status != StatusQueued2 && tx.Status != StatusOverdue) {
			return false
		}
		remaining := tx.remaining()
		if remaining <= 0 {
			return false
		}
		if minRemaining < 0 || remaining < minRemaining {
			minRemaining = remaining
		}
		txs = append(txs, tx)
	}
	if minRemaining <= 0 {
		return false
	}
	for _, tx := range txs {
		remaining := tx.remaining()
		if remaining != minRemaining && !tx.IsDivisible {
			return false
		}
	}

	var agentCycle []string
	for _, tx := range txs {
		tx.AmountSettled += minRemaining
		agentCycle = append(agentCycle, tx.SenderID)
		if tx.AmountSettled >= tx.Amount {
			tick := o.currentTick
			tx.SettlementTick = &tick
			o.store.setStatus(tx, StatusSettled)
			o.store.queue2Remove(tx.TxID)
		}
	}

	o.journal.emit(EventLsmCycleSettlement, func(e *Event) {
		e.LsmCycleSettlement = &LsmCyclePayload{AgentCycle: agentCycle, TxIDs: append([]string(nil), txIDs...)}
	})
	return true
}
