package kernel

import "sort"

// store is the single owner of every transaction record, arena-indexed
// by a dense integer behind an id->index map (spec §9 design note).
// Queue 2 is kept as an explicit total order over tx_ids.
type store struct {
	arena []*Transaction
	index map[string]int

	queue2 []string // tx_ids, maintained in (-priority, submission_tick, tx_id) order
}

func newStore() *store {
	return &store{index: make(map[string]int)}
}

func (s *store) add(tx *Transaction) {
	s.index[tx.TxID] = len(s.arena)
	s.arena = append(s.arena, tx)
}

func (s *store) get(txID string) (*Transaction, bool) {
	i, ok := s.index[txID]
	if !ok {
		return nil, false
	}
	return s.arena[i], true
}

func (s *store) has(txID string) bool {
	_, ok := s.index[txID]
	return ok
}

func (s *store) all() []*Transaction {
	return s.arena
}

// queue2Less is the total order of spec §4.3: declared priority
// descending, submission tick ascending, tx_id ascending as the final
// deterministic tiebreak.
func (s *store) queue2Less(a, b string) bool {
	ta, _ := s.get(a)
	tb, _ := s.get(b)
	if ta.DeclaredRTGSPriority != tb.DeclaredRTGSPriority {
		return ta.DeclaredRTGSPriority > tb.DeclaredRTGSPriority
	}
	if ta.SubmissionTick != tb.SubmissionTick {
		return ta.SubmissionTick < tb.SubmissionTick
	}
	return ta.TxID < tb.TxID
}

// queue2Insert adds txID to Queue 2 keeping the total order.
func (s *store) queue2Insert(txID string) {
	i := sort.Search(len(s.queue2), func(i int) bool {
		return s.queue2Less(txID, s.queue2[i])
	})
	s.queue2 = append(s.queue2, "")
	copy(s.queue2[i+1:], s.queue2[i:])
	s.queue2[i] = txID
}

// queue2Remove removes txID from Queue 2 if present.
func (s *store) queue2Remove(txID string) {
	for i, id := range s.queue2 {
		if id == txID {
			s.queue2 = append(s.queue2[:i], s.queue2[i+1:]...)
			return
		}
	}
}

func (s *store) queue2Snapshot() []string {
	return append([]string(nil), s.queue2...)
}

// setStatus transitions a transaction's status, enforcing the legal
// transition graph (INV-STATUS).
func (s *store) setStatus(tx *Transaction, to TxStatus) bool {
	if !CanTransition(tx.Status, to) {
		return false
	}
	tx.Status = to
	return true
}
