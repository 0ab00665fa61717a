package kernel

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// AmountDistKind names one of the three amount distributions spec
// §4.2 requires.
type AmountDistKind string

const (
	DistUniform   AmountDistKind = "Uniform"
	DistLogNormal AmountDistKind = "LogNormal"
	DistConstant  AmountDistKind = "Constant"
)

// AmountDist is a named amount distribution. Only the fields relevant
// to Kind are populated.
type AmountDist struct {
	Kind  AmountDistKind `json:"kind"`
	Min   Cents          `json:"min,omitempty"`
	Max   Cents          `json:"max,omitempty"`
	Mu    float64        `json:"mu,omitempty"`
	Sigma float64        `json:"sigma,omitempty"`
	Value Cents          `json:"value,omitempty"`
}

// sample draws one amount in cents using src as the deterministic
// entropy source. Uniform and LogNormal are drawn with gonum's distuv
// (the teacher's existing numeric-computation dependency), truncated
// to an integer cent.
func (d AmountDist) sample(src rand.Source) (Cents, error) {
	switch d.Kind {
	case DistConstant:
		return d.Value, nil
	case DistUniform:
		if d.Max < d.Min {
			return 0, fmt.Errorf("arrivals: uniform distribution has max < min")
		}
		u := distuv.Uniform{Min: float64(d.Min), Max: float64(d.Max) + 1, Src: src}
		v := int64(u.Rand())
		if v > d.Max {
			v = d.Max
		}
		if v < d.Min {
			v = d.Min
		}
		return v, nil
	case DistLogNormal:
		ln := distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma, Src: src}
		v := int64(ln.Rand())
		if v < 1 {
			v = 1
		}
		return v, nil
	default:
		return 0, fmt.Errorf("arrivals: unknown amount distribution kind %q", d.Kind)
	}
}

// ArrivalConfig governs one agent's per-tick arrival stream.
type ArrivalConfig struct {
	RatePerTick          float64            `json:"rate_per_tick"`
	AmountDistribution   AmountDist         `json:"amount_distribution"`
	CounterpartyWeights  map[string]float64 `json:"counterparty_weights"`
	DeadlineRangeMin     Tick               `json:"deadline_range_min"`
	DeadlineRangeMax     Tick               `json:"deadline_range_max"`
	Priority             int                `json:"priority"`
	Divisible            bool               `json:"is_divisible"`
}

// generateArrivalsForAgent performs the deterministic per-agent,
// per-tick draw of spec §4.2: a Bernoulli trigger against
// RatePerTick, a weighted counterparty choice, an amount sample, and a
// uniform-integer deadline offset. Returns zero or one transaction.
func (o *Orchestrator) generateArrivalsForAgent(agentID string, tick Tick) (*Transaction, error) {
	agent := o.agents[agentID]
	cfg := agent.ArrivalConfig
	if cfg == nil {
		return nil, nil
	}
	src := deterministicSrc(o.cfg.Simulation.RNGSeed, arrivalKey(agentID, tick))
	r := rand.New(src)
	if r.Float64() >= cfg.RatePerTick {
		return nil, nil
	}

	counterparty, err := weightedChoice(cfg.CounterpartyWeights, agentID, r)
	if err != nil {
		return nil, err
	}

	amount, err := cfg.AmountDistribution.sample(src)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		amount = 1
	}

	span := int64(cfg.DeadlineRangeMax - cfg.DeadlineRangeMin)
	offset := Tick(0)
	if span > 0 {
		offset = Tick(r.Int63n(span + 1))
	}
	deadline := tick + cfg.DeadlineRangeMin + offset

	tx := &Transaction{
		SenderID:     agentID,
		ReceiverID:   counterparty,
		Amount:       amount,
		Priority:     cfg.Priority,
		ArrivalTick:  tick,
		DeadlineTick: deadline,
		IsDivisible:  cfg.Divisible,
		Status:       StatusPending,
	}
	return tx, nil
}

// deterministicSrc adapts deterministicRand's key hashing into the
// golang.org/x/exp/rand.Source gonum's distuv expects.
func deterministicSrc(masterSeed int64, parts []string) rand.Source {
	r := deterministicRand(masterSeed, parts...)
	var src rand.Source = rand.NewSource(r.Uint64())
	return src
}

// weightedChoice selects a counterparty id (excluding sender) by
// weighted draw. Iteration order over weights is the sorted key order
// so the draw is reproducible independent of map iteration order.
func weightedChoice(weights map[string]float64, exclude string, r *rand.Rand) (string, error) {
	type wk struct {
		id string
		w  float64
	}
	var entries []wk
	var total float64
	for id, w := range weights {
		if id == exclude || w <= 0 {
			continue
		}
		entries = append(entries, wk{id, w})
		total += w
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("arrivals: no eligible counterparty for sender %q", exclude)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	draw := r.Float64() * total
	var cum float64
	for _, e := range entries {
		cum += e.w
		if draw <= cum {
			return e.id, nil
		}
	}
	return entries[len(entries)-1].id, nil
}
