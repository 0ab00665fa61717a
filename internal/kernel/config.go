package kernel

import (
	"fmt"

	"github.com/aristath/settlement-kernel/internal/kernel/policy"
)

// Config is the fully validated, in-memory configuration consumed by
// New. The kernel never parses configuration files itself (spec §1
// Non-goal); that is the driver's job (see cmd/simkernel).
type Config struct {
	Simulation SimulationConfig `json:"simulation"`
	Agents     []AgentConfig    `json:"agent_configs"`
	CostRates  CostRates        `json:"cost_rates"`
	LSM        LSMConfig        `json:"lsm_config"`

	ScenarioEvents []ScenarioEvent `json:"scenario_events,omitempty"`

	FeatureToggles PolicyFeatureToggles `json:"policy_feature_toggles,omitempty"`

	// HaircutBps is the collateral haircut, expressed in basis points,
	// applied when computing the allowed overdraft limit.
	HaircutBps int64 `json:"haircut_bps"`
}

type SimulationConfig struct {
	TicksPerDay int   `json:"ticks_per_day"`
	NumDays     int   `json:"num_days"`
	RNGSeed     int64 `json:"rng_seed"`
}

type AgentConfig struct {
	ID                    string         `json:"id"`
	OpeningBalance        Cents          `json:"opening_balance"`
	UnsecuredCap          Cents          `json:"unsecured_cap"`
	MaxCollateralCapacity Cents          `json:"max_collateral_capacity"`
	PostedCollateral      Cents          `json:"posted_collateral"`
	Policy                *policy.Ref    `json:"policy"`
	ArrivalConfig         *ArrivalConfig `json:"arrival_config,omitempty"`
}

// CostRates holds the per-tick accrual rates of spec §4.7. Rates that
// scale a cents amount are expressed in basis points (bps, 1/100 of a
// percent) to keep every computation integer.
type CostRates struct {
	OverdraftBpsPerTick       int64 `json:"overdraft_bps_per_tick"`
	DelayCostPerTickPerCentBp int64 `json:"delay_cost_per_tick_per_cent_bp"`
	CollateralBpsPerTick      int64 `json:"collateral_bps_per_tick"`
	DeadlinePenaltyCents      Cents `json:"deadline_penalty"`
	SplitFrictionCostCents    Cents `json:"split_friction_cost"`
	// OverdueDelayMultiplierX10 is overdue_delay_multiplier * 10 kept
	// as an integer; zero selects the default 50 == 5.0x.
	OverdueDelayMultiplierX10 int64 `json:"overdue_delay_multiplier_x10"`
	// EODPenaltyCents is charged once per unsettled obligation an agent
	// still holds as sender at end-of-day. Zero (the default) disables
	// the EOD penalty entirely, matching spec §4.8's "optional,
	// scenario-driven" wording.
	EODPenaltyCents Cents `json:"eod_penalty"`
}

type LSMConfig struct {
	EnableBilateral bool `json:"enable_bilateral"`
	EnableCycles    bool `json:"enable_cycles"`
	MaxCycleLength  int  `json:"max_cycle_length"`
	MaxCyclesPerTick int `json:"max_cycles_per_tick"`
}

func DefaultLSMConfig() LSMConfig {
	return LSMConfig{
		EnableBilateral:  true,
		EnableCycles:     true,
		MaxCycleLength:   4,
		MaxCyclesPerTick: 8,
	}
}

// ScenarioEventType enumerates the scheduled event kinds of spec §6.
type ScenarioEventType string

const (
	ScenarioDirectTransfer           ScenarioEventType = "DirectTransfer"
	ScenarioCustomTransactionArrival ScenarioEventType = "CustomTransactionArrival"
	ScenarioCollateralAdjustment     ScenarioEventType = "CollateralAdjustment"
	ScenarioGlobalArrivalRateChange  ScenarioEventType = "GlobalArrivalRateChange"
)

type ScenarioSchedule struct {
	// Kind is either "OneTime" or "Repeating".
	Kind         string `json:"kind"`
	Tick         Tick   `json:"tick,omitempty"`
	StartTick    Tick   `json:"start_tick,omitempty"`
	IntervalTick Tick   `json:"interval,omitempty"`
}

// fires reports whether the schedule triggers at the given tick.
func (s ScenarioSchedule) fires(tick Tick) bool {
	switch s.Kind {
	case "OneTime":
		return tick == s.Tick
	case "Repeating":
		if tick < s.StartTick || s.IntervalTick <= 0 {
			return false
		}
		return (tick-s.StartTick)%s.IntervalTick == 0
	default:
		return false
	}
}

type ScenarioEvent struct {
	Type       ScenarioEventType `json:"type"`
	Schedule   ScenarioSchedule  `json:"schedule"`
	SenderID   string            `json:"sender_id,omitempty"`
	ReceiverID string            `json:"receiver_id,omitempty"`
	Amount     Cents             `json:"amount,omitempty"`
	Deadline   Tick              `json:"deadline_tick,omitempty"`
	Priority   int               `json:"priority,omitempty"`
	Divisible  bool              `json:"is_divisible,omitempty"`

	AgentID       string `json:"agent_id,omitempty"`
	CollateralAdj Cents  `json:"collateral_delta,omitempty"`

	NewRatePerTick float64 `json:"new_rate_per_tick,omitempty"`
}

type PolicyFeatureToggles struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Validate checks structural invariants of the configuration that must
// hold before New constructs an orchestrator.
func (c *Config) Validate() error {
	if c.Simulation.TicksPerDay <= 0 {
		return fmt.Errorf("config: ticks_per_day must be > 0")
	}
	if c.Simulation.NumDays <= 0 {
		return fmt.Errorf("config: num_days must be > 0")
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("config: at least one agent is required")
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("config: agent id must not be empty")
		}
		if seen[a.ID] {
			return fmt.Errorf("config: duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.UnsecuredCap < 0 {
			return fmt.Errorf("config: agent %q unsecured_cap must be >= 0", a.ID)
		}
		if a.PostedCollateral < 0 {
			return fmt.Errorf("config: agent %q posted_collateral must be >= 0", a.ID)
		}
		if a.MaxCollateralCapacity < a.PostedCollateral {
			return fmt.Errorf("config: agent %q max_collateral_capacity must be >= posted_collateral", a.ID)
		}
		if a.Policy == nil {
			return fmt.Errorf("config: agent %q must have a policy", a.ID)
		}
	}
	if c.HaircutBps < 0 || c.HaircutBps > 10000 {
		return fmt.Errorf("config: haircut_bps must be in [0,10000]")
	}
	if c.LSM.MaxCycleLength < 0 {
		return fmt.Errorf("config: lsm max_cycle_length must be >= 0")
	}
	return nil
}
