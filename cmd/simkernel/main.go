// Command simkernel is a standalone driver for the settlement kernel:
// it builds a demonstration Config, runs it tick by tick, persists
// every emitted event and a final checkpoint to sqlite, and logs
// periodic host resource diagnostics while the run is in flight.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/settlement-kernel/internal/batch"
	"github.com/aristath/settlement-kernel/internal/kernel"
	"github.com/aristath/settlement-kernel/internal/kernel/policy"
	"github.com/aristath/settlement-kernel/internal/persistence"
	"github.com/aristath/settlement-kernel/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting settlement kernel driver")

	cfg, err := loadDriverConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load driver configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	db, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open event store")
	}
	defer db.Close()

	store := persistence.NewEventStore(db, log)

	sched := batch.New(log)
	sched.Start()
	defer sched.Stop()

	if err := sched.AddJob("@every 30s", batch.NewDiagnosticsJob(log)); err != nil {
		log.Fatal().Err(err).Msg("failed to register diagnostics job")
	}

	simCfg := demoSimulationConfig(cfg)
	done := make(chan batch.RunSummary, 1)
	job := batch.NewRunToCompletionJob("demo_run", simCfg, store, store, log, func(summary batch.RunSummary) {
		done <- summary
	})

	go func() {
		if err := sched.RunNow(job); err != nil {
			log.Error().Err(err).Msg("simulation run failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case summary := <-done:
		log.Info().
			Str("simulation_id", summary.SimulationID).
			Int64("total_ticks", summary.TotalTicks).
			Dur("duration", summary.Duration).
			Str("checkpoint_id", summary.CheckpointID).
			Msg("run completed")
	case <-quit:
		log.Info().Msg("received shutdown signal before run completed")
	}

	log.Info().Msg("settlement kernel driver stopped")
}

// demoSimulationConfig builds a small, illustrative three-agent
// simulation: one FIFO participant, one deadline-aware participant,
// and one liquidity-aware participant trading with each other.
func demoSimulationConfig(driver *driverConfig) *kernel.Config {
	urgency := int64(3)
	buffer := int64(50_00)

	return &kernel.Config{
		Simulation: kernel.SimulationConfig{
			TicksPerDay: driver.TicksPerDay,
			NumDays:     driver.NumDays,
			RNGSeed:     driver.RNGSeed,
		},
		HaircutBps: 1000,
		CostRates: kernel.CostRates{
			OverdraftBpsPerTick:       5,
			DelayCostPerTickPerCentBp: 2,
			CollateralBpsPerTick:      1,
			DeadlinePenaltyCents:      500_00,
			SplitFrictionCostCents:    10_00,
			OverdueDelayMultiplierX10: 50,
		},
		LSM: kernel.DefaultLSMConfig(),
		Agents: []kernel.AgentConfig{
			{
				ID: "bank_a", OpeningBalance: 1_000_000_00, UnsecuredCap: 100_000_00,
				MaxCollateralCapacity: 200_000_00, PostedCollateral: 0,
				Policy: &policy.Ref{Type: "Fifo"},
				ArrivalConfig: &kernel.ArrivalConfig{
					RatePerTick:         0.4,
					AmountDistribution:  kernel.AmountDist{Kind: kernel.DistUniform, Min: 100_00, Max: 5_000_00},
					CounterpartyWeights: map[string]float64{"bank_b": 1, "bank_c": 1},
					DeadlineRangeMin:    2, DeadlineRangeMax: 10, Priority: 5,
				},
			},
			{
				ID: "bank_b", OpeningBalance: 500_000_00, UnsecuredCap: 50_000_00,
				MaxCollateralCapacity: 150_000_00, PostedCollateral: 0,
				Policy: &policy.Ref{Type: "Deadline", UrgencyThreshold: &urgency},
				ArrivalConfig: &kernel.ArrivalConfig{
					RatePerTick:         0.3,
					AmountDistribution:  kernel.AmountDist{Kind: kernel.DistLogNormal, Mu: 10, Sigma: 1},
					CounterpartyWeights: map[string]float64{"bank_a": 1, "bank_c": 1},
					DeadlineRangeMin:    1, DeadlineRangeMax: 6, Priority: 5,
				},
			},
			{
				ID: "bank_c", OpeningBalance: 300_000_00, UnsecuredCap: 30_000_00,
				MaxCollateralCapacity: 300_000_00, PostedCollateral: 20_000_00,
				Policy: &policy.Ref{Type: "LiquidityAware", TargetBuffer: &buffer, UrgencyThreshold: &urgency},
				ArrivalConfig: &kernel.ArrivalConfig{
					RatePerTick:         0.35,
					AmountDistribution:  kernel.AmountDist{Kind: kernel.DistUniform, Min: 50_00, Max: 3_000_00},
					CounterpartyWeights: map[string]float64{"bank_a": 1, "bank_b": 1},
					DeadlineRangeMin:    2, DeadlineRangeMax: 8, Priority: 3,
				},
			},
		},
	}
}
