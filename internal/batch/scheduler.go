// Package batch drives repeated or scheduled simulation runs, in the
// teacher's job/scheduler style: a cron-backed Scheduler running named
// Jobs, each job wrapping one complete run of the kernel from a fresh
// Config to its final tick.
package batch

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/settlement-kernel/internal/kernel"
)

// Job represents a scheduled unit of work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background batch-simulation jobs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "batch_scheduler").Logger(),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("batch scheduler started")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("batch scheduler stopped")
}

// AddJob registers job against a six-field cron schedule (seconds
// first) or a descriptor such as "@every 30s".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("running job")
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", job.Name()).Msg("job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}

// RunNow executes job immediately, outside of its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("running job immediately")
	return job.Run()
}

// RunToCompletionJob drives a single kernel run, config through final
// tick, forwarding every tick's events to sink and checkpointing the
// final state to checkpoints (if non-nil).
type RunToCompletionJob struct {
	name        string
	log         zerolog.Logger
	cfg         *kernel.Config
	sink        kernel.EventSink
	checkpoints kernel.CheckpointStore
	onDone      func(summary RunSummary)
}

// RunSummary is the outcome of one completed batch run.
type RunSummary struct {
	SimulationID   string
	TotalTicks     int64
	Duration       time.Duration
	FinalMetrics   kernel.SystemMetrics
	CheckpointID   string
}

func NewRunToCompletionJob(name string, cfg *kernel.Config, sink kernel.EventSink, checkpoints kernel.CheckpointStore, log zerolog.Logger, onDone func(RunSummary)) *RunToCompletionJob {
	return &RunToCompletionJob{
		name:        name,
		log:         log.With().Str("job", name).Logger(),
		cfg:         cfg,
		sink:        sink,
		checkpoints: checkpoints,
		onDone:      onDone,
	}
}

func (j *RunToCompletionJob) Name() string { return j.name }

func (j *RunToCompletionJob) Run() error {
	start := time.Now()
	o, err := kernel.New(j.cfg)
	if err != nil {
		return fmt.Errorf("batch: failed to construct orchestrator: %w", err)
	}

	totalTicks := int64(j.cfg.Simulation.TicksPerDay) * int64(j.cfg.Simulation.NumDays)
	for tick := int64(0); tick < totalTicks; tick++ {
		result, err := o.Tick()
		if err != nil {
			return fmt.Errorf("batch: tick %d failed: %w", tick, err)
		}
		if j.sink != nil && len(result.Events) > 0 {
			if err := j.sink.WriteEvents(result.Events); err != nil {
				return fmt.Errorf("batch: failed to persist events for tick %d: %w", tick, err)
			}
		}
	}

	summary := RunSummary{
		SimulationID: o.SimulationID(),
		TotalTicks:   totalTicks,
		Duration:     time.Since(start),
		FinalMetrics: o.GetSystemMetrics(),
	}

	if j.checkpoints != nil {
		cp, err := o.SaveState("Automatic", "end of batch run", j.name)
		if err != nil {
			return fmt.Errorf("batch: failed to build final checkpoint: %w", err)
		}
		if err := j.checkpoints.SaveCheckpoint(cp); err != nil {
			return fmt.Errorf("batch: failed to persist final checkpoint: %w", err)
		}
		summary.CheckpointID = cp.CheckpointID
	}

	j.log.Info().
		Str("simulation_id", summary.SimulationID).
		Int64("total_ticks", summary.TotalTicks).
		Dur("duration", summary.Duration).
		Msg("batch run completed")
	if j.onDone != nil {
		j.onDone(summary)
	}
	return nil
}
