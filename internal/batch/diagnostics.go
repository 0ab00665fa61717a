package batch

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceStats is a point-in-time host resource reading, taken
// periodically while batch runs are in flight so long sweeps of
// simulations can be correlated against host pressure.
type ResourceStats struct {
	CPUPercent float64
	RAMPercent float64
}

// SampleResources reads CPU and RAM usage over a short interval. Using
// 100ms rather than the usual 1s keeps a diagnostics job from stalling
// a tight run loop for long.
func SampleResources(log zerolog.Logger) ResourceStats {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("failed to sample cpu percent")
		cpuPercent = []float64{0}
	}
	memStat, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("failed to sample memory stats")
		return ResourceStats{CPUPercent: cpuPercent[0]}
	}
	return ResourceStats{CPUPercent: cpuPercent[0], RAMPercent: memStat.UsedPercent}
}

// DiagnosticsJob periodically logs host resource usage while batch
// jobs are running.
type DiagnosticsJob struct {
	log zerolog.Logger
}

func NewDiagnosticsJob(log zerolog.Logger) *DiagnosticsJob {
	return &DiagnosticsJob{log: log.With().Str("job", "diagnostics").Logger()}
}

func (j *DiagnosticsJob) Name() string { return "diagnostics" }

func (j *DiagnosticsJob) Run() error {
	stats := SampleResources(j.log)
	j.log.Info().
		Float64("cpu_percent", stats.CPUPercent).
		Float64("ram_percent", stats.RAMPercent).
		Msg("host resource sample")
	return nil
}
