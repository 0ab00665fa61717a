package batch

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/settlement-kernel/internal/kernel"
	"github.com/aristath/settlement-kernel/internal/kernel/policy"
)

func testConfig() *kernel.Config {
	return &kernel.Config{
		Simulation: kernel.SimulationConfig{TicksPerDay: 5, NumDays: 1, RNGSeed: 1},
		Agents: []kernel.AgentConfig{
			{ID: "A", OpeningBalance: 10_000, Policy: &policy.Ref{Type: "Fifo"}},
			{ID: "B", OpeningBalance: 10_000, Policy: &policy.Ref{Type: "Fifo"}},
		},
	}
}

type fakeSink struct {
	batches [][]*kernel.Event
}

func (f *fakeSink) WriteEvents(events []*kernel.Event) error {
	f.batches = append(f.batches, events)
	return nil
}

type fakeCheckpointStore struct {
	saved []*kernel.Checkpoint
}

func (f *fakeCheckpointStore) SaveCheckpoint(cp *kernel.Checkpoint) error {
	f.saved = append(f.saved, cp)
	return nil
}

func (f *fakeCheckpointStore) LoadCheckpoint(id string) (*kernel.Checkpoint, error) {
	for _, cp := range f.saved {
		if cp.CheckpointID == id {
			return cp, nil
		}
	}
	return nil, assert.AnError
}

func TestRunToCompletionJob_RunsAllTicksAndCheckpoints(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeCheckpointStore{}
	var gotSummary RunSummary
	job := NewRunToCompletionJob("nightly", testConfig(), sink, store, zerolog.Nop(), func(s RunSummary) {
		gotSummary = s
	})

	require.NoError(t, job.Run())
	assert.Equal(t, "nightly", job.Name())
	assert.Equal(t, int64(5), gotSummary.TotalTicks)
	assert.NotEmpty(t, gotSummary.SimulationID)
	assert.Len(t, store.saved, 1)
	assert.Equal(t, gotSummary.CheckpointID, store.saved[0].CheckpointID)
}

func TestRunToCompletionJob_NoCheckpointStoreIsOptional(t *testing.T) {
	job := NewRunToCompletionJob("nightly", testConfig(), nil, nil, zerolog.Nop(), nil)
	assert.NoError(t, job.Run())
}

func TestScheduler_AddJobAndRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	ran := false
	job := &fnJob{name: "manual", fn: func() error { ran = true; return nil }}

	require.NoError(t, s.AddJob("@every 1h", job))
	require.NoError(t, s.RunNow(job))
	assert.True(t, ran)
}

func TestScheduler_AddJob_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &fnJob{name: "bad"})
	assert.Error(t, err)
}

type fnJob struct {
	name string
	fn   func() error
}

func (j *fnJob) Name() string { return j.name }
func (j *fnJob) Run() error {
	if j.fn != nil {
		return j.fn()
	}
	return nil
}
