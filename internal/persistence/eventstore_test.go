package persistence

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/settlement-kernel/internal/kernel"
)

func setupTestDB(t *testing.T) *DB {
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	db := &DB{conn: conn}
	require.NoError(t, db.migrate())
	return db
}

func TestEventStore_WriteAndQueryEvents(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := NewEventStore(db, zerolog.Nop())

	events := []*kernel.Event{
		{SimulationID: "sim-1", Tick: 0, SeqInTick: 0, Type: kernel.EventArrival,
			Arrival: &kernel.ArrivalPayload{TxID: "tx-1", SenderID: "A", ReceiverID: "B", Amount: 1000, DeadlineTick: 5}},
		{SimulationID: "sim-1", Tick: 0, SeqInTick: 1, Type: kernel.EventRtgsImmediateSettlement,
			RtgsImmediateSettlement: &kernel.SettlementPayload{TxID: "tx-1", SenderID: "A", ReceiverID: "B", Amount: 1000}},
	}

	require.NoError(t, store.WriteEvents(events))

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM events WHERE simulation_id = ?`, "sim-1").Scan(&count))
	assert.Equal(t, 2, count)

	// Re-writing the same (simulation_id, tick, seq_in_tick) key replaces
	// rather than duplicates, matching INSERT OR REPLACE semantics.
	require.NoError(t, store.WriteEvents(events[:1]))
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM events WHERE simulation_id = ?`, "sim-1").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestEventStore_WriteEvents_Empty(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := NewEventStore(db, zerolog.Nop())
	assert.NoError(t, store.WriteEvents(nil))
}

func TestEventStore_SaveAndLoadCheckpoint(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := NewEventStore(db, zerolog.Nop())

	cp := &kernel.Checkpoint{
		CheckpointID:   "cp-1",
		SimulationID:   "sim-1",
		ConfigHash:     "hash-a",
		StateHash:      "hash-b",
		Tick:           12,
		Day:            1,
		CheckpointType: "Manual",
		Description:    "before EOD",
		CreatedBy:      "test",
		State:          []byte(`{"foo":"bar"}`),
	}
	require.NoError(t, store.SaveCheckpoint(cp))

	got, err := store.LoadCheckpoint("cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp.SimulationID, got.SimulationID)
	assert.Equal(t, cp.ConfigHash, got.ConfigHash)
	assert.Equal(t, cp.StateHash, got.StateHash)
	assert.Equal(t, cp.Tick, got.Tick)
	assert.Equal(t, cp.Description, got.Description)
	assert.Equal(t, cp.State, got.State)
}

func TestEventStore_LoadCheckpoint_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := NewEventStore(db, zerolog.Nop())

	_, err := store.LoadCheckpoint("missing")
	assert.Error(t, err)
}
