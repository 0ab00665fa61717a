package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/settlement-kernel/internal/kernel"
)

// EventStore implements kernel.EventSink and kernel.CheckpointStore
// against the sqlite-backed DB, in the BaseRepository pattern the
// teacher's repositories package documents.
type EventStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewEventStore(db *DB, log zerolog.Logger) *EventStore {
	return &EventStore{db: db.Conn(), log: log.With().Str("repo", "eventstore").Logger()}
}

// WriteEvents persists a batch of events in one transaction. Events
// are already JSON-flattened by kernel.Event.MarshalJSON, so the
// payload column holds the exact wire representation.
func (s *EventStore) WriteEvents(events []*kernel.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("eventstore: begin failed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO events (simulation_id, tick, seq_in_tick, event_type, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("eventstore: prepare failed: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("eventstore: marshal event failed: %w", err)
		}
		if _, err := stmt.Exec(e.SimulationID, e.Tick, e.SeqInTick, string(e.Type), string(payload)); err != nil {
			return fmt.Errorf("eventstore: insert failed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("eventstore: commit failed: %w", err)
	}
	s.log.Debug().Int("count", len(events)).Msg("wrote events")
	return nil
}

// SaveCheckpoint persists a checkpoint's full state blob alongside its
// config_hash/state_hash binding.
func (s *EventStore) SaveCheckpoint(cp *kernel.Checkpoint) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO checkpoints (checkpoint_id, simulation_id, config_hash, state_hash, tick, day, checkpoint_type, description, created_by, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.CheckpointID, cp.SimulationID, cp.ConfigHash, cp.StateHash, cp.Tick, cp.Day, cp.CheckpointType, cp.Description, cp.CreatedBy, cp.State,
	)
	if err != nil {
		return fmt.Errorf("eventstore: save checkpoint failed: %w", err)
	}
	s.log.Info().Str("checkpoint_id", cp.CheckpointID).Msg("saved checkpoint")
	return nil
}

// LoadCheckpoint retrieves a checkpoint by id.
func (s *EventStore) LoadCheckpoint(checkpointID string) (*kernel.Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT checkpoint_id, simulation_id, config_hash, state_hash, tick, day, checkpoint_type, description, created_by, state
		 FROM checkpoints WHERE checkpoint_id = ?`, checkpointID)

	var cp kernel.Checkpoint
	var description, createdBy sql.NullString
	if err := row.Scan(&cp.CheckpointID, &cp.SimulationID, &cp.ConfigHash, &cp.StateHash, &cp.Tick, &cp.Day, &cp.CheckpointType, &description, &createdBy, &cp.State); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("eventstore: checkpoint %q not found", checkpointID)
		}
		return nil, fmt.Errorf("eventstore: load checkpoint failed: %w", err)
	}
	cp.Description = description.String
	cp.CreatedBy = createdBy.String
	return &cp, nil
}
