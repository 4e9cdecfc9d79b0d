package store

import (
	"database/sql"
	"fmt"

	"github.com/mtarnawa/hanashi/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Insert records a billing event id write-once. Returns false when the id
// was already present; the caller must drop the event without mutating any
// account state. The primary-key constraint, not a prior read, is what makes
// this race-safe under concurrent redelivery.
func (s *EventStore) Insert(eventID, eventType string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO billed_events (event_id, event_type) VALUES (?, ?)`,
		eventID, eventType,
	)
	if err != nil {
		return false, fmt.Errorf("insert billed event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (s *EventStore) GetByID(eventID string) (*model.BilledEvent, error) {
	var e model.BilledEvent
	err := s.db.QueryRow(
		`SELECT event_id, event_type, processed_at FROM billed_events WHERE event_id = ?`,
		eventID,
	).Scan(&e.EventID, &e.EventType, &e.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get billed event: %w", err)
	}
	return &e, nil
}
