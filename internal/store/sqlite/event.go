package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jensholdgaard/zoo-auction/internal/event"
)

// EventStore implements event.Store using database/sql.
type EventStore struct {
	db *sql.DB
}

// NewEventStore returns a new EventStore.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, game_id, aggregate_id, type, data, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.ID, e.GameID, e.AggregateID, string(e.Type), string(e.Data), e.Version, e.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("inserting event (aggregate=%s, version=%d): %w", e.AggregateID, e.Version, err)
		}
	}

	return tx.Commit()
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, aggregate_id, type, data, version, created_at
		 FROM events WHERE aggregate_id = ? ORDER BY version ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return scanEvents(rows)
}

func (s *EventStore) LoadByType(ctx context.Context, gameID string, eventType event.Type) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, aggregate_id, type, data, version, created_at
		 FROM events WHERE game_id = ? AND type = ? ORDER BY seq ASC`, gameID, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("loading events by type: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var e event.Event
		var typ, data string
		if err := rows.Scan(&e.ID, &e.GameID, &e.AggregateID, &typ, &data, &e.Version, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.Type = event.Type(typ)
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}
	return events, rows.Err()
}
