package event

import "context"

// Store persists and retrieves events.
type Store interface {
	// Append persists one or more events atomically.
	Append(ctx context.Context, events ...Event) error
	// Load returns all events for an aggregate, ordered by version.
	Load(ctx context.Context, aggregateID string) ([]Event, error)
	// LoadByType returns events of one type for a game, oldest first.
	LoadByType(ctx context.Context, gameID string, eventType Type) ([]Event, error)
}
