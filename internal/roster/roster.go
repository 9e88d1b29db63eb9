// Package roster maps chat users to the zoos they claimed.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotClaimed   = errors.New("no zoo claimed in this game")
	ErrAlreadyBound = errors.New("user already claimed a zoo in this game")
)

// Game is the part of the game controller the roster needs.
type Game interface {
	Claim(ctx context.Context, participantID, name string) error
	GameID() string
}

type binding struct {
	participantID string
	gameID        string
}

// Manager binds users to zoos for the current game. Bindings from an earlier
// game, including one replaced by a reset, are ignored.
type Manager struct {
	mu       sync.RWMutex
	bindings map[string]binding

	game   Game
	logger *slog.Logger
	tracer trace.Tracer
}

// NewManager returns a new roster Manager.
func NewManager(g Game, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		bindings: make(map[string]binding),
		game:     g,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/zoo-auction/internal/roster"),
	}
}

// Claim claims participantID for userID under displayName.
func (m *Manager) Claim(ctx context.Context, userID, displayName, participantID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Claim",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("participant_id", participantID),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	gameID := m.game.GameID()
	if b, ok := m.bindings[userID]; ok && b.gameID == gameID {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, b.participantID)
	}
	if err := m.game.Claim(ctx, participantID, displayName); err != nil {
		return fmt.Errorf("claiming zoo: %w", err)
	}
	m.bindings[userID] = binding{participantID: participantID, gameID: gameID}

	m.logger.InfoContext(ctx, "zoo claimed",
		slog.String("user_id", userID),
		slog.String("participant_id", participantID),
		slog.String("name", displayName),
	)
	return nil
}

// Lookup returns the zoo userID claimed in the current game.
func (m *Manager) Lookup(userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bindings[userID]
	if !ok || b.gameID != m.game.GameID() {
		return "", ErrNotClaimed
	}
	return b.participantID, nil
}
