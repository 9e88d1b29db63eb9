package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a record does not exist or is already in its
// final state.
var ErrNotFound = errors.New("not found")

// Round status values.
const (
	RoundOpen   = "open"
	RoundSold   = "sold"
	RoundUnsold = "unsold"
)

// Round is the journal record of one auction round.
type Round struct {
	ID           string     `db:"id"`
	GameID       string     `db:"game_id"`
	Tier         int        `db:"tier"`
	ItemID       string     `db:"item_id"`
	OpeningPrice int        `db:"opening_price"`
	Status       string     `db:"status"`
	WinnerID     *string    `db:"winner_id"`
	Amount       *int       `db:"amount"`
	Stopped      bool       `db:"stopped"`
	StartedAt    time.Time  `db:"started_at"`
	ClosedAt     *time.Time `db:"closed_at"`
}

// Standing is one row of a game's final leaderboard.
type Standing struct {
	GameID        string          `db:"game_id"`
	Rank          int             `db:"rank"`
	ParticipantID string          `db:"participant_id"`
	Name          string          `db:"name"`
	Total         decimal.Decimal `db:"total"`
	Rating        decimal.Decimal `db:"rating"`
	CreatedAt     time.Time       `db:"created_at"`
}

// RoundRepository defines round persistence operations.
type RoundRepository interface {
	Create(ctx context.Context, r *Round) error
	Close(ctx context.Context, id, winnerID string, amount int, stopped bool) error
	MarkUnsold(ctx context.Context, id string, stopped bool) error
	ListByGame(ctx context.Context, gameID string) ([]Round, error)
}

// StandingsRepository defines final standings persistence operations.
type StandingsRepository interface {
	// Save replaces the stored standings of the game.
	Save(ctx context.Context, gameID string, rows []Standing) error
	List(ctx context.Context, gameID string) ([]Standing, error)
}
