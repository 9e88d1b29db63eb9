package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/store"
)

// RoundRepo implements store.RoundRepository with sqlx.
type RoundRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewRoundRepo returns a new RoundRepo.
func NewRoundRepo(db *sqlx.DB, clk clock.Clock) *RoundRepo {
	return &RoundRepo{db: db, clock: clk}
}

func (r *RoundRepo) Create(ctx context.Context, rd *store.Round) error {
	if rd.StartedAt.IsZero() {
		rd.StartedAt = r.clock.Now().UTC()
	}
	rd.Status = store.RoundOpen
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO rounds (id, game_id, tier, item_id, opening_price, status, started_at)
		 VALUES (:id, :game_id, :tier, :item_id, :opening_price, :status, :started_at)`, rd)
	if err != nil {
		return fmt.Errorf("creating round: %w", err)
	}
	return nil
}

func (r *RoundRepo) Close(ctx context.Context, id, winnerID string, amount int, stopped bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET status = $1, winner_id = $2, amount = $3, stopped = $4, closed_at = $5
		 WHERE id = $6 AND status = $7`,
		store.RoundSold, winnerID, amount, stopped, r.clock.Now().UTC(), id, store.RoundOpen,
	)
	if err != nil {
		return fmt.Errorf("closing round: %w", err)
	}
	return expectOne(result, id)
}

func (r *RoundRepo) MarkUnsold(ctx context.Context, id string, stopped bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET status = $1, stopped = $2, closed_at = $3 WHERE id = $4 AND status = $5`,
		store.RoundUnsold, stopped, r.clock.Now().UTC(), id, store.RoundOpen,
	)
	if err != nil {
		return fmt.Errorf("marking round unsold: %w", err)
	}
	return expectOne(result, id)
}

func (r *RoundRepo) ListByGame(ctx context.Context, gameID string) ([]store.Round, error) {
	var rounds []store.Round
	err := r.db.SelectContext(ctx, &rounds,
		`SELECT id, game_id, tier, item_id, opening_price, status, winner_id, amount, stopped, started_at, closed_at
		 FROM rounds WHERE game_id = $1 ORDER BY started_at ASC, id ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	return rounds, nil
}

func expectOne(result sql.Result, id string) error {
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("round %s: %w", id, store.ErrNotFound)
	}
	return nil
}
