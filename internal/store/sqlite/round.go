package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/store"
)

// RoundRepo implements store.RoundRepository using database/sql.
type RoundRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewRoundRepo returns a new RoundRepo.
func NewRoundRepo(db *sql.DB, clk clock.Clock) *RoundRepo {
	return &RoundRepo{db: db, clock: clk}
}

func (r *RoundRepo) Create(ctx context.Context, rd *store.Round) error {
	if rd.StartedAt.IsZero() {
		rd.StartedAt = r.clock.Now()
	}
	rd.StartedAt = rd.StartedAt.UTC()
	rd.Status = store.RoundOpen
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rounds (id, game_id, tier, item_id, opening_price, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rd.ID, rd.GameID, rd.Tier, rd.ItemID, rd.OpeningPrice, rd.Status, rd.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("creating round: %w", err)
	}
	return nil
}

func (r *RoundRepo) Close(ctx context.Context, id, winnerID string, amount int, stopped bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET status = ?, winner_id = ?, amount = ?, stopped = ?, closed_at = ?
		 WHERE id = ? AND status = ?`,
		store.RoundSold, winnerID, amount, stopped, r.clock.Now().UTC(), id, store.RoundOpen,
	)
	if err != nil {
		return fmt.Errorf("closing round: %w", err)
	}
	return expectOne(result, id)
}

func (r *RoundRepo) MarkUnsold(ctx context.Context, id string, stopped bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET status = ?, stopped = ?, closed_at = ? WHERE id = ? AND status = ?`,
		store.RoundUnsold, stopped, r.clock.Now().UTC(), id, store.RoundOpen,
	)
	if err != nil {
		return fmt.Errorf("marking round unsold: %w", err)
	}
	return expectOne(result, id)
}

func (r *RoundRepo) ListByGame(ctx context.Context, gameID string) ([]store.Round, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, tier, item_id, opening_price, status, winner_id, amount, stopped, started_at, closed_at
		 FROM rounds WHERE game_id = ? ORDER BY started_at ASC, id ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	defer rows.Close()

	var rounds []store.Round
	for rows.Next() {
		var (
			rd       store.Round
			winnerID sql.NullString
			amount   sql.NullInt64
			closedAt sql.NullTime
		)
		if err := rows.Scan(&rd.ID, &rd.GameID, &rd.Tier, &rd.ItemID, &rd.OpeningPrice, &rd.Status,
			&winnerID, &amount, &rd.Stopped, &rd.StartedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scanning round row: %w", err)
		}
		if winnerID.Valid {
			rd.WinnerID = &winnerID.String
		}
		if amount.Valid {
			n := int(amount.Int64)
			rd.Amount = &n
		}
		if closedAt.Valid {
			rd.ClosedAt = &closedAt.Time
		}
		rounds = append(rounds, rd)
	}
	return rounds, rows.Err()
}

func expectOne(result sql.Result, id string) error {
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("round %s: %w", id, store.ErrNotFound)
	}
	return nil
}
