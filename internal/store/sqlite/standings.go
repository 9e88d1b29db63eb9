package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jensholdgaard/zoo-auction/internal/store"
)

// StandingsRepo implements store.StandingsRepository using database/sql.
type StandingsRepo struct {
	db *sql.DB
}

// NewStandingsRepo returns a new StandingsRepo.
func NewStandingsRepo(db *sql.DB) *StandingsRepo {
	return &StandingsRepo{db: db}
}

func (r *StandingsRepo) Save(ctx context.Context, gameID string, rows []store.Standing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM standings WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("clearing standings: %w", err)
	}
	for _, s := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO standings (game_id, rank, participant_id, name, total, rating, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			gameID, s.Rank, s.ParticipantID, s.Name, s.Total.String(), s.Rating.String(), s.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("inserting standing for %s: %w", s.ParticipantID, err)
		}
	}
	return tx.Commit()
}

func (r *StandingsRepo) List(ctx context.Context, gameID string) ([]store.Standing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, rank, participant_id, name, total, rating, created_at
		 FROM standings WHERE game_id = ? ORDER BY rank ASC, participant_id ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing standings: %w", err)
	}
	defer rows.Close()

	var out []store.Standing
	for rows.Next() {
		var s store.Standing
		if err := rows.Scan(&s.GameID, &s.Rank, &s.ParticipantID, &s.Name, &s.Total, &s.Rating, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning standing row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
