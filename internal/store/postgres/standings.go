package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/zoo-auction/internal/store"
)

// StandingsRepo implements store.StandingsRepository with sqlx.
type StandingsRepo struct {
	db *sqlx.DB
}

// NewStandingsRepo returns a new StandingsRepo.
func NewStandingsRepo(db *sqlx.DB) *StandingsRepo {
	return &StandingsRepo{db: db}
}

func (r *StandingsRepo) Save(ctx context.Context, gameID string, rows []store.Standing) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM standings WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("clearing standings: %w", err)
	}
	for _, s := range rows {
		s.GameID = gameID
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO standings (game_id, rank, participant_id, name, total, rating, created_at)
			 VALUES (:game_id, :rank, :participant_id, :name, :total, :rating, :created_at)`, s); err != nil {
			return fmt.Errorf("inserting standing for %s: %w", s.ParticipantID, err)
		}
	}
	return tx.Commit()
}

func (r *StandingsRepo) List(ctx context.Context, gameID string) ([]store.Standing, error) {
	var rows []store.Standing
	err := r.db.SelectContext(ctx, &rows,
		`SELECT game_id, rank, participant_id, name, total, rating, created_at
		 FROM standings WHERE game_id = $1 ORDER BY rank ASC, participant_id ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing standings: %w", err)
	}
	return rows, nil
}
