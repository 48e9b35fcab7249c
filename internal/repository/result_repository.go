package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ecarrasco/dropwatch/internal/database"
	"github.com/ecarrasco/dropwatch/internal/models"
)

// ResultRepository persists the immutable Result row per event.
type ResultRepository interface {
	Insert(ctx context.Context, r *models.Result) (written bool, err error)
	GetByEventID(ctx context.Context, eventID int64) (*models.Result, error)
	Exists(ctx context.Context, eventID int64) (bool, error)
}

// PostgresResultRepository implements ResultRepository.
type PostgresResultRepository struct {
	db *database.DB
}

// NewPostgresResultRepository creates a new result repository.
func NewPostgresResultRepository(db *database.DB) *PostgresResultRepository {
	return &PostgresResultRepository{db: db}
}

// Insert writes a Result row, first-write-wins: a uniqueness violation
// on event_id is swallowed and reported as written=false rather than an
// error, per §7's "re-writes are rejected" rule.
func (r *PostgresResultRepository) Insert(ctx context.Context, res *models.Result) (bool, error) {
	query := `
		INSERT INTO results (event_id, home_score, away_score, winner_side, point_diff, collected_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (event_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, res.EventID, res.HomeScore, res.AwayScore, res.WinnerSide, res.PointDiff, res.CollectedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("insert result for event %d: %w", res.EventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresResultRepository) GetByEventID(ctx context.Context, eventID int64) (*models.Result, error) {
	query := `SELECT event_id, home_score, away_score, winner_side, point_diff, collected_at FROM results WHERE event_id = $1`
	res := &models.Result{}
	err := r.db.QueryRow(ctx, query, eventID).Scan(
		&res.EventID, &res.HomeScore, &res.AwayScore, &res.WinnerSide, &res.PointDiff, &res.CollectedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result for event %d: %w", eventID, err)
	}
	return res, nil
}

func (r *PostgresResultRepository) Exists(ctx context.Context, eventID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM results WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check result exists for event %d: %w", eventID, err)
	}
	return exists, nil
}
