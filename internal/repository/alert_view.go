package repository

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/ecarrasco/dropwatch/internal/database"
	"github.com/ecarrasco/dropwatch/internal/models"
)

// AlertViewRepository is the search space of the history matcher: the
// materialized join of Event, OddsRecord, and Result restricted to rows
// with all three present, variation columns non-null, and a
// non-cancelled terminal status.
type AlertViewRepository interface {
	// FindCandidates returns past events of the given sport (and, when
	// groundType is non-empty, the same ground type) whose variation
	// vector is within tolerance of (varOne, varX, varTwo). A zero
	// tolerance implements variation tier 1 (exact, at 2-decimal
	// precision); tolerance=0.0401 implements tier 2. excludeEventID
	// keeps an event from ever matching itself.
	FindCandidates(ctx context.Context, sport, groundType string, varOne decimal.Decimal, varX *decimal.Decimal, varTwo decimal.Decimal, tolerance decimal.Decimal, excludeEventID int64) ([]models.Candidate, error)
	// Refresh forces a refresh of the underlying materialized view.
	Refresh(ctx context.Context) error
	// StaleSince reports whether the view has been marked stale by a
	// write to Event, OddsRecord, or Result since the last refresh.
	StaleSince() bool
	MarkStale()
}

// PostgresAlertViewRepository implements AlertViewRepository against
// the mv_alert_events materialized view.
type PostgresAlertViewRepository struct {
	db    *database.DB
	stale atomic.Bool
}

// NewPostgresAlertViewRepository creates a new alert-view repository.
// The view starts marked stale so the first matcher run always refreshes.
func NewPostgresAlertViewRepository(db *database.DB) *PostgresAlertViewRepository {
	r := &PostgresAlertViewRepository{db: db}
	r.stale.Store(true)
	return r
}

const candidateColumns = `event_id, home_team, away_team, competition, var_one, var_x, var_two, winner_side, point_diff, home_score, away_score`

// FindCandidates queries mv_alert_events for candidates within
// tolerance of the current event's variation vector. When groundType is
// empty the ground_type filter is skipped — most sports don't carry one.
func (r *PostgresAlertViewRepository) FindCandidates(
	ctx context.Context,
	sport, groundType string,
	varOne decimal.Decimal,
	varX *decimal.Decimal,
	varTwo decimal.Decimal,
	tolerance decimal.Decimal,
	excludeEventID int64,
) ([]models.Candidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM mv_alert_events
		WHERE sport = $1
		  AND event_id <> $2
		  AND ($3 = '' OR ground_type = $3)
		  AND abs(var_one - $4) <= $5
		  AND abs(var_two - $6) <= $5
		  AND ($7::numeric IS NULL OR (var_x IS NOT NULL AND abs(var_x - $7) <= $5))
	`
	rows, err := r.db.Query(ctx, query, sport, excludeEventID, groundType, varOne, tolerance, varTwo, varX)
	if err != nil {
		return nil, fmt.Errorf("find candidates for sport %s: %w", sport, err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		c := models.Candidate{}
		if err := rows.Scan(
			&c.EventID, &c.Home, &c.Away, &c.Competition,
			&c.VarOne, &c.VarX, &c.VarTwo,
			&c.WinnerSide, &c.PointDiff, &c.HomeScore, &c.AwayScore,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *PostgresAlertViewRepository) Refresh(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY mv_alert_events`)
	if err != nil {
		return fmt.Errorf("refresh mv_alert_events: %w", err)
	}
	r.stale.Store(false)
	return nil
}

func (r *PostgresAlertViewRepository) StaleSince() bool { return r.stale.Load() }
func (r *PostgresAlertViewRepository) MarkStale()        { r.stale.Store(true) }
