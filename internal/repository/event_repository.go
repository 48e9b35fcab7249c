// Package repository is the durable store of events, odds records,
// results, and decision logs, and the query primitives the scheduler,
// matcher, and result gate are built on.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ecarrasco/dropwatch/internal/database"
	"github.com/ecarrasco/dropwatch/internal/models"
)

// EventRepository persists Event rows.
type EventRepository interface {
	Upsert(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, eventID int64) (*models.Event, error)
	UpdateStartTime(ctx context.Context, eventID int64, startTime time.Time) error
	ListInPreStartWindow(ctx context.Context, windowMinutes int) ([]*models.Event, error)
	ListMissingResultsSince(ctx context.Context, hoursAgo int) ([]*models.Event, error)
	ListAllMissingResults(ctx context.Context) ([]*models.Event, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Event, error)
	MarkChecked(ctx context.Context, eventID int64) error
	MarkStatus(ctx context.Context, eventID int64, status models.EventStatus) error
	UpdateGroundType(ctx context.Context, eventID int64, groundType string) error
}

// PostgresEventRepository implements EventRepository.
type PostgresEventRepository struct {
	db *database.DB
}

// NewPostgresEventRepository creates a new event repository.
func NewPostgresEventRepository(db *database.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

const eventColumns = `id, custom_id, slug, start_time_utc, sport, competition, country, ground_type, home_team, away_team, status, last_checked_at, created_at, updated_at`

// Upsert inserts or updates an Event keyed by id. start_time_utc and
// sport are write-once: an existing row's sport is never overwritten,
// and start_time_utc is left untouched here — it is only mutated via
// UpdateStartTime, the timestamp-correction path.
func (r *PostgresEventRepository) Upsert(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (id, custom_id, slug, start_time_utc, sport, competition, country, ground_type, home_team, away_team, status, last_checked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now(), now())
		ON CONFLICT (id) DO UPDATE SET
			custom_id = EXCLUDED.custom_id,
			slug = EXCLUDED.slug,
			competition = EXCLUDED.competition,
			country = EXCLUDED.country,
			ground_type = COALESCE(events.ground_type, EXCLUDED.ground_type),
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			status = EXCLUDED.status,
			last_checked_at = now(),
			updated_at = now()
	`
	_, err := r.db.Exec(ctx, query,
		e.ID, e.CustomID, e.Slug, e.StartTimeUTC, e.Sport, e.Competition,
		e.Country, e.GroundType, e.HomeTeam, e.AwayTeam, e.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert event %d: %w", e.ID, err)
	}
	return nil
}

func (r *PostgresEventRepository) GetByID(ctx context.Context, eventID int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e := &models.Event{}
	err := r.db.QueryRow(ctx, query, eventID).Scan(
		&e.ID, &e.CustomID, &e.Slug, &e.StartTimeUTC, &e.Sport, &e.Competition,
		&e.Country, &e.GroundType, &e.HomeTeam, &e.AwayTeam, &e.Status, &e.LastCheckedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", eventID, err)
	}
	return e, nil
}

// UpdateStartTime corrects the local start_time_utc, the one mutation
// path permitted on that column per the Event invariants.
func (r *PostgresEventRepository) UpdateStartTime(ctx context.Context, eventID int64, startTime time.Time) error {
	query := `UPDATE events SET start_time_utc = $2, updated_at = now() WHERE id = $1`
	_, err := r.db.Exec(ctx, query, eventID, startTime)
	if err != nil {
		return fmt.Errorf("update start_time for event %d: %w", eventID, err)
	}
	return nil
}

// ListInPreStartWindow returns events whose start time falls within the
// configured pre-start window and are not yet terminal.
func (r *PostgresEventRepository) ListInPreStartWindow(ctx context.Context, windowMinutes int) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE status NOT IN ('finished', 'cancelled')
		  AND start_time_utc > now()
		  AND start_time_utc <= now() + ($1 || ' minutes')::interval
		ORDER BY start_time_utc ASC
	`
	return r.scanEvents(ctx, query, windowMinutes)
}

// ListMissingResultsSince returns events that started within the
// preceding hoursAgo hours and have no Result row yet — the midnight
// sweep's candidate set.
func (r *PostgresEventRepository) ListMissingResultsSince(ctx context.Context, hoursAgo int) ([]*models.Event, error) {
	query := `
		SELECT e.id, e.custom_id, e.slug, e.start_time_utc, e.sport, e.competition, e.country, e.ground_type, e.home_team, e.away_team, e.status, e.last_checked_at, e.created_at, e.updated_at
		FROM events e
		LEFT JOIN results r ON r.event_id = e.id
		WHERE r.event_id IS NULL
		  AND e.status <> 'cancelled'
		  AND e.start_time_utc >= now() - ($1 || ' hours')::interval
		  AND e.start_time_utc < now()
		ORDER BY e.start_time_utc ASC
	`
	return r.scanEvents(ctx, query, hoursAgo)
}

// ListAllMissingResults returns every non-cancelled event lacking a
// Result row, the bulk-backfill candidate set.
func (r *PostgresEventRepository) ListAllMissingResults(ctx context.Context) ([]*models.Event, error) {
	query := `
		SELECT e.id, e.custom_id, e.slug, e.start_time_utc, e.sport, e.competition, e.country, e.ground_type, e.home_team, e.away_team, e.status, e.last_checked_at, e.created_at, e.updated_at
		FROM events e
		LEFT JOIN results r ON r.event_id = e.id
		WHERE r.event_id IS NULL
		  AND e.status <> 'cancelled'
		  AND e.start_time_utc < now()
		ORDER BY e.start_time_utc ASC
	`
	return r.scanEvents(ctx, query)
}

func (r *PostgresEventRepository) ListRecent(ctx context.Context, limit int) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY created_at DESC LIMIT $1`
	return r.scanEvents(ctx, query, limit)
}

func (r *PostgresEventRepository) MarkChecked(ctx context.Context, eventID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE events SET last_checked_at = now() WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark checked event %d: %w", eventID, err)
	}
	return nil
}

func (r *PostgresEventRepository) MarkStatus(ctx context.Context, eventID int64, status models.EventStatus) error {
	_, err := r.db.Exec(ctx, `UPDATE events SET status = $2, updated_at = now() WHERE id = $1`, eventID, status)
	if err != nil {
		return fmt.Errorf("mark status for event %d: %w", eventID, err)
	}
	return nil
}

// UpdateGroundType records the court/surface observed for a racket-sport
// event, opportunistically filled in once the upstream assigns one —
// never overwritten once set.
func (r *PostgresEventRepository) UpdateGroundType(ctx context.Context, eventID int64, groundType string) error {
	query := `UPDATE events SET ground_type = $2, updated_at = now() WHERE id = $1 AND ground_type IS NULL`
	_, err := r.db.Exec(ctx, query, eventID, groundType)
	if err != nil {
		return fmt.Errorf("update ground_type for event %d: %w", eventID, err)
	}
	return nil
}

func (r *PostgresEventRepository) scanEvents(ctx context.Context, query string, args ...interface{}) ([]*models.Event, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e := &models.Event{}
		if err := rows.Scan(
			&e.ID, &e.CustomID, &e.Slug, &e.StartTimeUTC, &e.Sport, &e.Competition,
			&e.Country, &e.GroundType, &e.HomeTeam, &e.AwayTeam, &e.Status, &e.LastCheckedAt, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
