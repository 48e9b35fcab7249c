package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ecarrasco/dropwatch/internal/database"
	"github.com/ecarrasco/dropwatch/internal/models"
)

// OddsRepository persists the single upserted OddsRecord per event and
// the append-only OddsSnapshot history.
type OddsRepository interface {
	UpsertOpening(ctx context.Context, o *models.OddsRecord) error
	ApplyFinals(ctx context.Context, o *models.OddsRecord) error
	GetByEventID(ctx context.Context, eventID int64) (*models.OddsRecord, error)
	InsertSnapshot(ctx context.Context, s *models.OddsSnapshot) error
	InsertSnapshotBatch(ctx context.Context, snapshots []*models.OddsSnapshot) error
	// ListMissingFinals returns started, non-cancelled events whose
	// OddsRecord has no final triple yet — the bulk final-odds backfill's
	// candidate set.
	ListMissingFinals(ctx context.Context) ([]*models.Event, error)
}

// PostgresOddsRepository implements OddsRepository.
type PostgresOddsRepository struct {
	db *database.DB
}

// NewPostgresOddsRepository creates a new odds repository.
func NewPostgresOddsRepository(db *database.DB) *PostgresOddsRepository {
	return &PostgresOddsRepository{db: db}
}

const oddsColumns = `event_id, market, one_open, x_open, two_open, one_final, x_final, two_final, var_one, var_x, var_two, open_captured_at, final_captured_at`

// UpsertOpening inserts the opening triple at discovery time, or leaves
// an existing row's opening values untouched on conflict — openings are
// captured once, at first discovery.
func (r *PostgresOddsRepository) UpsertOpening(ctx context.Context, o *models.OddsRecord) error {
	query := `
		INSERT INTO event_odds (event_id, market, one_open, x_open, two_open, open_captured_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, o.EventID, o.Market, o.OneOpen, o.XOpen, o.TwoOpen)
	if err != nil {
		return fmt.Errorf("upsert opening odds for event %d: %w", o.EventID, err)
	}
	return nil
}

// ApplyFinals writes the final triple and the generated variation
// columns. Variation columns are database-generated from open/final per
// the schema's invariant that they are never written directly here;
// this call only supplies the finals.
func (r *PostgresOddsRepository) ApplyFinals(ctx context.Context, o *models.OddsRecord) error {
	query := `
		UPDATE event_odds
		SET one_final = $2, x_final = $3, two_final = $4, final_captured_at = now()
		WHERE event_id = $1
	`
	_, err := r.db.Exec(ctx, query, o.EventID, o.OneFinal, o.XFinal, o.TwoFinal)
	if err != nil {
		return fmt.Errorf("apply final odds for event %d: %w", o.EventID, err)
	}
	return nil
}

func (r *PostgresOddsRepository) GetByEventID(ctx context.Context, eventID int64) (*models.OddsRecord, error) {
	query := `SELECT ` + oddsColumns + ` FROM event_odds WHERE event_id = $1`
	o := &models.OddsRecord{}
	err := r.db.QueryRow(ctx, query, eventID).Scan(
		&o.EventID, &o.Market, &o.OneOpen, &o.XOpen, &o.TwoOpen,
		&o.OneFinal, &o.XFinal, &o.TwoFinal,
		&o.VarOne, &o.VarX, &o.VarTwo,
		&o.OpenCapturedAt, &o.FinalCapturedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get odds for event %d: %w", eventID, err)
	}
	return o, nil
}

// ListMissingFinals joins events to event_odds to find started,
// non-cancelled fixtures whose final triple was never captured —
// typically events the pre-start sweep missed a checkpoint for.
func (r *PostgresOddsRepository) ListMissingFinals(ctx context.Context) ([]*models.Event, error) {
	query := `
		SELECT e.id, e.custom_id, e.slug, e.start_time_utc, e.sport, e.competition, e.country, e.ground_type, e.home_team, e.away_team, e.status, e.last_checked_at, e.created_at, e.updated_at
		FROM events e
		JOIN event_odds o ON o.event_id = e.id
		WHERE o.one_final IS NULL
		  AND e.status <> 'cancelled'
		  AND e.start_time_utc < now()
		ORDER BY e.start_time_utc ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events missing final odds: %w", err)
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

// InsertSnapshot appends one immutable odds capture, the recovered
// per-capture history the single upserted OddsRecord does not retain.
func (r *PostgresOddsRepository) InsertSnapshot(ctx context.Context, s *models.OddsSnapshot) error {
	query := `
		INSERT INTO odds_snapshot (event_id, collected_at, market, one_cur, x_cur, two_cur, raw_fractional)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id, collected_at, market) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, s.EventID, s.CollectedAt, s.Market, s.One, s.X, s.Two, s.RawFractional)
	if err != nil {
		return fmt.Errorf("insert odds snapshot for event %d: %w", s.EventID, err)
	}
	return nil
}

// InsertSnapshotBatch bulk-inserts snapshots via COPY, the teacher's
// high-throughput batch-insert pattern, adapted from races/runners to
// events/snapshots. COPY does not support ON CONFLICT, so duplicate
// (event_id, collected_at, market) triples must be filtered by the
// caller before batching — in practice this never happens because each
// checkpoint fetch produces at most one snapshot per event.
func (r *PostgresOddsRepository) InsertSnapshotBatch(ctx context.Context, snapshots []*models.OddsSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	columns := []string{"event_id", "collected_at", "market", "one_cur", "x_cur", "two_cur", "raw_fractional"}
	rows := make([][]interface{}, len(snapshots))
	for i, s := range snapshots {
		rows[i] = []interface{}{s.EventID, s.CollectedAt, s.Market, s.One, s.X, s.Two, s.RawFractional}
	}

	count, err := r.db.CopyFrom(ctx, pgx.Identifier{"odds_snapshot"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("batch insert odds snapshots: %w", err)
	}
	if count != int64(len(snapshots)) {
		return fmt.Errorf("inserted %d rows, expected %d", count, len(snapshots))
	}
	return nil
}
