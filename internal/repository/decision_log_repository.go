package repository

import (
	"context"
	"fmt"

	"github.com/ecarrasco/dropwatch/internal/database"
	"github.com/ecarrasco/dropwatch/internal/models"
)

// DecisionLogRepository persists one row per matcher verdict, recovered
// from the original system's alert log table.
type DecisionLogRepository interface {
	Insert(ctx context.Context, log *models.DecisionLog) error
}

// PostgresDecisionLogRepository implements DecisionLogRepository.
type PostgresDecisionLogRepository struct {
	db *database.DB
}

// NewPostgresDecisionLogRepository creates a new decision log repository.
func NewPostgresDecisionLogRepository(db *database.DB) *PostgresDecisionLogRepository {
	return &PostgresDecisionLogRepository{db: db}
}

func (r *PostgresDecisionLogRepository) Insert(ctx context.Context, log *models.DecisionLog) error {
	query := `
		INSERT INTO alerts_log (id, event_id, rule_key, triggered_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, log.ID, log.EventID, log.RuleKey, log.TriggeredAt, log.Payload)
	if err != nil {
		return fmt.Errorf("insert decision log for event %d: %w", log.EventID, err)
	}
	return nil
}
