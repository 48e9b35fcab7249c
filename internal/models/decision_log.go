package models

import (
	"time"

	"github.com/google/uuid"
)

// DecisionLog is one row per matcher verdict, persisted regardless of
// whether the notifier is enabled, recovered from the original system's
// alert log table.
type DecisionLog struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EventID     int64     `db:"event_id" json:"event_id" validate:"required"`
	RuleKey     string    `db:"rule_key" json:"rule_key" validate:"required"`
	TriggeredAt time.Time `db:"triggered_at" json:"triggered_at" validate:"required"`
	Payload     []byte    `db:"payload" json:"payload"`
}

// NewDecisionLog builds a DecisionLog row for a verdict whose JSON
// encoding the caller passes as payload. ruleKey labels the row; the
// scheduler passes the verdict's status (e.g. "SUCCESS", "NO_MATCH").
func NewDecisionLog(eventID int64, ruleKey string, triggeredAt time.Time, payload []byte) DecisionLog {
	return DecisionLog{
		ID:          uuid.New(),
		EventID:     eventID,
		RuleKey:     ruleKey,
		TriggeredAt: triggeredAt,
		Payload:     payload,
	}
}
