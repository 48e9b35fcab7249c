// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DecisionLogger records matcher verdicts, timestamp corrections, and
// scheduler ticks as structured log lines, independent of whether the
// notifier is enabled. LogResultWrite is available for result-gate
// writes, but the result gate logs its writes through its own logger
// and does not call it.
type DecisionLogger struct {
	*logrus.Entry
}

// NewDecisionLogger creates a new decision logger.
func NewDecisionLogger(baseLogger *logrus.Logger) *DecisionLogger {
	return &DecisionLogger{
		Entry: baseLogger.WithField("component", "decision"),
	}
}

// LogVerdict logs a matcher verdict.
func (dl *DecisionLogger) LogVerdict(eventID int64, status string, variationTier, resultTier string, confidence int, candidateCount int) {
	dl.WithFields(logrus.Fields{
		"event_id":        eventID,
		"status":          status,
		"variation_tier":  variationTier,
		"result_tier":     resultTier,
		"confidence":      confidence,
		"candidate_count": candidateCount,
	}).Info("matcher verdict")
}

// LogResultWrite logs a result-gate write or rejection.
func (dl *DecisionLogger) LogResultWrite(eventID int64, statusCode int, written bool, reason string) {
	dl.WithFields(logrus.Fields{
		"event_id":    eventID,
		"status_code": statusCode,
		"written":     written,
		"reason":      reason,
	}).Info("result gate")
}

// LogTimestampCorrection logs a start_time correction applied by the
// scheduler's timestamp-correction subsystem.
func (dl *DecisionLogger) LogTimestampCorrection(eventID int64, oldStart, newStart time.Time) {
	dl.WithFields(logrus.Fields{
		"event_id":  eventID,
		"old_start": oldStart,
		"new_start": newStart,
	}).Info("start_time corrected")
}

// LogSchedulerTick logs the start of a scheduler job tick.
func (dl *DecisionLogger) LogSchedulerTick(job string, eventCount int) {
	dl.WithFields(logrus.Fields{
		"job":         job,
		"event_count": eventCount,
	}).Info("scheduler tick")
}
