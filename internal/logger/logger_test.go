package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		return nil
	}
	return logEntry
}

func TestDecisionLoggerVerdict(t *testing.T) {
	log, buf := setupTestLogger()
	dl := NewDecisionLogger(log)

	dl.LogVerdict(12345, "SUCCESS", "tier_1_exact", "A", 100, 2)

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, "decision", entry["component"])
	assert.Equal(t, "SUCCESS", entry["status"])
	assert.Equal(t, float64(100), entry["confidence"])
}

func TestDecisionLoggerResultWrite(t *testing.T) {
	log, buf := setupTestLogger()
	dl := NewDecisionLogger(log)

	dl.LogResultWrite(12345, 100, true, "")

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, true, entry["written"])
}

func TestDecisionLoggerTimestampCorrection(t *testing.T) {
	log, buf := setupTestLogger()
	dl := NewDecisionLogger(log)

	old := time.Date(2026, 8, 6, 20, 0, 0, 0, time.UTC)
	corrected := old.Add(30 * time.Minute)
	dl.LogTimestampCorrection(12345, old, corrected)

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, "start_time corrected", entry["msg"])
}

func TestNewLoggerDefaultsToInfoOnBadLevel(t *testing.T) {
	log := NewLogger("not-a-level")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
