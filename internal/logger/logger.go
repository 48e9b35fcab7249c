// Package logger wires up the structured logger dropwatch's scheduler,
// supervisor, and upstream client all share, plus the decision-log
// component in decision_logger.go.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process-wide logrus.Logger from the configured
// log level, falling back to info on an unparseable value rather than
// failing startup over a typo in an env var.
func NewLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()

	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logger.Warnf("invalid log level %q, defaulting to info", logLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// JSON in production so the odds-poller's logs are machine-parseable
	// by whatever aggregates them; colored text locally.
	if os.Getenv("ENVIRONMENT") == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}

	return logger
}
