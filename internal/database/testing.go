package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ecarrasco/dropwatch/internal/config"
)

// SetupTestDB connects to the database named by DATABASE_URL_TEST and
// skips the calling test when that variable is unset, so repository
// tests degrade gracefully in environments without a test Postgres
// instance.
func SetupTestDB(t *testing.T) *DB {
	dsn := os.Getenv("DATABASE_URL_TEST")
	if dsn == "" {
		t.Skip("DATABASE_URL_TEST not set, skipping repository test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDB(ctx, &config.Config{DatabaseURL: dsn})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	return db
}

// TeardownTestDB closes the database connection cleanly.
func TeardownTestDB(t *testing.T, db *DB) {
	db.Close()
}
