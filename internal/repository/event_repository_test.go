package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecarrasco/dropwatch/internal/database"
	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/repository"
)

func TestEventRepository_UpsertIsIdempotent(t *testing.T) {
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db)

	repo := repository.NewPostgresEventRepository(db)
	ctx := context.Background()

	e := &models.Event{
		ID:           9001,
		Slug:         "test-event-9001",
		StartTimeUTC: time.Now().UTC().Add(2 * time.Hour),
		Sport:        "Tennis",
		Competition:  "Test Open",
		HomeTeam:     "Player A",
		AwayTeam:     "Player B",
		Status:       models.StatusScheduled,
	}

	require.NoError(t, repo.Upsert(ctx, e))
	require.NoError(t, repo.Upsert(ctx, e))

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, e.Slug, got.Slug)
}

func TestEventRepository_GetByID_NotFound(t *testing.T) {
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db)

	repo := repository.NewPostgresEventRepository(db)
	_, err := repo.GetByID(context.Background(), -1)
	require.ErrorIs(t, err, models.ErrNotFound)
}
