package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"haven/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestChannelRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)
	ctx := context.Background()

	owner := newUser(t, db, "owner")

	t.Run("Create and GetByName", func(t *testing.T) {
		channel := &models.Channel{Name: "general", OwnerID: owner.ID}
		require.NoError(t, repo.Create(ctx, channel))
		assert.NotZero(t, channel.ID)

		got, err := repo.GetByName(ctx, "general")
		require.NoError(t, err)
		assert.Equal(t, channel.ID, got.ID)
	})

	t.Run("duplicate name violates the unique index", func(t *testing.T) {
		err := repo.Create(ctx, &models.Channel{Name: "general", OwnerID: owner.ID})
		assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
	})

	t.Run("List orders by name", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.Channel{Name: "alpha", OwnerID: owner.ID}))

		channels, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, channels, 2)
		assert.Equal(t, "alpha", channels[0].Name)
		assert.Equal(t, "general", channels[1].Name)
	})

	t.Run("LastActivity falls back to creation time", func(t *testing.T) {
		channel, err := repo.GetByName(ctx, "alpha")
		require.NoError(t, err)

		last, err := repo.LastActivity(ctx, channel.ID)
		require.NoError(t, err)
		assert.WithinDuration(t, channel.CreatedAt, last, time.Second)
	})

	t.Run("LastActivity tracks the newest message", func(t *testing.T) {
		channel, err := repo.GetByName(ctx, "alpha")
		require.NoError(t, err)

		stamp := time.Now().Add(30 * time.Minute)
		mustCreate(t, db, &models.Message{
			ChannelID: channel.ID,
			SenderID:  owner.ID,
			Content:   "latest",
			CreatedAt: stamp,
		})

		last, err := repo.LastActivity(ctx, channel.ID)
		require.NoError(t, err)
		assert.WithinDuration(t, stamp, last, time.Second)
	})

	t.Run("ListStale honors message activity", func(t *testing.T) {
		stale := &models.Channel{Name: "stale", OwnerID: owner.ID}
		require.NoError(t, repo.Create(ctx, stale))
		require.NoError(t, db.Model(&models.Channel{}).Where("id = ?", stale.ID).
			Update("created_at", time.Now().Add(-48*time.Hour)).Error)

		channels, err := repo.ListStale(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, channels, 1)
		assert.Equal(t, stale.ID, channels[0].ID)

		// A recent message pulls it out of the stale set.
		mustCreate(t, db, &models.Message{ChannelID: stale.ID, SenderID: owner.ID, Content: "alive"})
		channels, err = repo.ListStale(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, channels)
	})
}

// The postgres path is exercised against sqlmock: a failing backend must
// surface the driver error, not panic or mask it.
func TestChannelRepositoryBackendFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	repo := NewChannelRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "channels"`).
		WillReturnError(errors.New("connection refused"))

	_, err = repo.List(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
