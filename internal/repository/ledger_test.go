package repository

import (
	"context"
	"errors"
	"testing"

	"haven/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLedgerRepositoryBans(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	owner := newUser(t, db, "owner")
	target := newUser(t, db, "target")
	channel := newChannel(t, db, "room", owner.ID)

	t.Run("UpsertBan inserts", func(t *testing.T) {
		err := repo.UpsertBan(ctx, &models.ChannelBan{
			ChannelID:      channel.ID,
			UserID:         target.ID,
			BannedByUserID: owner.ID,
			Reason:         "spam",
		})
		require.NoError(t, err)

		ban, err := repo.GetBan(ctx, channel.ID, target.ID)
		require.NoError(t, err)
		assert.Equal(t, "spam", ban.Reason)
	})

	t.Run("UpsertBan refreshes in place", func(t *testing.T) {
		err := repo.UpsertBan(ctx, &models.ChannelBan{
			ChannelID:      channel.ID,
			UserID:         target.ID,
			BannedByUserID: models.BannedBySystem,
			Reason:         "vote",
		})
		require.NoError(t, err)

		ban, err := repo.GetBan(ctx, channel.ID, target.ID)
		require.NoError(t, err)
		assert.Equal(t, "vote", ban.Reason)
		assert.Equal(t, models.BannedBySystem, ban.BannedByUserID)

		var count int64
		db.Model(&models.ChannelBan{}).Where("channel_id = ?", channel.ID).Count(&count)
		assert.EqualValues(t, 1, count)
	})

	t.Run("ListBansByChannel preloads users", func(t *testing.T) {
		bans, err := repo.ListBansByChannel(ctx, channel.ID)
		require.NoError(t, err)
		require.Len(t, bans, 1)
		require.NotNil(t, bans[0].User)
		assert.Equal(t, "target", bans[0].User.Username)
	})

	t.Run("DeleteBan", func(t *testing.T) {
		require.NoError(t, repo.DeleteBan(ctx, channel.ID, target.ID))

		_, err := repo.GetBan(ctx, channel.ID, target.ID)
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	})
}

func TestLedgerRepositoryVotes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	owner := newUser(t, db, "owner")
	target := newUser(t, db, "target")
	voter1 := newUser(t, db, "voter1")
	voter2 := newUser(t, db, "voter2")
	channel := newChannel(t, db, "arena", owner.ID)

	t.Run("CreateVote and CountVotes", func(t *testing.T) {
		require.NoError(t, repo.CreateVote(ctx, &models.KickVote{
			ChannelID: channel.ID, TargetUserID: target.ID, VoterUserID: voter1.ID,
		}))
		require.NoError(t, repo.CreateVote(ctx, &models.KickVote{
			ChannelID: channel.ID, TargetUserID: target.ID, VoterUserID: voter2.ID,
		}))

		count, err := repo.CountVotes(ctx, channel.ID, target.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})

	t.Run("one vote per voter per target", func(t *testing.T) {
		err := repo.CreateVote(ctx, &models.KickVote{
			ChannelID: channel.ID, TargetUserID: target.ID, VoterUserID: voter1.ID,
		})
		assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
	})

	t.Run("DeleteVotesByVoter leaves other voters intact", func(t *testing.T) {
		require.NoError(t, repo.DeleteVotesByVoter(ctx, channel.ID, voter1.ID))

		count, err := repo.CountVotes(ctx, channel.ID, target.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("DeleteVotesForTarget clears the tally", func(t *testing.T) {
		require.NoError(t, repo.DeleteVotesForTarget(ctx, channel.ID, target.ID))

		count, err := repo.CountVotes(ctx, channel.ID, target.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
