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

func TestMembershipRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	channel := newChannel(t, db, "room", owner.ID)

	t.Run("Create", func(t *testing.T) {
		err := repo.Create(ctx, &models.Membership{
			ChannelID: channel.ID,
			UserID:    member.ID,
			Role:      models.MembershipRoleMember,
		})
		require.NoError(t, err)
	})

	t.Run("duplicate membership violates the composite key", func(t *testing.T) {
		err := repo.Create(ctx, &models.Membership{
			ChannelID: channel.ID,
			UserID:    member.ID,
		})
		assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
	})

	t.Run("Get", func(t *testing.T) {
		m, err := repo.Get(ctx, channel.ID, member.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MembershipRoleMember, m.Role)
		assert.False(t, m.IsMuted)
	})

	t.Run("Get missing row", func(t *testing.T) {
		_, err := repo.Get(ctx, channel.ID, 9999)
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	})

	t.Run("SetMuted", func(t *testing.T) {
		require.NoError(t, repo.SetMuted(ctx, channel.ID, member.ID, true))

		m, err := repo.Get(ctx, channel.ID, member.ID)
		require.NoError(t, err)
		assert.True(t, m.IsMuted)
	})

	t.Run("ListByChannel preloads users", func(t *testing.T) {
		members, err := repo.ListByChannel(ctx, channel.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		require.NotNil(t, members[0].User)
		assert.Equal(t, "member", members[0].User.Username)
	})

	t.Run("ListChannelIDsByUser", func(t *testing.T) {
		other := newChannel(t, db, "other", owner.ID)
		require.NoError(t, repo.Create(ctx, &models.Membership{ChannelID: other.ID, UserID: member.ID}))

		ids, err := repo.ListChannelIDsByUser(ctx, member.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{channel.ID, other.ID}, ids)
	})

	t.Run("CountByChannel and Delete", func(t *testing.T) {
		count, err := repo.CountByChannel(ctx, channel.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		require.NoError(t, repo.Delete(ctx, channel.ID, member.ID))

		count, err = repo.CountByChannel(ctx, channel.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("UpdateLastRead", func(t *testing.T) {
		reader := newUser(t, db, "reader")
		require.NoError(t, repo.Create(ctx, &models.Membership{ChannelID: channel.ID, UserID: reader.ID}))
		require.NoError(t, repo.UpdateLastRead(ctx, channel.ID, reader.ID, 42))

		m, err := repo.Get(ctx, channel.ID, reader.ID)
		require.NoError(t, err)
		require.NotNil(t, m.LastReadMessageID)
		assert.EqualValues(t, 42, *m.LastReadMessageID)
	})
}
