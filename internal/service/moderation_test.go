package service

import (
	"context"
	"testing"

	"haven/internal/models"
	"haven/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	joiner := createTestUser(t, db, "joiner")
	public := createTestChannel(t, db, "public-room", owner.ID, models.ChannelVisibilityPublic)
	private := createTestChannel(t, db, "private-room", owner.ID, models.ChannelVisibilityPrivate)

	t.Run("public join succeeds", func(t *testing.T) {
		require.NoError(t, engine.Join(ctx, joiner.ID, public.ID))

		var m models.Membership
		require.NoError(t, db.Where("channel_id = ? AND user_id = ?", public.ID, joiner.ID).First(&m).Error)
		assert.Equal(t, models.MembershipRoleMember, m.Role)
	})

	t.Run("duplicate join rejected", func(t *testing.T) {
		err := engine.Join(ctx, joiner.ID, public.ID)
		assert.Equal(t, models.CodeAlreadyMember, appCode(t, err))
	})

	t.Run("private join requires invite", func(t *testing.T) {
		err := engine.Join(ctx, joiner.ID, private.ID)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("private rejoin by a member reports already member", func(t *testing.T) {
		insider := createTestUser(t, db, "insider")
		addMember(t, db, private.ID, insider.ID, models.MembershipRoleMember)

		err := engine.Join(ctx, insider.ID, private.ID)
		assert.Equal(t, models.CodeAlreadyMember, appCode(t, err))
	})

	t.Run("private rejoin by the owner reports already member", func(t *testing.T) {
		err := engine.Join(ctx, owner.ID, private.ID)
		assert.Equal(t, models.CodeAlreadyMember, appCode(t, err))
	})

	t.Run("banned user rejected", func(t *testing.T) {
		banned := createTestUser(t, db, "banned")
		require.NoError(t, db.Create(&models.ChannelBan{
			ChannelID:      public.ID,
			UserID:         banned.ID,
			BannedByUserID: owner.ID,
		}).Error)

		err := engine.Join(ctx, banned.ID, public.ID)
		assert.Equal(t, models.CodeBanned, appCode(t, err))
	})

	t.Run("missing channel", func(t *testing.T) {
		err := engine.Join(ctx, joiner.ID, 99999)
		assert.Equal(t, models.CodeNotFound, appCode(t, err))
	})
}

func TestKickVoteQuorum(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	channel := createTestChannel(t, db, "arena", owner.ID, models.ChannelVisibilityPublic)

	target := createTestUser(t, db, "target")
	addMember(t, db, channel.ID, target.ID, models.MembershipRoleMember)

	voters := make([]*models.User, 3)
	for i, name := range []string{"voter1", "voter2", "voter3"} {
		voters[i] = createTestUser(t, db, name)
		addMember(t, db, channel.ID, voters[i].ID, models.MembershipRoleMember)
	}

	t.Run("first two votes do not ban", func(t *testing.T) {
		for i, voter := range voters[:2] {
			outcome, err := engine.Kick(ctx, voter.ID, "target", channel.ID)
			require.NoError(t, err)
			assert.False(t, outcome.Banned)
			assert.Equal(t, i+1, outcome.Votes)
			assert.Equal(t, KickQuorum, outcome.Required)
		}
	})

	t.Run("duplicate vote rejected", func(t *testing.T) {
		_, err := engine.Kick(ctx, voters[0].ID, "target", channel.ID)
		assert.Equal(t, models.CodeAlreadyVoted, appCode(t, err))
	})

	t.Run("third vote converts to ban", func(t *testing.T) {
		outcome, err := engine.Kick(ctx, voters[2].ID, "target", channel.ID)
		require.NoError(t, err)
		assert.True(t, outcome.Banned)

		var ban models.ChannelBan
		require.NoError(t, db.Where("channel_id = ? AND user_id = ?", channel.ID, target.ID).First(&ban).Error)
		assert.Equal(t, models.BannedBySystem, ban.BannedByUserID)
		assert.Equal(t, "Removed by member vote (3 votes)", ban.Reason)

		var membershipCount int64
		db.Model(&models.Membership{}).Where("channel_id = ? AND user_id = ?", channel.ID, target.ID).Count(&membershipCount)
		assert.Zero(t, membershipCount)

		// No vote rows survive a ban.
		var voteCount int64
		db.Model(&models.KickVote{}).Where("channel_id = ? AND target_user_id = ?", channel.ID, target.ID).Count(&voteCount)
		assert.Zero(t, voteCount)
	})

	t.Run("banned target cannot rejoin", func(t *testing.T) {
		err := engine.Join(ctx, target.ID, channel.ID)
		assert.Equal(t, models.CodeBanned, appCode(t, err))
	})
}

func TestKickByModerator(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	channel := createTestChannel(t, db, "modroom", owner.ID, models.ChannelVisibilityPublic)

	target := createTestUser(t, db, "troll")
	addMember(t, db, channel.ID, target.ID, models.MembershipRoleMember)

	t.Run("owner kick bans immediately", func(t *testing.T) {
		outcome, err := engine.Kick(ctx, owner.ID, "troll", channel.ID)
		require.NoError(t, err)
		assert.True(t, outcome.Banned)

		var ban models.ChannelBan
		require.NoError(t, db.Where("channel_id = ? AND user_id = ?", channel.ID, target.ID).First(&ban).Error)
		assert.Equal(t, owner.ID, ban.BannedByUserID)
	})

	t.Run("owner cannot be kicked", func(t *testing.T) {
		member := createTestUser(t, db, "member")
		addMember(t, db, channel.ID, member.ID, models.MembershipRoleMember)

		_, err := engine.Kick(ctx, member.ID, "owner", channel.ID)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("self kick rejected", func(t *testing.T) {
		_, err := engine.Kick(ctx, owner.ID, "owner", channel.ID)
		assert.Equal(t, models.CodeSelfAction, appCode(t, err))
	})

	t.Run("member cannot vote against admin", func(t *testing.T) {
		admin := createTestUser(t, db, "chanadmin")
		addMember(t, db, channel.ID, admin.ID, models.MembershipRoleAdmin)
		member := createTestUser(t, db, "plain")
		addMember(t, db, channel.ID, member.ID, models.MembershipRoleMember)

		_, err := engine.Kick(ctx, member.ID, "chanadmin", channel.ID)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})
}

func TestKickVotePrivateChannel(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	channel := createTestChannel(t, db, "hideout", owner.ID, models.ChannelVisibilityPrivate)

	member := createTestUser(t, db, "member")
	target := createTestUser(t, db, "target")
	addMember(t, db, channel.ID, member.ID, models.MembershipRoleMember)
	addMember(t, db, channel.ID, target.ID, models.MembershipRoleMember)

	t.Run("vote kick unavailable in private channels", func(t *testing.T) {
		_, err := engine.Kick(ctx, member.ID, "target", channel.ID)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("owner still kicks in private channels", func(t *testing.T) {
		outcome, err := engine.Kick(ctx, owner.ID, "target", channel.ID)
		require.NoError(t, err)
		assert.True(t, outcome.Banned)
	})
}

func TestLeave(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	t.Run("owner leave deletes the channel", func(t *testing.T) {
		owner := createTestUser(t, db, "owner1")
		member := createTestUser(t, db, "member1")
		channel := createTestChannel(t, db, "doomed", owner.ID, models.ChannelVisibilityPublic)
		addMember(t, db, channel.ID, member.ID, models.MembershipRoleMember)

		outcome, err := engine.Leave(ctx, owner.ID, channel.ID)
		require.NoError(t, err)
		assert.True(t, outcome.ChannelDeleted)

		var count int64
		db.Model(&models.Channel{}).Where("id = ?", channel.ID).Count(&count)
		assert.Zero(t, count)
		db.Model(&models.Membership{}).Where("channel_id = ?", channel.ID).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("member leave voids their votes", func(t *testing.T) {
		owner := createTestUser(t, db, "owner2")
		channel := createTestChannel(t, db, "busy", owner.ID, models.ChannelVisibilityPublic)

		leaver := createTestUser(t, db, "leaver")
		target := createTestUser(t, db, "votee")
		addMember(t, db, channel.ID, leaver.ID, models.MembershipRoleMember)
		addMember(t, db, channel.ID, target.ID, models.MembershipRoleMember)

		_, err := engine.Kick(ctx, leaver.ID, "votee", channel.ID)
		require.NoError(t, err)

		outcome, err := engine.Leave(ctx, leaver.ID, channel.ID)
		require.NoError(t, err)
		assert.False(t, outcome.ChannelDeleted)

		var voteCount int64
		db.Model(&models.KickVote{}).Where("channel_id = ? AND voter_user_id = ?", channel.ID, leaver.ID).Count(&voteCount)
		assert.Zero(t, voteCount)
	})

	t.Run("last member leave deletes the channel", func(t *testing.T) {
		owner := createTestUser(t, db, "owner3")
		solo := createTestUser(t, db, "solo")
		channel := createTestChannel(t, db, "emptying", owner.ID, models.ChannelVisibilityPublic)
		addMember(t, db, channel.ID, solo.ID, models.MembershipRoleMember)

		// Owner hands over by leaving... which deletes; rebuild a channel
		// where a plain member is last instead.
		_, err := engine.Leave(ctx, owner.ID, channel.ID)
		require.NoError(t, err)

		channel2 := createTestChannel(t, db, "emptying2", solo.ID, models.ChannelVisibilityPublic)
		other := createTestUser(t, db, "other")
		addMember(t, db, channel2.ID, other.ID, models.MembershipRoleMember)

		// Non-owner leaves first, then owner; both paths end with deletion.
		outcome, err := engine.Leave(ctx, other.ID, channel2.ID)
		require.NoError(t, err)
		assert.False(t, outcome.ChannelDeleted)

		outcome, err = engine.Leave(ctx, solo.ID, channel2.ID)
		require.NoError(t, err)
		assert.True(t, outcome.ChannelDeleted)
	})

	t.Run("non-member cannot leave", func(t *testing.T) {
		owner := createTestUser(t, db, "owner4")
		outsider := createTestUser(t, db, "outsider")
		channel := createTestChannel(t, db, "closed", owner.ID, models.ChannelVisibilityPublic)

		_, err := engine.Leave(ctx, outsider.ID, channel.ID)
		assert.Equal(t, models.CodeNotMember, appCode(t, err))
	})
}

func TestInvite(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	member := createTestUser(t, db, "member")
	guest := createTestUser(t, db, "guest")

	public := createTestChannel(t, db, "lounge", owner.ID, models.ChannelVisibilityPublic)
	private := createTestChannel(t, db, "backroom", owner.ID, models.ChannelVisibilityPrivate)
	addMember(t, db, public.ID, member.ID, models.MembershipRoleMember)
	addMember(t, db, private.ID, member.ID, models.MembershipRoleMember)

	t.Run("any member may invite in public channels", func(t *testing.T) {
		outcome, err := engine.Invite(ctx, member.ID, "guest", public.ID)
		require.NoError(t, err)
		assert.Equal(t, guest.ID, outcome.TargetID)
		assert.False(t, outcome.Unbanned)
	})

	t.Run("already member", func(t *testing.T) {
		_, err := engine.Invite(ctx, member.ID, "guest", public.ID)
		assert.Equal(t, models.CodeAlreadyMember, appCode(t, err))
	})

	t.Run("private invite requires admin", func(t *testing.T) {
		_, err := engine.Invite(ctx, member.ID, "guest", private.ID)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))

		outcome, err := engine.Invite(ctx, owner.ID, "guest", private.ID)
		require.NoError(t, err)
		assert.Equal(t, guest.ID, outcome.TargetID)
	})

	t.Run("self invite rejected", func(t *testing.T) {
		_, err := engine.Invite(ctx, member.ID, "member", public.ID)
		assert.Equal(t, models.CodeSelfAction, appCode(t, err))
	})

	t.Run("non-member cannot invite", func(t *testing.T) {
		stranger := createTestUser(t, db, "stranger")
		_, err := engine.Invite(ctx, stranger.ID, "guest", public.ID)
		assert.Equal(t, models.CodeNotMember, appCode(t, err))
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := engine.Invite(ctx, owner.ID, "nobody", public.ID)
		assert.Equal(t, models.CodeNotFound, appCode(t, err))
	})
}

func TestInviteUnbansAndVoteRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	channel := createTestChannel(t, db, "forgiveness", owner.ID, models.ChannelVisibilityPublic)

	target := createTestUser(t, db, "pariah")
	addMember(t, db, channel.ID, target.ID, models.MembershipRoleMember)

	voters := make([]*models.User, 3)
	for i, name := range []string{"v1", "v2", "v3"} {
		voters[i] = createTestUser(t, db, name)
		addMember(t, db, channel.ID, voters[i].ID, models.MembershipRoleMember)
	}
	for _, voter := range voters {
		_, err := engine.Kick(ctx, voter.ID, "pariah", channel.ID)
		require.NoError(t, err)
	}

	t.Run("member invite of banned target is forbidden", func(t *testing.T) {
		_, err := engine.Invite(ctx, voters[0].ID, "pariah", channel.ID)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("owner invite reinstates", func(t *testing.T) {
		outcome, err := engine.Invite(ctx, owner.ID, "pariah", channel.ID)
		require.NoError(t, err)
		assert.True(t, outcome.Unbanned)

		var banCount int64
		db.Model(&models.ChannelBan{}).Where("channel_id = ? AND user_id = ?", channel.ID, target.ID).Count(&banCount)
		assert.Zero(t, banCount)

		var m models.Membership
		require.NoError(t, db.Where("channel_id = ? AND user_id = ?", channel.ID, target.ID).First(&m).Error)
	})

	t.Run("votes restart from zero after reinstatement", func(t *testing.T) {
		outcome, err := engine.Kick(ctx, voters[0].ID, "pariah", channel.ID)
		require.NoError(t, err)
		assert.False(t, outcome.Banned)
		assert.Equal(t, 1, outcome.Votes)
	})
}

func TestRevoke(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	member := createTestUser(t, db, "member")
	target := createTestUser(t, db, "invitee")

	private := createTestChannel(t, db, "vault", owner.ID, models.ChannelVisibilityPrivate)
	public := createTestChannel(t, db, "plaza", owner.ID, models.ChannelVisibilityPublic)
	addMember(t, db, private.ID, member.ID, models.MembershipRoleMember)
	addMember(t, db, private.ID, target.ID, models.MembershipRoleMember)
	addMember(t, db, public.ID, target.ID, models.MembershipRoleMember)

	t.Run("revoke only applies to private channels", func(t *testing.T) {
		_, err := engine.Revoke(ctx, owner.ID, "invitee", public.ID)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("plain member cannot revoke", func(t *testing.T) {
		_, err := engine.Revoke(ctx, member.ID, "invitee", private.ID)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("owner revoke removes without banning", func(t *testing.T) {
		_, err := engine.Revoke(ctx, owner.ID, "invitee", private.ID)
		require.NoError(t, err)

		var memberCount, banCount int64
		db.Model(&models.Membership{}).Where("channel_id = ? AND user_id = ?", private.ID, target.ID).Count(&memberCount)
		db.Model(&models.ChannelBan{}).Where("channel_id = ? AND user_id = ?", private.ID, target.ID).Count(&banCount)
		assert.Zero(t, memberCount)
		assert.Zero(t, banCount)
	})

	t.Run("revoked member can be re-invited", func(t *testing.T) {
		outcome, err := engine.Invite(ctx, owner.ID, "invitee", private.ID)
		require.NoError(t, err)
		assert.False(t, outcome.Unbanned)
	})
}

func TestSetMuted(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	member := createTestUser(t, db, "member")
	loud := createTestUser(t, db, "loud")
	channel := createTestChannel(t, db, "quiet", owner.ID, models.ChannelVisibilityPublic)
	addMember(t, db, channel.ID, member.ID, models.MembershipRoleMember)
	addMember(t, db, channel.ID, loud.ID, models.MembershipRoleMember)

	t.Run("owner mutes member", func(t *testing.T) {
		targetID, err := engine.SetMuted(ctx, owner.ID, "loud", channel.ID, true)
		require.NoError(t, err)
		assert.Equal(t, loud.ID, targetID)

		var m models.Membership
		require.NoError(t, db.Where("channel_id = ? AND user_id = ?", channel.ID, loud.ID).First(&m).Error)
		assert.True(t, m.IsMuted)
	})

	t.Run("plain member cannot mute", func(t *testing.T) {
		_, err := engine.SetMuted(ctx, member.ID, "loud", channel.ID, true)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("owner cannot be muted", func(t *testing.T) {
		admin := createTestUser(t, db, "chanadmin")
		addMember(t, db, channel.ID, admin.ID, models.MembershipRoleAdmin)

		_, err := engine.SetMuted(ctx, admin.ID, "owner", channel.ID, true)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("unmute restores posting", func(t *testing.T) {
		_, err := engine.SetMuted(ctx, owner.ID, "loud", channel.ID, false)
		require.NoError(t, err)

		var m models.Membership
		require.NoError(t, db.Where("channel_id = ? AND user_id = ?", channel.ID, loud.ID).First(&m).Error)
		assert.False(t, m.IsMuted)
	})
}

func TestListMembers(t *testing.T) {
	db := setupTestDB(t)
	engine := NewModerationEngine(db, repository.NewUserRepository(db))
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	member := createTestUser(t, db, "member")
	outsider := createTestUser(t, db, "outsider")
	channel := createTestChannel(t, db, "roster", owner.ID, models.ChannelVisibilityPublic)
	addMember(t, db, channel.ID, member.ID, models.MembershipRoleMember)

	t.Run("members can list", func(t *testing.T) {
		list, err := engine.ListMembers(ctx, member.ID, channel.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("outsiders cannot list", func(t *testing.T) {
		_, err := engine.ListMembers(ctx, outsider.ID, channel.ID)
		assert.Equal(t, models.CodeNotMember, appCode(t, err))
	})
}
