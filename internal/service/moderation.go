package service

import (
	"context"
	"errors"
	"fmt"

	"haven/internal/models"
	"haven/internal/observability"
	"haven/internal/repository"

	"gorm.io/gorm"
)

// KickQuorum is the number of distinct member votes that converts into a ban.
const KickQuorum = 3

// LeaveOutcome reports the side effects of a leave operation.
type LeaveOutcome struct {
	ChannelDeleted bool
}

// InviteOutcome reports the side effects of an invite operation.
type InviteOutcome struct {
	TargetID uint
	Unbanned bool
}

// KickOutcome reports what a kick request resolved to. When Banned is false
// the kick was a vote: Votes of Required have been cast so far.
type KickOutcome struct {
	TargetID uint
	Banned   bool
	Votes    int
	Required int
}

// ModerationEngine owns membership mutations: join, leave, invite, kick
// (moderator and vote paths), revoke, and mutes. Every multi-row mutation
// runs in one transaction; composite unique keys serialize racing writers.
type ModerationEngine struct {
	db    *gorm.DB
	users repository.UserRepository
}

// NewModerationEngine returns a new ModerationEngine.
func NewModerationEngine(db *gorm.DB, users repository.UserRepository) *ModerationEngine {
	return &ModerationEngine{db: db, users: users}
}

// Join adds the user to a channel. Bans and private visibility are enforced
// here; a join racing a channel delete resolves as NotFound.
func (e *ModerationEngine) Join(ctx context.Context, userID, channelID uint) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		channel, err := e.getChannel(tx, channelID)
		if err != nil {
			return err
		}

		// A current member rejoining reports already member regardless of
		// visibility; the owner of a private channel is a member too.
		members := repository.NewMembershipRepository(tx)
		if _, err := members.Get(ctx, channelID, userID); err == nil {
			return models.NewAlreadyMemberError()
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := e.rejectBanned(tx, channelID, userID); err != nil {
			return err
		}

		if channel.IsPrivate() {
			return models.NewForbiddenError("This channel is private; an invite is required")
		}

		membership := &models.Membership{
			ChannelID: channelID,
			UserID:    userID,
			Role:      models.MembershipRoleMember,
		}
		if err := members.Create(ctx, membership); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost a race with a concurrent join.
				return models.NewAlreadyMemberError()
			}
			return err
		}
		return nil
	})
	return storeErr(err)
}

// Leave removes the user's own membership. The owner leaving deletes the
// channel outright, as does the last member leaving.
func (e *ModerationEngine) Leave(ctx context.Context, userID, channelID uint) (*LeaveOutcome, error) {
	outcome := &LeaveOutcome{}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		channel, err := e.getChannel(tx, channelID)
		if err != nil {
			return err
		}

		members := repository.NewMembershipRepository(tx)
		if _, err := members.Get(ctx, channelID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotMemberError()
			}
			return err
		}

		if channel.OwnerID == userID {
			outcome.ChannelDeleted = true
			return cascadeDeleteChannel(tx, channelID)
		}

		if err := members.Delete(ctx, channelID, userID); err != nil {
			return err
		}

		// The leaver's pending votes, and votes against them, are voided.
		ledger := repository.NewLedgerRepository(tx)
		if err := ledger.DeleteVotesByVoter(ctx, channelID, userID); err != nil {
			return err
		}
		if err := ledger.DeleteVotesForTarget(ctx, channelID, userID); err != nil {
			return err
		}

		remaining, err := members.CountByChannel(ctx, channelID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			outcome.ChannelDeleted = true
			return cascadeDeleteChannel(tx, channelID)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return outcome, nil
}

// Invite adds another user to the channel. Inviting a banned user is the
// un-ban path and is reserved for channel admins and the owner; the ban and
// any stale votes are cleared with the new membership in one transaction.
func (e *ModerationEngine) Invite(ctx context.Context, actorID uint, targetUsername string, channelID uint) (*InviteOutcome, error) {
	outcome := &InviteOutcome{}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		channel, err := e.getChannel(tx, channelID)
		if err != nil {
			return err
		}

		target, err := e.getUserByUsername(tx, targetUsername)
		if err != nil {
			return err
		}
		outcome.TargetID = target.ID

		if target.ID == actorID {
			return models.NewSelfActionError("invite")
		}

		members := repository.NewMembershipRepository(tx)
		actor, err := members.Get(ctx, channelID, actorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotMemberError()
			}
			return err
		}

		actorIsMod := actor.IsAdmin() || channel.OwnerID == actorID
		if channel.IsPrivate() && !actorIsMod {
			return models.NewForbiddenError("Only a channel admin can invite to a private channel")
		}

		if _, err := members.Get(ctx, channelID, target.ID); err == nil {
			return models.NewAlreadyMemberError()
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ledger := repository.NewLedgerRepository(tx)
		if _, err := ledger.GetBan(ctx, channelID, target.ID); err == nil {
			if !actorIsMod {
				return models.NewForbiddenError(
					fmt.Sprintf("%s is banned; only a channel admin can reinstate them", target.Username))
			}
			if err := ledger.DeleteBan(ctx, channelID, target.ID); err != nil {
				return err
			}
			if err := ledger.DeleteVotesForTarget(ctx, channelID, target.ID); err != nil {
				return err
			}
			outcome.Unbanned = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return members.Create(ctx, &models.Membership{
			ChannelID: channelID,
			UserID:    target.ID,
			Role:      models.MembershipRoleMember,
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return outcome, nil
}

// Kick removes a member. Admins and the owner ban immediately; ordinary
// members cast a vote, and the vote that reaches quorum converts into a ban
// atomically. No vote rows survive a ban.
func (e *ModerationEngine) Kick(ctx context.Context, actorID uint, targetUsername string, channelID uint) (*KickOutcome, error) {
	outcome := &KickOutcome{Required: KickQuorum}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		channel, err := e.getChannel(tx, channelID)
		if err != nil {
			return err
		}

		target, err := e.getUserByUsername(tx, targetUsername)
		if err != nil {
			return err
		}
		outcome.TargetID = target.ID

		if target.ID == actorID {
			return models.NewSelfActionError("kick")
		}
		if target.ID == channel.OwnerID {
			return models.NewForbiddenError("The channel owner cannot be kicked")
		}

		members := repository.NewMembershipRepository(tx)
		actor, err := members.Get(ctx, channelID, actorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotMemberError()
			}
			return err
		}

		targetMembership, err := members.Get(ctx, channelID, target.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Member", target.Username)
			}
			return err
		}

		ledger := repository.NewLedgerRepository(tx)

		if actor.IsAdmin() || channel.OwnerID == actorID {
			outcome.Banned = true
			return e.banAndRemove(ctx, tx, channelID, target.ID, actorID, "Removed by a channel admin")
		}

		// Vote path: public channels only, and admins are vote-proof.
		if channel.IsPrivate() {
			return models.NewForbiddenError("Vote kicks are only available in public channels")
		}
		if targetMembership.IsAdmin() {
			return models.NewForbiddenError("Only a channel admin can kick another admin")
		}

		vote := &models.KickVote{
			ChannelID:    channelID,
			TargetUserID: target.ID,
			VoterUserID:  actorID,
		}
		if err := ledger.CreateVote(ctx, vote); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.NewAlreadyVotedError(target.Username)
			}
			return err
		}

		count, err := ledger.CountVotes(ctx, channelID, target.ID)
		if err != nil {
			return err
		}
		outcome.Votes = int(count)

		if count >= KickQuorum {
			outcome.Banned = true
			observability.KickVotesTotal.WithLabelValues("quorum").Inc()
			return e.banAndRemove(ctx, tx, channelID, target.ID, models.BannedBySystem,
				fmt.Sprintf("Removed by member vote (%d votes)", count))
		}

		observability.KickVotesTotal.WithLabelValues("recorded").Inc()
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return outcome, nil
}

// Revoke removes a member from a private channel without banning them.
// They can be re-invited at any time.
func (e *ModerationEngine) Revoke(ctx context.Context, actorID uint, targetUsername string, channelID uint) (*InviteOutcome, error) {
	outcome := &InviteOutcome{}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		channel, err := e.getChannel(tx, channelID)
		if err != nil {
			return err
		}
		if !channel.IsPrivate() {
			return models.NewForbiddenError("Revoke applies only to private channels")
		}

		target, err := e.getUserByUsername(tx, targetUsername)
		if err != nil {
			return err
		}
		outcome.TargetID = target.ID

		if target.ID == actorID {
			return models.NewSelfActionError("revoke")
		}
		if target.ID == channel.OwnerID {
			return models.NewForbiddenError("The channel owner cannot be removed")
		}

		members := repository.NewMembershipRepository(tx)
		actor, err := members.Get(ctx, channelID, actorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotMemberError()
			}
			return err
		}
		if !actor.IsAdmin() && channel.OwnerID != actorID {
			return models.NewForbiddenError("Only a channel admin can revoke access")
		}

		if _, err := members.Get(ctx, channelID, target.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Member", target.Username)
			}
			return err
		}
		if err := members.Delete(ctx, channelID, target.ID); err != nil {
			return err
		}

		ledger := repository.NewLedgerRepository(tx)
		if err := ledger.DeleteVotesForTarget(ctx, channelID, target.ID); err != nil {
			return err
		}
		return ledger.DeleteVotesByVoter(ctx, channelID, target.ID)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return outcome, nil
}

// SetMuted toggles a member's mute flag. Admin/owner only; the owner
// cannot be muted.
func (e *ModerationEngine) SetMuted(ctx context.Context, actorID uint, targetUsername string, channelID uint, muted bool) (uint, error) {
	var targetID uint
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		channel, err := e.getChannel(tx, channelID)
		if err != nil {
			return err
		}

		target, err := e.getUserByUsername(tx, targetUsername)
		if err != nil {
			return err
		}
		targetID = target.ID

		if target.ID == actorID {
			return models.NewSelfActionError("mute")
		}
		if target.ID == channel.OwnerID {
			return models.NewForbiddenError("The channel owner cannot be muted")
		}

		members := repository.NewMembershipRepository(tx)
		actor, err := members.Get(ctx, channelID, actorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotMemberError()
			}
			return err
		}
		if !actor.IsAdmin() && channel.OwnerID != actorID {
			return models.NewForbiddenError("Only a channel admin can mute members")
		}

		if _, err := members.Get(ctx, channelID, target.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Member", target.Username)
			}
			return err
		}
		return members.SetMuted(ctx, channelID, target.ID, muted)
	})
	if err != nil {
		return 0, storeErr(err)
	}
	return targetID, nil
}

// ListMembers returns the channel's memberships with user rows attached.
// Only members may list members.
func (e *ModerationEngine) ListMembers(ctx context.Context, actorID, channelID uint) ([]*models.Membership, error) {
	if _, err := e.getChannel(e.db.WithContext(ctx), channelID); err != nil {
		return nil, storeErr(err)
	}

	members := repository.NewMembershipRepository(e.db)
	if _, err := members.Get(ctx, channelID, actorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotMemberError()
		}
		return nil, storeErr(err)
	}

	list, err := members.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

// IsMember reports whether the user currently belongs to the channel.
func (e *ModerationEngine) IsMember(ctx context.Context, userID, channelID uint) (bool, error) {
	_, err := repository.NewMembershipRepository(e.db).Get(ctx, channelID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, storeErr(err)
	}
	return true, nil
}

// Membership returns the user's membership row, or NotMember.
func (e *ModerationEngine) Membership(ctx context.Context, userID, channelID uint) (*models.Membership, error) {
	m, err := repository.NewMembershipRepository(e.db).Get(ctx, channelID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotMemberError()
		}
		return nil, storeErr(err)
	}
	return m, nil
}

// banAndRemove atomically writes the ban, drops the membership, and purges
// the target's vote rows. Runs inside the caller's transaction.
func (e *ModerationEngine) banAndRemove(ctx context.Context, tx *gorm.DB, channelID, targetID, bannedBy uint, reason string) error {
	ledger := repository.NewLedgerRepository(tx)
	if err := ledger.UpsertBan(ctx, &models.ChannelBan{
		ChannelID:      channelID,
		UserID:         targetID,
		BannedByUserID: bannedBy,
		Reason:         reason,
	}); err != nil {
		return err
	}
	if err := repository.NewMembershipRepository(tx).Delete(ctx, channelID, targetID); err != nil {
		return err
	}
	return ledger.DeleteVotesForTarget(ctx, channelID, targetID)
}

func (e *ModerationEngine) getChannel(tx *gorm.DB, channelID uint) (*models.Channel, error) {
	var channel models.Channel
	if err := tx.First(&channel, channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Channel", channelID)
		}
		return nil, err
	}
	return &channel, nil
}

func (e *ModerationEngine) getUserByUsername(tx *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", username)
		}
		return nil, err
	}
	return &user, nil
}

func (e *ModerationEngine) rejectBanned(tx *gorm.DB, channelID, userID uint) error {
	var count int64
	if err := tx.Model(&models.ChannelBan{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return models.NewBannedError()
	}
	return nil
}
