package repository

import (
	"context"

	"haven/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository defines the interface for the ban ledger and kick votes.
// Both live in one repository because the vote protocol mutates them together.
type LedgerRepository interface {
	UpsertBan(ctx context.Context, ban *models.ChannelBan) error
	GetBan(ctx context.Context, channelID, userID uint) (*models.ChannelBan, error)
	DeleteBan(ctx context.Context, channelID, userID uint) error
	ListBansByChannel(ctx context.Context, channelID uint) ([]*models.ChannelBan, error)
	CreateVote(ctx context.Context, vote *models.KickVote) error
	CountVotes(ctx context.Context, channelID, targetUserID uint) (int64, error)
	DeleteVotesForTarget(ctx context.Context, channelID, targetUserID uint) error
	DeleteVotesByVoter(ctx context.Context, channelID, voterUserID uint) error
}

// ledgerRepository implements LedgerRepository
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// UpsertBan inserts the ban or refreshes an existing row in place.
func (r *ledgerRepository) UpsertBan(ctx context.Context, ban *models.ChannelBan) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"banned_by_user_id", "reason", "updated_at"}),
	}).Create(ban).Error
}

func (r *ledgerRepository) GetBan(ctx context.Context, channelID, userID uint) (*models.ChannelBan, error) {
	var ban models.ChannelBan
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		First(&ban).Error
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

func (r *ledgerRepository) DeleteBan(ctx context.Context, channelID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&models.ChannelBan{}).Error
}

func (r *ledgerRepository) ListBansByChannel(ctx context.Context, channelID uint) ([]*models.ChannelBan, error) {
	var bans []*models.ChannelBan
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Preload("User").
		Order("created_at ASC").
		Find(&bans).Error
	return bans, err
}

func (r *ledgerRepository) CreateVote(ctx context.Context, vote *models.KickVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *ledgerRepository) CountVotes(ctx context.Context, channelID, targetUserID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.KickVote{}).
		Where("channel_id = ? AND target_user_id = ?", channelID, targetUserID).
		Count(&count).Error
	return count, err
}

func (r *ledgerRepository) DeleteVotesForTarget(ctx context.Context, channelID, targetUserID uint) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND target_user_id = ?", channelID, targetUserID).
		Delete(&models.KickVote{}).Error
}

func (r *ledgerRepository) DeleteVotesByVoter(ctx context.Context, channelID, voterUserID uint) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND voter_user_id = ?", channelID, voterUserID).
		Delete(&models.KickVote{}).Error
}
