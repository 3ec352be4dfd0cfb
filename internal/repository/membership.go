package repository

import (
	"context"

	"haven/internal/models"

	"gorm.io/gorm"
)

// MembershipRepository defines the interface for channel membership operations
type MembershipRepository interface {
	Create(ctx context.Context, m *models.Membership) error
	Get(ctx context.Context, channelID, userID uint) (*models.Membership, error)
	Delete(ctx context.Context, channelID, userID uint) error
	ListByChannel(ctx context.Context, channelID uint) ([]*models.Membership, error)
	ListChannelIDsByUser(ctx context.Context, userID uint) ([]uint, error)
	CountByChannel(ctx context.Context, channelID uint) (int64, error)
	SetMuted(ctx context.Context, channelID, userID uint, muted bool) error
	UpdateLastRead(ctx context.Context, channelID, userID, messageID uint) error
}

// membershipRepository implements MembershipRepository
type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Create(ctx context.Context, m *models.Membership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *membershipRepository) Get(ctx context.Context, channelID, userID uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) Delete(ctx context.Context, channelID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&models.Membership{}).Error
}

func (r *membershipRepository) ListByChannel(ctx context.Context, channelID uint) ([]*models.Membership, error) {
	var members []*models.Membership
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Preload("User").
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *membershipRepository) ListChannelIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("user_id = ?", userID).
		Pluck("channel_id", &ids).Error
	return ids, err
}

func (r *membershipRepository) CountByChannel(ctx context.Context, channelID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("channel_id = ?", channelID).
		Count(&count).Error
	return count, err
}

func (r *membershipRepository) SetMuted(ctx context.Context, channelID, userID uint, muted bool) error {
	return r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Update("is_muted", muted).Error
}

func (r *membershipRepository) UpdateLastRead(ctx context.Context, channelID, userID, messageID uint) error {
	return r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Update("last_read_message_id", messageID).Error
}
