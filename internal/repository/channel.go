package repository

import (
	"context"
	"time"

	"haven/internal/models"

	"gorm.io/gorm"
)

// ChannelRepository defines the interface for channel data operations
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id uint) (*models.Channel, error)
	GetByName(ctx context.Context, name string) (*models.Channel, error)
	List(ctx context.Context) ([]*models.Channel, error)
	LastActivity(ctx context.Context, channelID uint) (time.Time, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]*models.Channel, error)
}

// channelRepository implements ChannelRepository
type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *channelRepository) GetByID(ctx context.Context, id uint) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) GetByName(ctx context.Context, name string) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&channel).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) List(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	err := r.db.WithContext(ctx).Order("name ASC").Find(&channels).Error
	return channels, err
}

// LastActivity returns the channel's newest message timestamp, falling back
// to the channel's creation time when no messages exist.
func (r *channelRepository) LastActivity(ctx context.Context, channelID uint) (time.Time, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Select("id", "created_at").First(&channel, channelID).Error; err != nil {
		return time.Time{}, err
	}

	var newest *time.Time
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("channel_id = ?", channelID).
		Select("MAX(created_at)").
		Scan(&newest).Error; err != nil {
		return time.Time{}, err
	}
	if newest != nil {
		return *newest, nil
	}
	return channel.CreatedAt, nil
}

// ListStale returns channels whose last activity predates the cutoff.
func (r *channelRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Channel, error) {
	var channels []*models.Channel
	err := r.db.WithContext(ctx).
		Where(
			"COALESCE((SELECT MAX(m.created_at) FROM messages m WHERE m.channel_id = channels.id), channels.created_at) < ?",
			cutoff,
		).
		Order("channels.id ASC").
		Find(&channels).Error
	return channels, err
}
