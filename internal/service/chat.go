package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"haven/internal/models"
	"haven/internal/observability"
	"haven/internal/repository"

	"gorm.io/gorm"
)

// MaxMessageLen caps message content length in characters.
const MaxMessageLen = 10000

// ChatService handles message posting and history reads. Membership is the
// gate for both; muted members can read but not post.
type ChatService struct {
	db       *gorm.DB
	messages repository.MessageRepository
	members  repository.MembershipRepository
}

// NewChatService returns a new ChatService.
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{
		db:       db,
		messages: repository.NewMessageRepository(db),
		members:  repository.NewMembershipRepository(db),
	}
}

// PostMessage persists a message to a channel after membership and mute
// checks. The returned message carries its assigned ID and timestamp.
func (s *ChatService) PostMessage(ctx context.Context, senderID, channelID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Message content cannot be empty")
	}
	if len([]rune(content)) > MaxMessageLen {
		return nil, models.NewValidationError("Message content exceeds the maximum length")
	}

	var message *models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var channel models.Channel
		if err := tx.First(&channel, channelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Channel", channelID)
			}
			return err
		}

		membership, err := repository.NewMembershipRepository(tx).Get(ctx, channelID, senderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotMemberError()
			}
			return err
		}
		if membership.IsMuted {
			return models.NewForbiddenError("You are muted in this channel")
		}

		message = &models.Message{
			ChannelID: channelID,
			SenderID:  senderID,
			Content:   content,
		}
		return repository.NewMessageRepository(tx).Create(ctx, message)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	observability.MessageThroughput.
		WithLabelValues(strconv.FormatUint(uint64(channelID), 10), "text").Inc()
	return message, nil
}

// History returns a chronological page of channel messages. Members only.
func (s *ChatService) History(ctx context.Context, userID, channelID uint, limit, offset int) ([]*models.Message, error) {
	var channel models.Channel
	if err := s.db.WithContext(ctx).First(&channel, channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Channel", channelID)
		}
		return nil, storeErr(err)
	}

	if _, err := s.members.Get(ctx, channelID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotMemberError()
		}
		return nil, storeErr(err)
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.messages.ListByChannel(ctx, channelID, limit, offset)
	if err != nil {
		return nil, storeErr(err)
	}
	return messages, nil
}

// MarkRead advances the member's last-read pointer.
func (s *ChatService) MarkRead(ctx context.Context, userID, channelID, messageID uint) error {
	if _, err := s.members.Get(ctx, channelID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotMemberError()
		}
		return storeErr(err)
	}
	return storeErr(s.members.UpdateLastRead(ctx, channelID, userID, messageID))
}
