// Package service provides application business logic (registry, moderation, chat).
package service

import (
	"errors"

	"haven/internal/models"

	"gorm.io/gorm"
)

// cascadeDeleteChannel removes a channel and every dependent row. Callers
// must invoke it inside a transaction; deletion order respects FKs.
func cascadeDeleteChannel(tx *gorm.DB, channelID uint) error {
	if err := tx.Where("channel_id = ?", channelID).Delete(&models.KickVote{}).Error; err != nil {
		return err
	}
	if err := tx.Where("channel_id = ?", channelID).Delete(&models.ChannelBan{}).Error; err != nil {
		return err
	}
	if err := tx.Where("channel_id = ?", channelID).Delete(&models.Membership{}).Error; err != nil {
		return err
	}
	if err := tx.Where("channel_id = ?", channelID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Channel{}, channelID).Error
}

// storeErr wraps unexpected storage failures while letting domain errors
// pass through untouched.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewStoreUnavailableError(err)
}
