// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"haven/internal/models"
	"haven/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumChannels int
	NumMessages int
	ShouldClean bool
}

var channelNames = []string{
	"general", "random", "gaming", "music", "movies", "sports",
	"technology", "programming", "linux", "devops", "homelab",
	"books", "food", "travel", "art", "science",
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Seeding %d users, %d channels, %d messages...",
		opts.NumUsers, opts.NumChannels, opts.NumMessages)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	users, err := createUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("created %d users", len(users))

	channels, err := createChannels(db, users, opts.NumChannels)
	if err != nil {
		return fmt.Errorf("failed to create channels: %w", err)
	}
	log.Printf("created %d channels", len(channels))

	if err := createMemberships(db, users, channels); err != nil {
		return fmt.Errorf("failed to create memberships: %w", err)
	}

	if err := createMessages(db, users, channels, opts.NumMessages); err != nil {
		return fmt.Errorf("failed to create messages: %w", err)
	}
	log.Printf("created %d messages", opts.NumMessages)

	return nil
}

func clearData(db *gorm.DB) error {
	for _, model := range []interface{}{
		&models.Message{}, &models.KickVote{}, &models.ChannelBan{},
		&models.Membership{}, &models.Channel{}, &models.User{},
	} {
		if err := db.Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func createUsers(db *gorm.DB, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	seen := make(map[string]bool)

	for len(users) < count {
		username := strings.ToLower(gofakeit.Username())
		if len(username) < 3 || len(username) > 50 || seen[username] {
			continue
		}
		seen[username] = true

		user := &models.User{
			Username: username,
			Status:   models.UserStatusOffline,
		}
		if err := db.Create(user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	// One admin account for moderation testing.
	admin := &models.User{Username: "overseer", IsAdmin: true}
	if err := db.Create(admin).Error; err != nil {
		return nil, err
	}
	users = append(users, admin)

	return users, nil
}

func createChannels(db *gorm.DB, users []*models.User, count int) ([]*models.Channel, error) {
	if count > len(channelNames) {
		count = len(channelNames)
	}

	channels := make([]*models.Channel, 0, count)
	for i := 0; i < count; i++ {
		name := validation.NormalizeChannelName(channelNames[i])
		owner := users[rand.Intn(len(users))]

		visibility := models.ChannelVisibilityPublic
		if i%5 == 4 {
			visibility = models.ChannelVisibilityPrivate
		}

		channel := &models.Channel{
			Name:        name,
			Description: gofakeit.Sentence(8),
			Visibility:  visibility,
			OwnerID:     owner.ID,
		}
		if err := db.Create(channel).Error; err != nil {
			return nil, err
		}

		// The owner always holds an admin membership.
		if err := db.Create(&models.Membership{
			ChannelID: channel.ID,
			UserID:    owner.ID,
			Role:      models.MembershipRoleAdmin,
		}).Error; err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

func createMemberships(db *gorm.DB, users []*models.User, channels []*models.Channel) error {
	for _, channel := range channels {
		for _, user := range users {
			if user.ID == channel.OwnerID {
				continue
			}
			if rand.Float64() > 0.4 {
				continue
			}
			if err := db.Create(&models.Membership{
				ChannelID: channel.ID,
				UserID:    user.ID,
				Role:      models.MembershipRoleMember,
			}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func createMessages(db *gorm.DB, users []*models.User, channels []*models.Channel, count int) error {
	if len(channels) == 0 || len(users) == 0 {
		return nil
	}

	for i := 0; i < count; i++ {
		channel := channels[rand.Intn(len(channels))]

		var memberIDs []uint
		if err := db.Model(&models.Membership{}).
			Where("channel_id = ?", channel.ID).
			Pluck("user_id", &memberIDs).Error; err != nil || len(memberIDs) == 0 {
			continue
		}

		msg := &models.Message{
			ChannelID: channel.ID,
			SenderID:  memberIDs[rand.Intn(len(memberIDs))],
			Content:   gofakeit.HipsterSentence(rand.Intn(12) + 3),
			CreatedAt: time.Now().Add(-time.Duration(rand.Intn(72)) * time.Hour),
		}
		if err := db.Create(msg).Error; err != nil {
			return err
		}
	}
	return nil
}
