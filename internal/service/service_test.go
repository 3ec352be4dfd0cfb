package service

import (
	"testing"

	"haven/internal/database"
	"haven/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TranslateError makes sqlite unique violations surface as
// gorm.ErrDuplicatedKey, same as the postgres driver in production.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

func createTestChannel(t *testing.T, db *gorm.DB, name string, ownerID uint, visibility models.ChannelVisibility) *models.Channel {
	t.Helper()
	channel := &models.Channel{Name: name, OwnerID: ownerID, Visibility: visibility}
	if err := db.Create(channel).Error; err != nil {
		t.Fatalf("Failed to create channel %s: %v", name, err)
	}
	if err := db.Create(&models.Membership{
		ChannelID: channel.ID,
		UserID:    ownerID,
		Role:      models.MembershipRoleAdmin,
	}).Error; err != nil {
		t.Fatalf("Failed to create owner membership: %v", err)
	}
	return channel
}

func addMember(t *testing.T, db *gorm.DB, channelID, userID uint, role models.MembershipRole) {
	t.Helper()
	if err := db.Create(&models.Membership{
		ChannelID: channelID,
		UserID:    userID,
		Role:      role,
	}).Error; err != nil {
		t.Fatalf("Failed to add member %d: %v", userID, err)
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	appErr, ok := err.(*models.AppError)
	if !ok {
		t.Fatalf("expected *models.AppError, got %T (%v)", err, err)
	}
	return appErr.Code
}
