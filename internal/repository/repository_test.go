package repository

import (
	"testing"

	"haven/internal/database"
	"haven/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

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

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("Failed to create %T: %v", value, err)
	}
}

func newUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	mustCreate(t, db, user)
	return user
}

func newChannel(t *testing.T, db *gorm.DB, name string, ownerID uint) *models.Channel {
	t.Helper()
	channel := &models.Channel{Name: name, OwnerID: ownerID}
	mustCreate(t, db, channel)
	return channel
}
