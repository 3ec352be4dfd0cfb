package models

import "time"

// UserStatus is a user's self-selected presence preference.
type UserStatus string

const (
	// UserStatusOnline means the user is shown as online while connected.
	UserStatusOnline UserStatus = "online"
	// UserStatusOffline means the user is shown as offline.
	UserStatusOffline UserStatus = "offline"
	// UserStatusDND suppresses presence broadcasts while connected.
	UserStatusDND UserStatus = "dnd"
)

// User is a chat service account. Credentials live in the identity service;
// this table only mirrors what moderation and presence need.
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Username  string     `gorm:"uniqueIndex;not null;size:50" json:"username"`
	Status    UserStatus `gorm:"type:varchar(10);not null;default:'offline'" json:"status"`
	IsAdmin   bool       `gorm:"default:false" json:"is_admin"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
