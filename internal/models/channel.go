package models

import "time"

// ChannelVisibility controls who may join a channel without an invite.
type ChannelVisibility string

const (
	// ChannelVisibilityPublic allows anyone (not banned) to join.
	ChannelVisibilityPublic ChannelVisibility = "public"
	// ChannelVisibilityPrivate requires an invite from an admin or the owner.
	ChannelVisibilityPrivate ChannelVisibility = "private"
)

// Channel is a named chat room. Name is stored normalized (trimmed, lowercase)
// and unique among live channels. OwnerID is never null while the channel exists.
type Channel struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"uniqueIndex;not null;size:50" json:"name"`
	Description string            `gorm:"type:text;default:''" json:"description"`
	Visibility  ChannelVisibility `gorm:"type:varchar(10);not null;default:'public'" json:"visibility"`
	OwnerID     uint              `gorm:"not null;index" json:"owner_id"`
	Owner       *User             `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsPrivate reports whether joining requires an invite.
func (ch *Channel) IsPrivate() bool {
	return ch.Visibility == ChannelVisibilityPrivate
}
