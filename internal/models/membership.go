package models

import "time"

// MembershipRole defines a member's role within a channel.
type MembershipRole string

const (
	// MembershipRoleAdmin can moderate the channel (kick, invite to private, mute).
	MembershipRoleAdmin MembershipRole = "admin"
	// MembershipRoleMember is the default member role.
	MembershipRoleMember MembershipRole = "member"
)

// Membership maps users to channels and tracks role and mute state.
// A user appears at most once per channel; absence of a row plus a ban row
// is the single source of truth for exclusion.
type Membership struct {
	ChannelID         uint           `gorm:"primaryKey;autoIncrement:false" json:"channel_id"`
	Channel           *Channel       `gorm:"foreignKey:ChannelID" json:"channel,omitempty"`
	UserID            uint           `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User              *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role              MembershipRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	IsMuted           bool           `gorm:"default:false" json:"is_muted"`
	LastReadMessageID *uint          `json:"last_read_message_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// IsAdmin reports whether the member holds the channel admin role.
func (m *Membership) IsAdmin() bool {
	return m.Role == MembershipRoleAdmin
}
