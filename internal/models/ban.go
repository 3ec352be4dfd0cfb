package models

import "time"

// BannedBySystem marks a ban decided by the vote protocol rather than a
// specific moderator.
const BannedBySystem uint = 0

// ChannelBan stores channel-scoped permanent bans. Re-banning upserts the
// existing row. Reversal happens only through an admin invite.
type ChannelBan struct {
	ChannelID      uint      `gorm:"primaryKey;autoIncrement:false" json:"channel_id"`
	UserID         uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	BannedByUserID uint      `gorm:"not null;index" json:"banned_by_user_id"`
	Reason         string    `gorm:"type:text;default:''" json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for GORM.
func (ChannelBan) TableName() string {
	return "channel_bans"
}

// KickVote records one member's vote to kick a target from a channel.
// The composite key rejects duplicate votes from the same voter. Vote rows
// are purged as a set once they convert into a ban or the round is voided.
type KickVote struct {
	ChannelID    uint      `gorm:"primaryKey;autoIncrement:false" json:"channel_id"`
	TargetUserID uint      `gorm:"primaryKey;autoIncrement:false" json:"target_user_id"`
	VoterUserID  uint      `gorm:"primaryKey;autoIncrement:false" json:"voter_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (KickVote) TableName() string {
	return "kick_votes"
}
