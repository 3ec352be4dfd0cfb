// Package notifications provides real-time event delivery and room fan-out.
package notifications

// Event type constants prevent typos in event names.
const (
	EventMemberJoined    = "member_joined"
	EventMemberLeft      = "member_left"
	EventMemberKicked    = "member_kicked"
	EventVoteProgress    = "vote_progress"
	EventChannelCreated  = "channel_created"
	EventChannelDeleted  = "channel_deleted"
	EventPresenceUpdated = "presence_updated"
	EventMessage         = "message"
	EventMuteUpdated     = "mute_updated"
	EventError           = "error"
)

// Event is the wire format for everything pushed to websocket clients and
// through Redis pub/sub. ChannelID is zero for point-to-point events.
type Event struct {
	Type      string      `json:"type"`
	ChannelID uint        `json:"channel_id,omitempty"`
	UserID    uint        `json:"user_id,omitempty"`
	Username  string      `json:"username,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}
