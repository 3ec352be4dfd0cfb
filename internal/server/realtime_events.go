package server

import (
	"context"
	"encoding/json"
	"log"

	"haven/internal/cache"
	"haven/internal/models"
	"haven/internal/notifications"
)

// publishRoomEvent fans an event out to a channel's room. With Redis the
// event travels through pub/sub so every process applies it; without Redis
// the local hub applies it directly.
func (s *Server) publishRoomEvent(channelID uint, event notifications.Event) {
	event.ChannelID = channelID

	if s.redis == nil {
		s.roomHub.HandleRoomEvent(event)
		return
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", event.Type, err)
		return
	}
	if err := s.notifier.PublishRoom(context.Background(), channelID, string(eventJSON)); err != nil {
		log.Printf("failed to publish %s event to channel %d: %v", event.Type, channelID, err)
	}
}

// publishChannelReplaced announces the deletion of a stale channel that a
// join retired, same as the sweeper does, so idle subscribers of the old
// room get evicted instead of holding a dead subscription.
func (s *Server) publishChannelReplaced(ctx context.Context, channelID uint) {
	cache.InvalidateChannel(ctx, channelID)
	s.publishRoomEvent(channelID, notifications.Event{
		Type:    notifications.EventChannelDeleted,
		Payload: map[string]interface{}{"reason": "inactive"},
	})
}

// publishUserEvent delivers an event to a single user's clients.
func (s *Server) publishUserEvent(userID uint, event notifications.Event) {
	if s.redis == nil {
		s.roomHub.SendToUser(userID, event)
		return
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", event.Type, err)
		return
	}
	if err := s.notifier.PublishUser(context.Background(), userID, string(eventJSON)); err != nil {
		log.Printf("failed to publish %s event to user %d: %v", event.Type, userID, err)
	}
}

// publishPresence announces a presence transition to every room the user
// belongs to, per the store rather than the local hub.
func (s *Server) publishPresence(userID uint, status models.UserStatus) {
	ctx := context.Background()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("presence update: failed to load user %d: %v", userID, err)
		return
	}

	// Do-not-disturb users keep their chosen status while connected.
	if status == models.UserStatusOnline && user.Status == models.UserStatusDND {
		status = models.UserStatusDND
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, status); err != nil {
		log.Printf("presence update: failed to persist status for user %d: %v", userID, err)
	}

	channelIDs, err := s.membershipRepo.ListChannelIDsByUser(ctx, userID)
	if err != nil {
		log.Printf("presence update: failed to list channels for user %d: %v", userID, err)
		return
	}
	for _, channelID := range channelIDs {
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventPresenceUpdated,
			UserID:   userID,
			Username: user.Username,
			Payload:  map[string]interface{}{"status": status},
		})
	}
}

// usernameOf resolves a user ID to a username for event annotation.
// Returns an empty string when the lookup fails; events still go out.
func (s *Server) usernameOf(ctx context.Context, userID uint) string {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Username
}
