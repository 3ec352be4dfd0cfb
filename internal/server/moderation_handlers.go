package server

import (
	"haven/internal/cache"
	"haven/internal/models"
	"haven/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// TargetRequest is the body for moderation actions aimed at another member.
type TargetRequest struct {
	Username string `json:"username"`
}

// MuteRequest is the body for POST /api/channels/:id/mute.
type MuteRequest struct {
	Username string `json:"username"`
	Muted    bool   `json:"muted"`
}

// LeaveChannel removes the caller's own membership. The owner leaving (or
// the last member leaving) deletes the channel.
func (s *Server) LeaveChannel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	outcome, err := s.moderation.Leave(c.Context(), userID, channelID)
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateChannel(c.Context(), channelID)
	username := s.usernameOf(c.Context(), userID)

	if outcome.ChannelDeleted {
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventChannelDeleted,
			UserID:   userID,
			Username: username,
		})
	} else {
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventMemberLeft,
			UserID:   userID,
			Username: username,
		})
	}

	return c.JSON(fiber.Map{
		"message":         "Left channel",
		"channel_deleted": outcome.ChannelDeleted,
	})
}

// InviteToChannel adds another user to the channel. Inviting a banned user
// reinstates them when the caller is a channel admin or the owner.
func (s *Server) InviteToChannel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req TargetRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Target username is required"))
	}

	outcome, err := s.moderation.Invite(c.Context(), userID, req.Username, channelID)
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateChannel(c.Context(), channelID)
	s.publishRoomEvent(channelID, notifications.Event{
		Type:     notifications.EventMemberJoined,
		UserID:   outcome.TargetID,
		Username: req.Username,
		Payload:  fiber.Map{"invited_by": userID, "unbanned": outcome.Unbanned},
	})

	return c.JSON(fiber.Map{
		"message":  "User invited",
		"unbanned": outcome.Unbanned,
	})
}

// KickFromChannel removes a member. Channel admins and the owner ban
// immediately; ordinary members cast a vote toward quorum.
func (s *Server) KickFromChannel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req TargetRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Target username is required"))
	}

	outcome, err := s.moderation.Kick(c.Context(), userID, req.Username, channelID)
	if err != nil {
		return respondError(c, err)
	}

	if outcome.Banned {
		cache.InvalidateChannel(c.Context(), channelID)
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventMemberKicked,
			UserID:   outcome.TargetID,
			Username: req.Username,
		})
		s.publishUserEvent(outcome.TargetID, notifications.Event{
			Type:      notifications.EventMemberKicked,
			ChannelID: channelID,
			UserID:    outcome.TargetID,
			Username:  req.Username,
		})
	} else {
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventVoteProgress,
			UserID:   outcome.TargetID,
			Username: req.Username,
			Payload:  fiber.Map{"votes": outcome.Votes, "required": outcome.Required},
		})
	}

	return c.JSON(fiber.Map{
		"banned":   outcome.Banned,
		"votes":    outcome.Votes,
		"required": outcome.Required,
	})
}

// RevokeFromChannel removes a member from a private channel without banning.
func (s *Server) RevokeFromChannel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req TargetRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Target username is required"))
	}

	outcome, err := s.moderation.Revoke(c.Context(), userID, req.Username, channelID)
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateChannel(c.Context(), channelID)
	s.publishRoomEvent(channelID, notifications.Event{
		Type:     notifications.EventMemberLeft,
		UserID:   outcome.TargetID,
		Username: req.Username,
		Payload:  fiber.Map{"revoked_by": userID},
	})

	return c.JSON(fiber.Map{"message": "Access revoked"})
}

// MuteInChannel toggles a member's mute flag.
func (s *Server) MuteInChannel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req MuteRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Target username is required"))
	}

	targetID, err := s.moderation.SetMuted(c.Context(), userID, req.Username, channelID, req.Muted)
	if err != nil {
		return respondError(c, err)
	}

	s.publishRoomEvent(channelID, notifications.Event{
		Type:     notifications.EventMuteUpdated,
		UserID:   targetID,
		Username: req.Username,
		Payload:  fiber.Map{"muted": req.Muted},
	})

	return c.JSON(fiber.Map{"muted": req.Muted})
}
