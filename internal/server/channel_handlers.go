package server

import (
	"haven/internal/cache"
	"haven/internal/models"
	"haven/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// JoinOrCreateChannelRequest is the body for POST /api/channels.
type JoinOrCreateChannelRequest struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

// JoinOrCreateChannel resolves a channel by name, creating it when absent.
// Creating makes the caller the owner; joining goes through moderation checks.
func (s *Server) JoinOrCreateChannel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req JoinOrCreateChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	channel, created, replacedID, err := s.registry.FindOrCreate(c.Context(), userID, req.Name, req.Private)
	if err != nil {
		return respondError(c, err)
	}

	if replacedID != 0 {
		s.publishChannelReplaced(c.Context(), replacedID)
	}
	cache.InvalidateChannel(c.Context(), channel.ID)

	username := s.usernameOf(c.Context(), userID)
	if created {
		s.publishRoomEvent(channel.ID, notifications.Event{
			Type:     notifications.EventChannelCreated,
			UserID:   userID,
			Username: username,
			Payload:  fiber.Map{"name": channel.Name},
		})
	}
	s.publishRoomEvent(channel.ID, notifications.Event{
		Type:     notifications.EventMemberJoined,
		UserID:   userID,
		Username: username,
	})

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"channel": channel,
		"created": created,
	})
}

// JoinChannel adds the caller to an existing channel by ID, bypassing the
// name lookup. The same moderation checks apply as for join-by-name.
func (s *Server) JoinChannel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	channel, err := s.registry.Get(c.Context(), channelID)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.moderation.Join(c.Context(), userID, channelID); err != nil {
		return respondError(c, err)
	}

	cache.InvalidateChannel(c.Context(), channelID)
	s.publishRoomEvent(channelID, notifications.Event{
		Type:     notifications.EventMemberJoined,
		UserID:   userID,
		Username: s.usernameOf(c.Context(), userID),
	})

	return c.JSON(fiber.Map{"channel": channel})
}

// ListChannels returns the channel directory, served from cache when fresh.
func (s *Server) ListChannels(c *fiber.Ctx) error {
	var channels []*models.Channel
	err := cache.Aside(c.Context(), cache.ChannelListKey(), &channels, cache.ChannelListTTL, func() error {
		var fetchErr error
		channels, fetchErr = s.registry.List(c.Context())
		return fetchErr
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"channels": channels})
}

// GetChannel returns one channel by ID.
func (s *Server) GetChannel(c *fiber.Ctx) error {
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	channel, err := s.registry.Get(c.Context(), channelID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"channel": channel})
}

// GetChannelMembers returns the channel's member list. Members only.
func (s *Server) GetChannelMembers(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.moderation.ListMembers(c.Context(), userID, channelID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"members": members})
}

// GetChannelBans returns the channel's ban ledger. Channel admins and the
// owner only.
func (s *Server) GetChannelBans(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	channel, err := s.registry.Get(c.Context(), channelID)
	if err != nil {
		return respondError(c, err)
	}

	membership, err := s.moderation.Membership(c.Context(), userID, channelID)
	if err != nil {
		return respondError(c, err)
	}
	if !membership.IsAdmin() && channel.OwnerID != userID {
		return respondError(c, models.NewForbiddenError("Only a channel admin can view the ban list"))
	}

	bans, err := s.ledgerRepo.ListBansByChannel(c.Context(), channelID)
	if err != nil {
		return respondError(c, models.NewStoreUnavailableError(err))
	}
	return c.JSON(fiber.Map{"bans": bans})
}

// DeleteChannel removes a channel outright. Owner or site admin only.
func (s *Server) DeleteChannel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	siteAdmin, err := s.isSiteAdmin(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	if err := s.registry.DeleteChannel(c.Context(), userID, channelID, siteAdmin); err != nil {
		return respondError(c, err)
	}

	cache.InvalidateChannel(c.Context(), channelID)
	s.publishRoomEvent(channelID, notifications.Event{
		Type:     notifications.EventChannelDeleted,
		UserID:   userID,
		Username: s.usernameOf(c.Context(), userID),
	})

	return c.JSON(fiber.Map{"message": "Channel deleted"})
}
