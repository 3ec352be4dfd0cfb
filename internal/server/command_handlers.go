package server

import (
	"context"
	"errors"

	"haven/internal/cache"
	"haven/internal/command"
	"haven/internal/models"
	"haven/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// ExecuteCommandRequest is the body for POST /api/commands. ChannelID is the
// channel the command was issued from; join and list ignore it.
type ExecuteCommandRequest struct {
	ChannelID uint   `json:"channel_id"`
	Input     string `json:"input"`
}

// ExecuteCommand parses and runs a slash command over HTTP. The WebSocket
// path accepts the same syntax in command frames.
func (s *Server) ExecuteCommand(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req ExecuteCommandRequest
	if err := c.BodyParser(&req); err != nil || req.Input == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Command input is required"))
	}

	cmd, err := command.Parse(req.Input)
	if err != nil {
		if errors.Is(err, command.ErrNotCommand) {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Input is not a slash command"))
		}
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	result, err := s.dispatcher.Execute(c.Context(), userID, req.ChannelID, cmd)
	if err != nil {
		return respondError(c, err)
	}

	s.publishCommandEvents(c.Context(), userID, result)

	return c.JSON(fiber.Map{"result": result})
}

// publishCommandEvents translates a dispatcher result into realtime events
// and cache invalidations. Shared by the HTTP and WebSocket command paths.
func (s *Server) publishCommandEvents(ctx context.Context, userID uint, result *command.Result) {
	if result.Channel == nil {
		return
	}
	channelID := result.Channel.ID
	username := s.usernameOf(ctx, userID)
	targetName := s.usernameOf(ctx, result.TargetID)

	switch result.Kind {
	case command.KindJoin:
		if result.ReplacedChannelID != 0 {
			s.publishChannelReplaced(ctx, result.ReplacedChannelID)
		}
		cache.InvalidateChannel(ctx, channelID)
		if result.ChannelCreated {
			s.publishRoomEvent(channelID, notifications.Event{
				Type:     notifications.EventChannelCreated,
				UserID:   userID,
				Username: username,
				Payload:  fiber.Map{"name": result.Channel.Name},
			})
		}
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventMemberJoined,
			UserID:   userID,
			Username: username,
		})

	case command.KindQuit:
		cache.InvalidateChannel(ctx, channelID)
		if result.ChannelDeleted {
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

	case command.KindInvite:
		cache.InvalidateChannel(ctx, channelID)
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventMemberJoined,
			UserID:   result.TargetID,
			Username: targetName,
			Payload:  fiber.Map{"invited_by": userID, "unbanned": result.Unbanned},
		})

	case command.KindKick:
		if result.Banned {
			cache.InvalidateChannel(ctx, channelID)
			s.publishRoomEvent(channelID, notifications.Event{
				Type:     notifications.EventMemberKicked,
				UserID:   result.TargetID,
				Username: targetName,
			})
			s.publishUserEvent(result.TargetID, notifications.Event{
				Type:      notifications.EventMemberKicked,
				ChannelID: channelID,
				UserID:    result.TargetID,
				Username:  targetName,
			})
		} else {
			s.publishRoomEvent(channelID, notifications.Event{
				Type:     notifications.EventVoteProgress,
				UserID:   result.TargetID,
				Username: targetName,
				Payload:  fiber.Map{"votes": result.Votes, "required": result.Required},
			})
		}

	case command.KindRevoke:
		cache.InvalidateChannel(ctx, channelID)
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventMemberLeft,
			UserID:   result.TargetID,
			Username: targetName,
			Payload:  fiber.Map{"revoked_by": userID},
		})

	case command.KindMute, command.KindUnmute:
		s.publishRoomEvent(channelID, notifications.Event{
			Type:     notifications.EventMuteUpdated,
			UserID:   result.TargetID,
			Username: targetName,
			Payload:  fiber.Map{"muted": result.Muted},
		})
	}
}
