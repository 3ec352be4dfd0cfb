package server

import (
	"haven/internal/models"
	"haven/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// SendMessageRequest is the body for POST /api/channels/:id/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// MarkReadRequest is the body for POST /api/channels/:id/read.
type MarkReadRequest struct {
	MessageID uint `json:"message_id"`
}

// SendChannelMessage persists a message and fans it out to the room.
func (s *Server) SendChannelMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.chat.PostMessage(c.Context(), userID, channelID, req.Content)
	if err != nil {
		return respondError(c, err)
	}

	s.publishRoomEvent(channelID, notifications.Event{
		Type:     notifications.EventMessage,
		UserID:   userID,
		Username: s.usernameOf(c.Context(), userID),
		Payload:  message,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

// GetChannelMessages returns a chronological page of channel history.
func (s *Server) GetChannelMessages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	p := parsePagination(c, 50)
	messages, err := s.chat.History(c.Context(), userID, channelID, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"limit":    p.Limit,
		"offset":   p.Offset,
	})
}

// MarkChannelRead advances the caller's last-read pointer.
func (s *Server) MarkChannelRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	channelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req MarkReadRequest
	if err := c.BodyParser(&req); err != nil || req.MessageID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("message_id is required"))
	}

	if err := s.chat.MarkRead(c.Context(), userID, channelID, req.MessageID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Read position updated"})
}
