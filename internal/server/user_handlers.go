package server

import (
	"haven/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UpdateStatusRequest is the body for PUT /api/users/me/status.
type UpdateStatusRequest struct {
	Status models.UserStatus `json:"status"`
}

// GetMyProfile returns the calling user's account.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return respondError(c, models.NewNotFoundError("User", userID))
	}
	return c.JSON(fiber.Map{"user": user})
}

// UpdateMyStatus sets the caller's presence preference. Setting dnd
// suppresses presence broadcasts while connected.
func (s *Server) UpdateMyStatus(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	switch req.Status {
	case models.UserStatusOnline, models.UserStatusOffline, models.UserStatusDND:
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Status must be online, offline, or dnd"))
	}

	if err := s.userRepo.UpdateStatus(c.Context(), userID, req.Status); err != nil {
		return respondError(c, models.NewStoreUnavailableError(err))
	}

	// DND transitions are not broadcast; that is the point of dnd.
	if req.Status != models.UserStatusDND {
		s.publishPresence(userID, req.Status)
	}

	return c.JSON(fiber.Map{"status": req.Status})
}
