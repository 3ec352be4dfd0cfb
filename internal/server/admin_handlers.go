package server

import (
	"github.com/gofiber/fiber/v2"
)

// TriggerSweep runs one inactivity sweep pass immediately. Site admin only;
// the scheduled sweeper covers normal operation.
func (s *Server) TriggerSweep(c *fiber.Ctx) error {
	swept := s.sweepOnce(c.Context())
	return c.JSON(fiber.Map{
		"swept_channel_ids": swept,
		"count":             len(swept),
	})
}
