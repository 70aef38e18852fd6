package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// handleRetrievalStats handles GET /stats/retrieval requests.
// Query parameters:
//   - since_days (optional): restrict to entries from the last N days
func (s *Server) handleRetrievalStats(c *fiber.Ctx) error {
	if s.recorder == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "telemetry is not configured",
		})
	}

	sinceDays := 0
	if sinceStr := c.Query("since_days"); sinceStr != "" {
		parsed, err := strconv.Atoi(sinceStr)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "since_days must be a non-negative integer",
			})
		}
		sinceDays = parsed
	}

	stats, err := s.recorder.Stats(c.Context(), sinceDays)
	if err != nil {
		return s.storeError(c, err, "failed to compute retrieval stats")
	}

	return c.JSON(stats)
}
