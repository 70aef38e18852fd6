package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reels/pkg/gc"
)

// gcRequest is the POST /gc body. All fields are optional.
type gcRequest struct {
	DryRun        bool `json:"dry_run"`
	RetentionDays int  `json:"retention_days"`
	BatchSize     int  `json:"batch_size"`
}

// handleGC handles POST /gc requests, running a garbage collection pass
// and returning its counts.
func (s *Server) handleGC(c *fiber.Ctx) error {
	if s.collector == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "gc is not configured",
		})
	}

	req := gcRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid gc body"})
		}
	}

	result, err := s.collector.Run(c.Context(), gc.Options{
		DryRun:        req.DryRun,
		RetentionDays: req.RetentionDays,
		BatchSize:     req.BatchSize,
	})
	if err != nil {
		return s.storeError(c, err, "gc failed")
	}

	return c.JSON(result)
}
