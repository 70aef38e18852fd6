package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reels/pkg/search"
)

// handleSearch handles GET /search requests.
// Query parameters:
//   - query (required): the search query text
//   - limit (optional, default 10): number of results to return
//   - offset (optional): results to skip, for pagination
//   - fusion (optional): "weighted" or "rrf"
//   - min_score (optional): drop results scoring below this
func (s *Server) handleSearch(c *fiber.Ctx) error {
	if s.engine == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "search is not configured",
		})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	opts := search.Options{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "limit must be a positive integer",
			})
		}
		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "offset must be a non-negative integer",
			})
		}
		opts.Offset = offset
	}

	switch c.Query("fusion") {
	case "", "weighted":
		opts.Fusion = search.FusionWeighted
	case "rrf":
		opts.Fusion = search.FusionRRF
	default:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "fusion must be one of: weighted, rrf",
		})
	}

	if minStr := c.Query("min_score"); minStr != "" {
		minScore, err := strconv.ParseFloat(minStr, 64)
		if err != nil || minScore < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "min_score must be a non-negative number",
			})
		}
		opts.MinScore = minScore
	}

	output, err := s.engine.Search(c.Context(), query, opts)
	if err != nil {
		return s.storeError(c, err, "search failed")
	}

	return c.JSON(output)
}
