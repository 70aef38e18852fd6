package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/eventstream"
	"github.com/papercomputeco/reels/pkg/frame"
	"github.com/papercomputeco/reels/pkg/store"
	"github.com/papercomputeco/reels/pkg/vector"
)

// handleCreateFrame handles POST /frames requests.
func (s *Server) handleCreateFrame(c *fiber.Ctx) error {
	f := &frame.Frame{}
	if err := c.BodyParser(f); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid frame body"})
	}

	if f.RunID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "run_id is required"})
	}

	created, err := s.storer.CreateFrame(c.Context(), f)
	if err != nil {
		return s.storeError(c, err, "failed to create frame")
	}

	s.indexFrame(c.Context(), created)
	s.publishFrame(c.Context(), eventstream.EventTypeFramePersisted, created)

	return c.Status(fiber.StatusCreated).JSON(created)
}

// handleListFrames handles GET /frames requests, returning active frames
// optionally filtered by the run query parameter.
func (s *Server) handleListFrames(c *fiber.Ctx) error {
	frames, err := s.storer.ActiveFrames(c.Context(), c.Query("run"))
	if err != nil {
		return s.storeError(c, err, "failed to list frames")
	}

	return c.JSON(map[string]any{
		"count":  len(frames),
		"frames": frames,
	})
}

// handleGetFrame handles GET /frames/:id requests.
func (s *Server) handleGetFrame(c *fiber.Ctx) error {
	f, err := s.storer.GetFrame(c.Context(), c.Params("id"))
	if err != nil {
		return s.storeError(c, err, "failed to get frame")
	}

	return c.JSON(f)
}

// handleUpdateFrame handles PATCH /frames/:id requests. Only fields
// present in the body are applied.
func (s *Server) handleUpdateFrame(c *fiber.Ctx) error {
	id := c.Params("id")

	patch := frame.FramePatch{}
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid patch body"})
	}

	if err := s.storer.UpdateFrame(c.Context(), id, patch); err != nil {
		return s.storeError(c, err, "failed to update frame")
	}

	updated, err := s.storer.GetFrame(c.Context(), id)
	if err != nil {
		return s.storeError(c, err, "failed to get frame")
	}

	if patch.DigestText != nil || patch.Outputs != nil {
		s.indexFrame(c.Context(), updated)
	}

	eventType := eventstream.EventTypeFramePersisted
	if patch.State != nil && *patch.State == frame.StateClosed {
		eventType = eventstream.EventTypeFrameClosed
	}
	s.publishFrame(c.Context(), eventType, updated)

	return c.JSON(updated)
}

// handleDeleteFrame handles DELETE /frames/:id requests. The store
// cascades to events, anchors, and the embedding record; remote vector
// backends are purged best-effort.
func (s *Server) handleDeleteFrame(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.storer.DeleteFrame(c.Context(), id); err != nil {
		return s.storeError(c, err, "failed to delete frame")
	}

	if s.vectors != nil {
		if err := s.vectors.Delete(c.Context(), []string{id}); err != nil {
			s.logger.Warn("failed to delete frame embedding",
				zap.String("frame_id", id),
				zap.Error(err),
			)
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleAppendEvent handles POST /frames/:id/events requests.
func (s *Server) handleAppendEvent(c *fiber.Ctx) error {
	e := &frame.Event{}
	if err := c.BodyParser(e); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid event body"})
	}
	e.FrameID = c.Params("id")

	appended, err := s.storer.AppendEvent(c.Context(), e)
	if err != nil {
		return s.storeError(c, err, "failed to append event")
	}

	return c.Status(fiber.StatusCreated).JSON(appended)
}

// handleListEvents handles GET /frames/:id/events requests, returning the
// frame's events in sequence order.
func (s *Server) handleListEvents(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := s.storer.GetFrame(c.Context(), id); err != nil {
		return s.storeError(c, err, "failed to get frame")
	}

	events, err := s.storer.Events(c.Context(), id)
	if err != nil {
		return s.storeError(c, err, "failed to list events")
	}

	return c.JSON(map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// handleCreateAnchor handles POST /frames/:id/anchors requests.
func (s *Server) handleCreateAnchor(c *fiber.Ctx) error {
	a := &frame.Anchor{}
	if err := c.BodyParser(a); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid anchor body"})
	}
	a.FrameID = c.Params("id")

	if a.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	created, err := s.storer.CreateAnchor(c.Context(), a)
	if err != nil {
		return s.storeError(c, err, "failed to create anchor")
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// handleListAnchors handles GET /frames/:id/anchors requests, returning
// the frame's anchors in priority order.
func (s *Server) handleListAnchors(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := s.storer.GetFrame(c.Context(), id); err != nil {
		return s.storeError(c, err, "failed to get frame")
	}

	anchors, err := s.storer.Anchors(c.Context(), id)
	if err != nil {
		return s.storeError(c, err, "failed to list anchors")
	}

	return c.JSON(map[string]any{
		"count":   len(anchors),
		"anchors": anchors,
	})
}

// storeError maps store sentinel errors to HTTP statuses.
func (s *Server) storeError(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "frame not found"})
	case errors.Is(err, store.ErrInvalidRetention):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrIntegrity):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	}

	s.logger.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msg})
}

// indexFrame embeds a frame's searchable text and upserts it into the
// vector index. Failures degrade to lexical-only retrieval for the frame,
// so they are logged and swallowed.
func (s *Server) indexFrame(ctx context.Context, f *frame.Frame) {
	if s.embedder == nil || s.vectors == nil {
		return
	}

	text := f.Name
	if f.DigestText != "" {
		text += "\n" + f.DigestText
	}
	if text == "" {
		return
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("failed to embed frame",
			zap.String("frame_id", f.ID),
			zap.Error(err),
		)
		return
	}

	err = s.vectors.Upsert(ctx, []vector.Document{{
		FrameID:   f.ID,
		Embedding: embedding,
	}})
	if err != nil {
		s.logger.Warn("failed to index frame embedding",
			zap.String("frame_id", f.ID),
			zap.Error(err),
		)
	}
}

// publishFrame emits a frame lifecycle event. Publish failures never
// affect the request.
func (s *Server) publishFrame(ctx context.Context, eventType string, f *frame.Frame) {
	if s.stream == nil {
		return
	}

	if err := s.stream.Publish(ctx, eventstream.NewFrameEvent(eventType, f)); err != nil {
		s.logger.Warn("failed to publish frame event",
			zap.String("event_type", eventType),
			zap.String("frame_id", f.ID),
			zap.Error(err),
		)
	}
}
