package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/frame"
)

var (
	frameContextToolName    = "frame_context"
	frameContextDescription = "Read back the full context of a stored frame: the frame itself, its event timeline in order, and its pinned anchors by priority."
)

// FrameContextInput represents the input arguments for the frame_context tool.
type FrameContextInput struct {
	FrameID string `json:"frame_id" jsonschema:"the frame to read back"`
}

// FrameContextOutput represents the output of the frame_context tool.
type FrameContextOutput struct {
	Frame   *frame.Frame    `json:"frame"`
	Events  []*frame.Event  `json:"events"`
	Anchors []*frame.Anchor `json:"anchors"`
}

// handleFrameContext processes a frame_context request.
func (s *Server) handleFrameContext(ctx context.Context, _ *mcp.CallToolRequest, input FrameContextInput) (*mcp.CallToolResult, FrameContextOutput, error) {
	logger := s.config.Logger

	if input.FrameID == "" {
		return toolError("frame_id is required"), FrameContextOutput{}, nil
	}

	logger.Debug("MCP frame_context request",
		zap.String("frame_id", input.FrameID),
	)

	f, err := s.config.Storer.GetFrame(ctx, input.FrameID)
	if err != nil {
		logger.Error("failed to get frame", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to get frame: %v", err)), FrameContextOutput{}, nil
	}

	events, err := s.config.Storer.Events(ctx, input.FrameID)
	if err != nil {
		logger.Error("failed to list events", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to list events: %v", err)), FrameContextOutput{}, nil
	}

	anchors, err := s.config.Storer.Anchors(ctx, input.FrameID)
	if err != nil {
		logger.Error("failed to list anchors", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to list anchors: %v", err)), FrameContextOutput{}, nil
	}

	output := FrameContextOutput{
		Frame:   f,
		Events:  events,
		Anchors: anchors,
	}

	return jsonResult(logger, output), output, nil
}
