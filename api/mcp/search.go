package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/search"
)

var (
	contextSearchToolName    = "context_search"
	contextSearchDescription = "Search stored agent context frames using hybrid lexical and semantic retrieval. Returns the most relevant frames for the query text, ranked by fused score."
)

// ContextSearchInput represents the input arguments for the context_search tool.
type ContextSearchInput struct {
	Query    string  `json:"query" jsonschema:"the search query text to find relevant frames"`
	Limit    int     `json:"limit,omitempty" jsonschema:"number of results to return (default: 10)"`
	Fusion   string  `json:"fusion,omitempty" jsonschema:"fusion strategy: weighted or rrf (default: weighted)"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"drop results scoring below this"`
}

// ContextSearchOutput represents the output of the context_search tool.
type ContextSearchOutput struct {
	Query    string          `json:"query"`
	Strategy string          `json:"strategy"`
	Results  []search.Result `json:"results"`
	Count    int             `json:"count"`
}

// handleContextSearch processes a context_search request.
func (s *Server) handleContextSearch(ctx context.Context, _ *mcp.CallToolRequest, input ContextSearchInput) (*mcp.CallToolResult, ContextSearchOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP context_search request",
		zap.String("query", input.Query),
		zap.Int("limit", input.Limit),
	)

	opts := search.Options{
		Limit:    input.Limit,
		MinScore: input.MinScore,
	}
	switch input.Fusion {
	case "", "weighted":
		opts.Fusion = search.FusionWeighted
	case "rrf":
		opts.Fusion = search.FusionRRF
	default:
		return toolError(fmt.Sprintf("unknown fusion strategy: %s", input.Fusion)), ContextSearchOutput{}, nil
	}

	result, err := s.config.Engine.Search(ctx, input.Query, opts)
	if err != nil {
		logger.Error("search failed", zap.Error(err))
		return toolError(fmt.Sprintf("Search failed: %v", err)), ContextSearchOutput{}, nil
	}

	output := ContextSearchOutput{
		Query:    result.Query,
		Strategy: result.Strategy,
		Results:  result.Results,
		Count:    result.Count,
	}

	return jsonResult(logger, output), output, nil
}

// jsonResult serializes the structured output as JSON for the text field.
// Tools returning structured content also return serialized JSON in a
// TextContent block for backwards compatibility.
func jsonResult(logger *zap.Logger, output any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal tool output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
