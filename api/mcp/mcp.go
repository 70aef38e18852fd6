// Package mcp provides an MCP (Model Context Protocol) server exposing the
// reels context store to agents.
package mcp

import (
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/search"
	"github.com/papercomputeco/reels/pkg/store"
	"github.com/papercomputeco/reels/pkg/utils"
)

type Config struct {
	// Storer reads frames, events, and anchors for the frame_context tool
	Storer store.Driver

	// Engine runs hybrid searches for the context_search tool
	Engine *search.Engine

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the context tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "reels",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Storer == nil {
		return nil, errors.New("store driver is required")
	}
	if c.Engine == nil {
		return nil, errors.New("search engine is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        contextSearchToolName,
		Description: contextSearchDescription,
	}, s.handleContextSearch)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        frameContextToolName,
		Description: frameContextDescription,
	}, s.handleFrameContext)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server, or nil when the
// server was built in noop mode.
func (s *Server) Handler() http.Handler {
	if s.handler == nil {
		return nil
	}
	return s.handler
}
