package api

import (
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/embeddings"
	"github.com/papercomputeco/reels/pkg/eventstream"
	"github.com/papercomputeco/reels/pkg/gc"
	"github.com/papercomputeco/reels/pkg/search"
	"github.com/papercomputeco/reels/pkg/store"
	"github.com/papercomputeco/reels/pkg/telemetry"
	"github.com/papercomputeco/reels/pkg/vector"
)

// Server is the API server for managing and querying the reels context store.
type Server struct {
	config    Config
	storer    store.Driver
	engine    *search.Engine
	collector *gc.Collector
	recorder  *telemetry.Recorder
	embedder  embeddings.Provider
	vectors   vector.Driver
	stream    eventstream.Publisher
	logger    *zap.Logger
	app       *fiber.App
}

// Opts carries the Server's collaborators. Storer and Logger are required;
// everything else degrades gracefully when nil (search runs lexical-only,
// gc and stats endpoints return 503).
type Opts struct {
	Config    Config
	Storer    store.Driver
	Engine    *search.Engine
	Collector *gc.Collector
	Recorder  *telemetry.Recorder
	Embedder  embeddings.Provider
	Vectors   vector.Driver
	Stream    eventstream.Publisher
	MCP       http.Handler
	Logger    *zap.Logger
}

// NewServer creates a new API server. The store is injected to allow
// sharing the handle with other components.
func NewServer(o Opts) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    o.Config,
		storer:    o.Storer,
		engine:    o.Engine,
		collector: o.Collector,
		recorder:  o.Recorder,
		embedder:  o.Embedder,
		vectors:   o.Vectors,
		stream:    o.Stream,
		logger:    o.Logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)

	app.Post("/frames", s.handleCreateFrame)
	app.Get("/frames", s.handleListFrames)
	app.Get("/frames/:id", s.handleGetFrame)
	app.Patch("/frames/:id", s.handleUpdateFrame)
	app.Delete("/frames/:id", s.handleDeleteFrame)

	app.Post("/frames/:id/events", s.handleAppendEvent)
	app.Get("/frames/:id/events", s.handleListEvents)
	app.Post("/frames/:id/anchors", s.handleCreateAnchor)
	app.Get("/frames/:id/anchors", s.handleListAnchors)

	app.Get("/search", s.handleSearch)
	app.Post("/gc", s.handleGC)
	app.Get("/stats/retrieval", s.handleRetrievalStats)

	if o.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(o.MCP))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}
