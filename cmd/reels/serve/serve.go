// Package servecmder provides the serve command for running the reels API
// server with the full retrieval stack wired in.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/api"
	"github.com/papercomputeco/reels/api/mcp"
	"github.com/papercomputeco/reels/pkg/config"
	"github.com/papercomputeco/reels/pkg/dotdir"
	"github.com/papercomputeco/reels/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/reels/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/reels/pkg/eventstream/utils"
	"github.com/papercomputeco/reels/pkg/gc"
	"github.com/papercomputeco/reels/pkg/logger"
	"github.com/papercomputeco/reels/pkg/search"
	"github.com/papercomputeco/reels/pkg/store/sqlite"
	"github.com/papercomputeco/reels/pkg/telemetry"
	"github.com/papercomputeco/reels/pkg/vector"
	vectorutils "github.com/papercomputeco/reels/pkg/vector/utils"
)

const dbFileName = "reels.db"

type serveCommander struct {
	listen     string
	sqlitePath string

	vectorStoreProvider string
	vectorStoreTarget   string

	embeddingProvider   string
	embeddingFallbacks  []string
	embeddingTarget     string
	embeddingModel      string
	embeddingAPIKey     string
	embeddingDimensions uint

	streamProvider string
	streamBrokers  []string
	streamTopic    string

	noMCP bool
	debug bool

	logger *zap.Logger
}

const serveLongDesc string = `Run the Reels API server.

Serves frame/event/anchor CRUD, hybrid search, garbage collection, and
retrieval statistics over HTTP, plus the MCP context tools on /mcp.

The embedding provider chain is probed at startup; when no provider is
reachable the server runs with vector search disabled and every search
falls back to lexical ranking.

Examples:
  reels serve
  reels serve --listen :9000 --sqlite ./reels.db
  reels serve --embedding-provider openai --vector-store-provider chroma \
    --vector-store-target http://localhost:8000`

const serveShortDesc string = "Run the Reels API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}
	fs := config.NewFlagSet()

	registered := []string{
		config.FlagAPIListen,
		config.FlagSQLite,
		config.FlagVectorStoreProv,
		config.FlagVectorStoreTgt,
		config.FlagEmbeddingProv,
		config.FlagEmbeddingTgt,
		config.FlagEmbeddingModel,
		config.FlagEmbeddingDims,
		config.FlagStreamProvider,
		config.FlagStreamTopic,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, fs, registered)

			cmder.listen = v.GetString("api.listen")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.vectorStoreProvider = v.GetString("vector_store.provider")
			cmder.vectorStoreTarget = v.GetString("vector_store.target")
			cmder.embeddingProvider = v.GetString("embedding.provider")
			cmder.embeddingFallbacks = v.GetStringSlice("embedding.fallbacks")
			cmder.embeddingTarget = v.GetString("embedding.target")
			cmder.embeddingModel = v.GetString("embedding.model")
			cmder.embeddingAPIKey = v.GetString("embedding.api_key")
			cmder.embeddingDimensions = v.GetUint("embedding.dimensions")
			cmder.streamProvider = v.GetString("eventstream.provider")
			cmder.streamBrokers = v.GetStringSlice("eventstream.brokers")
			cmder.streamTopic = v.GetString("eventstream.topic")

			if cmder.sqlitePath == "" {
				ddm := dotdir.NewManager()
				target, err := ddm.Target(configDir)
				if err != nil {
					return fmt.Errorf("resolving database path: %w", err)
				}
				cmder.sqlitePath = filepath.Join(target, dbFileName)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagVectorStoreProv, &cmder.vectorStoreProvider)
	config.AddStringFlag(cmd, fs, config.FlagVectorStoreTgt, &cmder.vectorStoreTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDimensions)
	config.AddStringFlag(cmd, fs, config.FlagStreamProvider, &cmder.streamProvider)
	config.AddStringFlag(cmd, fs, config.FlagStreamTopic, &cmder.streamTopic)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the MCP context tools endpoint")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	// Probe the embedding chain first: the store's vec0 index width must
	// match whichever provider answers.
	embedder, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
		ProviderType: c.embeddingProvider,
		Fallbacks:    c.embeddingFallbacks,
		TargetURL:    c.embeddingTarget,
		Model:        c.embeddingModel,
		APIKey:       c.embeddingAPIKey,
		Dimensions:   int(c.embeddingDimensions),
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	if embedder != nil {
		defer embedder.Close()
	}

	storer, err := c.openStore(embedder)
	if err != nil {
		return err
	}
	defer storer.Close()

	vectors, err := c.newVectorDriver(embedder, storer)
	if err != nil {
		return err
	}
	if vectors != nil {
		defer vectors.Close()
	}

	stream, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: c.streamProvider,
		Brokers:      c.streamBrokers,
		Topic:        c.streamTopic,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating eventstream publisher: %w", err)
	}
	defer stream.Close()

	recorder := telemetry.New(storer.DB(), c.logger)
	engine := search.NewEngine(storer.DB(), embedder, vectors, recorder, c.logger)

	// The embedded vector backend's rows cascade inside the store's
	// transactions; only remote backends need a post-commit purge.
	var remote vector.Driver
	if c.vectorStoreProvider == "chroma" {
		remote = vectors
	}
	collector := gc.New(storer.DB(), remote, stream, c.logger)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Storer: storer,
		Engine: engine,
		Noop:   c.noMCP,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server := api.NewServer(api.Opts{
		Config:    api.Config{ListenAddr: c.listen},
		Storer:    storer,
		Engine:    engine,
		Collector: collector,
		Recorder:  recorder,
		Embedder:  embedder,
		Vectors:   vectors,
		Stream:    stream,
		MCP:       mcpServer.Handler(),
		Logger:    c.logger,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

func (c *serveCommander) openStore(embedder embeddings.Provider) (*sqlite.Store, error) {
	cfg := sqlite.Config{Path: c.sqlitePath}

	// The vec0 index only exists when the embedded vector backend is
	// active; remote backends keep their own index.
	if embedder != nil && (c.vectorStoreProvider == "sqlite" || c.vectorStoreProvider == "") {
		cfg.VectorDimensions = uint(embedder.Dimension())
	}

	storer, err := sqlite.New(cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return storer, nil
}

func (c *serveCommander) newVectorDriver(embedder embeddings.Provider, storer *sqlite.Store) (vector.Driver, error) {
	if embedder == nil {
		return nil, nil
	}

	vectors, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: c.vectorStoreProvider,
		TargetURL:    c.vectorStoreTarget,
		DB:           storer.DB(),
		Dimensions:   uint(embedder.Dimension()),
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}
	return vectors, nil
}
