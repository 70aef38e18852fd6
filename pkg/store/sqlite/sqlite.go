// Package sqlite provides the embedded SQLite-backed store for frames,
// events, and anchors, including schema creation, migrations, and the
// FTS5/vec0 synchronization triggers.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/frame"
	"github.com/papercomputeco/reels/pkg/store"
)

// Config holds configuration for the SQLite store.
type Config struct {
	// Path is the database file path, or ":memory:" for an in-memory
	// database.
	Path string

	// VectorDimensions, when non-zero, enables the derived vec0 vector
	// index over frame_embeddings and fixes the embedding width.
	VectorDimensions uint
}

// Store implements store.Driver on a single shared SQLite handle. The
// search engine, garbage collector, and embedded vector driver all operate
// through this same handle via DB().
type Store struct {
	db     *sql.DB
	dim    uint
	closed atomic.Bool
	logger *zap.Logger
}

// New opens (or creates) the database, applies pragmas, and initializes
// the schema. Safe to call on an already-initialized database.
func New(c Config, logger *zap.Logger) (*Store, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Register the sqlite-vec extension on every new connection so the
	// vec0 virtual table is available when vector search is configured.
	sqlite_vec.Auto()

	if c.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas ride in the DSN so the driver applies them to every pooled
	// connection; a plain Exec would only configure whichever connection
	// happened to run it.
	db, err := sql.Open("sqlite3", c.Path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if c.Path == ":memory:" {
		// Each pooled connection would otherwise open its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:     db,
		dim:    c.VectorDimensions,
		logger: logger,
	}

	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger.Info("sqlite store opened",
		zap.String("path", c.Path),
		zap.Uint("vector_dimensions", c.VectorDimensions),
	)

	return s, nil
}

// DB exposes the single shared handle for components that build on the
// store (search engine, garbage collector, embedded vector driver). No
// component holds cached copies of table contents.
func (s *Store) DB() *sql.DB {
	return s.db
}

// VectorEnabled reports whether the derived vec0 index was configured.
func (s *Store) VectorEnabled() bool {
	return s.dim > 0
}

// Close releases the storage handle. Subsequent operations fail with
// store.ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// guard returns store.ErrClosed once the store has been closed.
func (s *Store) guard() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

// mapError translates engine-level constraint failures into the store's
// integrity sentinel so callers can errors.Is against it.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", store.ErrIntegrity, err)
	}
	return err
}

// marshalPayload serializes an opaque payload for storage. Nil payloads
// store as SQL NULL so absent and empty stay distinguishable.
func marshalPayload(p frame.Payload) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling payload: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalPayload(ns sql.NullString) (frame.Payload, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var p frame.Payload
	if err := json.Unmarshal([]byte(ns.String), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	return p, nil
}

// timeLayout is fixed-width so that lexicographic comparison of stored
// timestamps matches chronological order. RFC3339Nano trims trailing
// zeros, which breaks string ordering within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts any RFC 3339 fractional precision so rows written
// before the fixed-width layout still scan.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

var _ store.Driver = (*Store)(nil)
