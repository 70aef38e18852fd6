// Package sqlitevec provides the embedded vector driver backed by
// sqlite-vec, operating on the store's own database handle so embedding
// writes and frame deletions share one transaction domain.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/vector"
)

// Driver implements vector.Driver against the frame_embeddings table. The
// vec0 shadow table frame_embeddings_vec is kept in sync by triggers, so
// this driver only ever touches the plain table.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// New wraps the store's shared handle. The store must have been opened
// with vector dimensions configured; without the vec0 shadow table KNN
// queries have nothing to match against.
func New(db *sql.DB, dimensions uint, logger *zap.Logger) (*Driver, error) {
	if dimensions == 0 {
		return nil, fmt.Errorf("embedding dimensions cannot be 0, must be configured")
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.Uint("dimensions", dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{
		db:         db,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB
// format sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Upsert stores embeddings, replacing any existing embedding for the same
// frame. The update path fires the trigger that deletes and re-inserts the
// vec0 row (vec0 does not support UPDATE).
func (d *Driver) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if uint(len(doc.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: frame %s has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, doc.FrameID, len(doc.Embedding), d.dimensions)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO frame_embeddings (frame_id, embedding) VALUES (?, ?)
			ON CONFLICT(frame_id) DO UPDATE SET embedding = excluded.embedding`,
			doc.FrameID, serializeFloat32(doc.Embedding),
		); err != nil {
			return fmt.Errorf("upserting embedding for frame %s: %w", doc.FrameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted embeddings to sqlite-vec",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query runs a KNN match against the vec0 shadow table and joins back to
// frame_embeddings by rowid to recover frame IDs.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			fe.frame_id,
			fv.distance
		FROM frame_embeddings_vec fv
		INNER JOIN frame_embeddings fe ON fe.rowid = fv.rowid
		WHERE fv.embedding MATCH ?
			AND fv.k = ?
		ORDER BY fv.distance
	`, serializeFloat32(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var r vector.QueryResult
		if err := rows.Scan(&r.FrameID, &r.Distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves stored embeddings by frame ID. Frames without an embedding
// are silently skipped.
func (d *Driver) Get(ctx context.Context, frameIDs []string) ([]vector.Document, error) {
	if len(frameIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(frameIDs))
	args := make([]any, len(frameIDs))
	for i, id := range frameIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT frame_id, embedding FROM frame_embeddings WHERE frame_id IN (%s)`,
		strings.Join(placeholders, ","),
	), args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var (
			doc  vector.Document
			blob []byte
		)
		if err := rows.Scan(&doc.FrameID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if doc.Embedding, err = deserializeFloat32(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for frame %s: %w", doc.FrameID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes embeddings by frame ID. The delete trigger clears the
// matching vec0 rows.
func (d *Driver) Delete(ctx context.Context, frameIDs []string) error {
	if len(frameIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(frameIDs))
	args := make([]any, len(frameIDs))
	for i, id := range frameIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	if _, err := d.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM frame_embeddings WHERE frame_id IN (%s)`,
		strings.Join(placeholders, ","),
	), args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	d.logger.Debug("deleted embeddings from sqlite-vec",
		zap.Int("count", len(frameIDs)),
	)

	return nil
}

// Close is a no-op. The database handle belongs to the store; closing it
// here would pull the connection out from under the frame tables.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
