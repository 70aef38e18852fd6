// Package gc implements policy-driven garbage collection over stored
// frames. Eligibility follows each frame's retention policy; deletion
// cascades to the frame's events, anchors, embeddings, and child frames.
package gc

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/eventstream"
	"github.com/papercomputeco/reels/pkg/frame"
	"github.com/papercomputeco/reels/pkg/vector"
)

const (
	// DefaultRetentionDays is the aging window for the default and
	// archive policies.
	DefaultRetentionDays = 90

	// DefaultBatchSize bounds how many root frames one transaction
	// deletes.
	DefaultBatchSize = 100
)

// Options tune a collection run.
type Options struct {
	// RetentionDays is the aging window for default/archive frames.
	// Defaults to DefaultRetentionDays.
	RetentionDays int

	// BatchSize caps root frames per transaction. Defaults to
	// DefaultBatchSize.
	BatchSize int

	// DryRun reports what would be deleted without deleting it.
	DryRun bool
}

// Result summarizes a collection run. A dry run reports the same counts
// the real run would produce.
type Result struct {
	FramesDeleted     int   `json:"frames_deleted"`
	EventsDeleted     int   `json:"events_deleted"`
	AnchorsDeleted    int   `json:"anchors_deleted"`
	EmbeddingsDeleted int   `json:"embeddings_deleted"`
	Batches           int   `json:"batches"`
	DryRun            bool  `json:"dry_run"`
	DurationMs        int64 `json:"duration_ms"`
}

// Collector deletes expired frames. It runs on the store's shared handle
// and is designed for repeated timer-driven invocation.
type Collector struct {
	db     *sql.DB
	remote vector.Driver
	stream eventstream.Publisher
	logger *zap.Logger
}

// New creates a Collector. remote, when non-nil, is a vector backend
// outside the store's transaction domain (e.g. Chroma) that is purged
// best-effort after each commit; the embedded backend's rows cascade
// inside the transaction and need no purge. stream may be nil.
func New(db *sql.DB, remote vector.Driver, stream eventstream.Publisher, logger *zap.Logger) *Collector {
	return &Collector{
		db:     db,
		remote: remote,
		stream: stream,
		logger: logger,
	}
}

// eligibleRootsQuery selects frames whose age exceeds their policy's
// window. Policies outside the known set age with the default window, so
// a frame written before its tag was retired still expires. keep_forever
// is the only tag that never matches. A negative limit is SQLite for
// unbounded.
const eligibleRootsQuery = `
	SELECT frame_id FROM frames
	WHERE (retention_policy = ? AND created_at <= ?)
	   OR (retention_policy = ? AND created_at <= ?)
	   OR (retention_policy NOT IN (?, ?, ?) AND created_at <= ?)
	ORDER BY created_at ASC
	LIMIT ?`

// doomedQuery expands a root set to include every descendant frame, so
// counts include rows the cascade constraints would remove.
const doomedQuery = `
	WITH RECURSIVE doomed(frame_id) AS (
		SELECT frame_id FROM frames WHERE frame_id IN (%s)
		UNION
		SELECT f.frame_id FROM frames f
		INNER JOIN doomed d ON f.parent_frame_id = d.frame_id
	)
	SELECT frame_id FROM doomed`

// Run performs one collection pass, deleting in batches until no eligible
// frames remain. Each batch is one transaction; a mid-batch failure rolls
// that batch back and aborts the run with prior batches intact.
func (c *Collector) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	retentionDays := opts.RetentionDays
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	result := &Result{DryRun: opts.DryRun}

	if opts.DryRun {
		// A dry run deletes nothing, so it computes the full doomed set
		// in one pass; the batch count is what a real run would need.
		roots, err := c.eligibleRoots(ctx, retentionDays, -1)
		if err != nil {
			return nil, err
		}
		if len(roots) > 0 {
			doomed, err := c.expand(ctx, roots)
			if err != nil {
				return nil, err
			}
			counts, err := c.countBatch(ctx, doomed)
			if err != nil {
				return nil, err
			}
			result.FramesDeleted = counts.frames
			result.EventsDeleted = counts.events
			result.AnchorsDeleted = counts.anchors
			result.EmbeddingsDeleted = counts.embeddings
			result.Batches = (len(roots) + batchSize - 1) / batchSize
		}
	} else {
		for {
			roots, err := c.eligibleRoots(ctx, retentionDays, batchSize)
			if err != nil {
				return nil, err
			}
			if len(roots) == 0 {
				break
			}

			doomed, err := c.expand(ctx, roots)
			if err != nil {
				return nil, err
			}

			counts, err := c.deleteBatch(ctx, doomed)
			if err != nil {
				return nil, err
			}

			result.FramesDeleted += counts.frames
			result.EventsDeleted += counts.events
			result.AnchorsDeleted += counts.anchors
			result.EmbeddingsDeleted += counts.embeddings
			result.Batches++

			if c.remote != nil {
				// Outside the transaction domain; failure leaves orphaned
				// vectors for the next upsert or purge to reconcile.
				if err := c.remote.Delete(ctx, doomed); err != nil {
					c.logger.Warn("remote vector purge failed",
						zap.Int("frames", len(doomed)),
						zap.Error(err),
					)
				}
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()

	c.logger.Info("gc run completed",
		zap.Int("frames_deleted", result.FramesDeleted),
		zap.Int("events_deleted", result.EventsDeleted),
		zap.Int("anchors_deleted", result.AnchorsDeleted),
		zap.Int("embeddings_deleted", result.EmbeddingsDeleted),
		zap.Int("batches", result.Batches),
		zap.Bool("dry_run", result.DryRun),
		zap.Int64("duration_ms", result.DurationMs),
	)

	c.publish(ctx, result)

	return result, nil
}

// cutoff uses the store's fixed-width timestamp layout so the string
// comparisons against created_at order chronologically.
func cutoff(days int) string {
	return time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02T15:04:05.000000000Z07:00")
}

func (c *Collector) eligibleRoots(ctx context.Context, retentionDays, limit int) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, eligibleRootsQuery,
		string(frame.RetentionTTL7d), cutoff(7),
		string(frame.RetentionTTL30d), cutoff(30),
		string(frame.RetentionKeepForever), string(frame.RetentionTTL7d), string(frame.RetentionTTL30d),
		cutoff(retentionDays),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting eligible frames: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning eligible frame: %w", err)
		}
		roots = append(roots, id)
	}
	return roots, rows.Err()
}

// expand resolves the doomed set: the roots plus every descendant frame.
func (c *Collector) expand(ctx context.Context, roots []string) ([]string, error) {
	in, args := placeholders(roots)

	rows, err := c.db.QueryContext(ctx,
		fmt.Sprintf(doomedQuery, in), args...)
	if err != nil {
		return nil, fmt.Errorf("expanding doomed set: %w", err)
	}
	defer rows.Close()

	var doomed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning doomed frame: %w", err)
		}
		doomed = append(doomed, id)
	}
	return doomed, rows.Err()
}

type batchCounts struct {
	frames     int
	events     int
	anchors    int
	embeddings int
}

// countBatch counts the rows a doomed set owns, without a write
// transaction.
func (c *Collector) countBatch(ctx context.Context, doomed []string) (batchCounts, error) {
	counts := batchCounts{frames: len(doomed)}
	if len(doomed) == 0 {
		return counts, nil
	}

	in, args := placeholders(doomed)
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"events", &counts.events},
		{"anchors", &counts.anchors},
		{"frame_embeddings", &counts.embeddings},
	} {
		if err := c.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE frame_id IN (%s)`, q.table, in),
			args...,
		).Scan(q.dst); err != nil {
			return batchCounts{}, fmt.Errorf("counting %s: %w", q.table, err)
		}
	}
	return counts, nil
}

// deleteBatch deletes one doomed set in a single transaction. Counting
// happens inside the same transaction before the deletes, so the reported
// numbers match what a dry run over the same set computes.
func (c *Collector) deleteBatch(ctx context.Context, doomed []string) (batchCounts, error) {
	counts := batchCounts{frames: len(doomed)}
	if len(doomed) == 0 {
		return counts, nil
	}

	in, args := placeholders(doomed)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return batchCounts{}, fmt.Errorf("beginning gc transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"events", &counts.events},
		{"anchors", &counts.anchors},
		{"frame_embeddings", &counts.embeddings},
	} {
		if err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE frame_id IN (%s)`, q.table, in),
			args...,
		).Scan(q.dst); err != nil {
			return batchCounts{}, fmt.Errorf("counting %s: %w", q.table, err)
		}
	}

	// Explicit ordered deletes; the cascade constraints make the child
	// deletes redundant but keep pre-migration databases correct.
	for _, table := range []string{"frame_embeddings", "events", "anchors", "frames"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE frame_id IN (%s)`, table, in),
			args...,
		); err != nil {
			return batchCounts{}, fmt.Errorf("deleting from %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return batchCounts{}, fmt.Errorf("committing gc batch: %w", err)
	}

	return counts, nil
}

func placeholders(ids []string) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ","), args
}

// publish emits gc.completed. Publish failures are logged and swallowed;
// eventing never fails a collection run.
func (c *Collector) publish(ctx context.Context, result *Result) {
	if c.stream == nil {
		return
	}

	event := eventstream.NewGCCompletedEvent(eventstream.GCMeta{
		FramesDeleted:     result.FramesDeleted,
		EventsDeleted:     result.EventsDeleted,
		AnchorsDeleted:    result.AnchorsDeleted,
		EmbeddingsDeleted: result.EmbeddingsDeleted,
		DryRun:            result.DryRun,
		DurationMs:        result.DurationMs,
	})

	if err := c.stream.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish gc.completed",
			zap.Error(err),
		)
	}
}
