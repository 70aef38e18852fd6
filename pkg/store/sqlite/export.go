package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/papercomputeco/reels/pkg/frame"
)

// Snapshot is the portable JSON form of a store's contents. Embeddings are
// intentionally excluded; they are derived data and are rebuilt on import
// when an embedding provider is configured.
type Snapshot struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Frames     []*frame.Frame  `json:"frames"`
	Events     []*frame.Event  `json:"events"`
	Anchors    []*frame.Anchor `json:"anchors"`
}

const snapshotVersion = 1

// Export writes the full store contents as a JSON snapshot.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	if err := s.guard(); err != nil {
		return err
	}

	snap := Snapshot{
		Version:    snapshotVersion,
		ExportedAt: time.Now().UTC(),
	}

	frames, err := s.allFrames(ctx)
	if err != nil {
		return fmt.Errorf("exporting frames: %w", err)
	}
	snap.Frames = frames

	for _, f := range frames {
		events, err := s.Events(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("exporting events for frame %s: %w", f.ID, err)
		}
		snap.Events = append(snap.Events, events...)

		anchors, err := s.Anchors(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("exporting anchors for frame %s: %w", f.ID, err)
		}
		snap.Anchors = append(snap.Anchors, anchors...)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ImportOptions controls how a snapshot lands in the store.
type ImportOptions struct {
	// Truncate drops every frame, event, and anchor before loading, so
	// the store ends up holding exactly the snapshot's contents.
	Truncate bool
}

// Import loads a snapshot into the store. By default existing rows with
// matching IDs are replaced and everything else is left alone, so
// importing into a non-empty store merges. With Truncate set the store
// is emptied first, inside the same transaction as the load.
func (s *Store) Import(ctx context.Context, r io.Reader, opts ImportOptions) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return 0, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if opts.Truncate {
		for _, table := range []string{"anchors", "events", "frame_embeddings", "frames"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return 0, mapError(fmt.Errorf("truncating %s: %w", table, err))
			}
		}
	}

	// Frames are sorted by depth so parents land before children and the
	// parent foreign key is always satisfiable.
	frames := make([]*frame.Frame, len(snap.Frames))
	copy(frames, snap.Frames)
	for i := 1; i < len(frames); i++ {
		for j := i; j > 0 && frames[j].Depth < frames[j-1].Depth; j-- {
			frames[j], frames[j-1] = frames[j-1], frames[j]
		}
	}

	count := 0
	for _, f := range frames {
		inputs, err := marshalPayload(f.Inputs)
		if err != nil {
			return 0, err
		}
		outputs, err := marshalPayload(f.Outputs)
		if err != nil {
			return 0, err
		}
		digestJSON, err := marshalPayload(f.DigestJSON)
		if err != nil {
			return 0, err
		}

		var closedAt any
		if f.ClosedAt != nil {
			closedAt = formatTime(*f.ClosedAt)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO frames (`+frameColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.RunID, f.ProjectID, f.ParentFrameID, f.Depth,
			f.Type, f.Name, string(f.State),
			inputs, outputs, f.DigestText, digestJSON,
			string(f.Retention), formatTime(f.CreatedAt), closedAt,
		)
		if err != nil {
			return 0, mapError(fmt.Errorf("importing frame %s: %w", f.ID, err))
		}
		count++
	}

	for _, e := range snap.Events {
		payload, err := marshalPayload(e.Payload)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO events (event_id, run_id, frame_id, seq, event_type, payload, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.RunID, e.FrameID, e.Seq, e.EventType, payload, formatTime(e.TS),
		)
		if err != nil {
			return 0, mapError(fmt.Errorf("importing event %s: %w", e.ID, err))
		}
	}

	for _, a := range snap.Anchors {
		metadata, err := marshalPayload(a.Metadata)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO anchors (anchor_id, frame_id, project_id, type, text, priority, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.FrameID, a.ProjectID, a.Type, a.Text, a.Priority, metadata, formatTime(a.CreatedAt),
		)
		if err != nil {
			return 0, mapError(fmt.Errorf("importing anchor %s: %w", a.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) allFrames(ctx context.Context) ([]*frame.Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+frameColumns+` FROM frames ORDER BY depth ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []*frame.Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}
