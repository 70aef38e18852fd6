package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/reels/pkg/frame"
)

// CreateAnchor pins a prioritized annotation to a frame.
func (s *Store) CreateAnchor(ctx context.Context, a *frame.Anchor) (*frame.Anchor, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	out := *a
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	metadata, err := marshalPayload(out.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO anchors (anchor_id, frame_id, project_id, type, text, priority, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.FrameID, out.ProjectID, out.Type, out.Text,
		out.Priority, metadata, formatTime(out.CreatedAt),
	)
	if err != nil {
		return nil, mapError(err)
	}

	return &out, nil
}

// Anchors returns a frame's anchors ordered by priority descending, then
// creation time ascending.
func (s *Store) Anchors(ctx context.Context, frameID string) ([]*frame.Anchor, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT anchor_id, frame_id, project_id, type, text, priority, metadata, created_at
		FROM anchors WHERE frame_id = ?
		ORDER BY priority DESC, created_at ASC`, frameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anchors []*frame.Anchor
	for rows.Next() {
		var (
			a         frame.Anchor
			metadata  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.FrameID, &a.ProjectID, &a.Type, &a.Text, &a.Priority, &metadata, &createdAt); err != nil {
			return nil, err
		}
		if a.Metadata, err = unmarshalPayload(metadata); err != nil {
			return nil, err
		}
		a.CreatedAt = parseTime(createdAt)
		anchors = append(anchors, &a)
	}
	return anchors, rows.Err()
}
