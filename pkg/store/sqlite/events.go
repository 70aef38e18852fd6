package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/reels/pkg/frame"
)

// AppendEvent appends an immutable event to a frame, assigning the next
// per-frame sequence number inside the insert statement so concurrent
// appends cannot produce duplicate sequence numbers.
func (s *Store) AppendEvent(ctx context.Context, e *frame.Event) (*frame.Event, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	out := *e
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.TS.IsZero() {
		out.TS = time.Now().UTC()
	}

	payload, err := marshalPayload(out.Payload)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, run_id, frame_id, seq, event_type, payload, ts)
		VALUES (?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE frame_id = ?),
			?, ?, ?)`,
		out.ID, out.RunID, out.FrameID, out.FrameID,
		out.EventType, payload, formatTime(out.TS),
	)
	if err != nil {
		return nil, mapError(err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM events WHERE event_id = ?`, out.ID,
	).Scan(&out.Seq); err != nil {
		return nil, err
	}

	return &out, nil
}

// Events returns a frame's events ordered by sequence number.
func (s *Store) Events(ctx context.Context, frameID string) ([]*frame.Event, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, run_id, frame_id, seq, event_type, payload, ts
		FROM events WHERE frame_id = ? ORDER BY seq ASC`, frameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*frame.Event
	for rows.Next() {
		var (
			e       frame.Event
			payload sql.NullString
			ts      string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.FrameID, &e.Seq, &e.EventType, &payload, &ts); err != nil {
			return nil, err
		}
		if e.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, err
		}
		e.TS = parseTime(ts)
		events = append(events, &e)
	}
	return events, rows.Err()
}
