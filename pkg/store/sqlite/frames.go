package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/frame"
	"github.com/papercomputeco/reels/pkg/store"
)

const frameColumns = `frame_id, run_id, project_id, parent_frame_id, depth, type, name, state,
	inputs, outputs, digest_text, digest_json, retention_policy, created_at, closed_at`

// CreateFrame persists a frame. An absent ID is assigned, the retention
// policy defaults to frame.RetentionDefault, and a child's depth is forced
// strictly greater than its parent's.
func (s *Store) CreateFrame(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	out := *f
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.State == "" {
		out.State = frame.StateActive
	}
	if out.Retention == "" {
		out.Retention = frame.RetentionDefault
	}
	if !frame.ValidRetentionPolicy(out.Retention) {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidRetention, out.Retention)
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	if out.ParentFrameID != nil {
		parent, err := s.GetFrame(ctx, *out.ParentFrameID)
		if err != nil {
			return nil, fmt.Errorf("resolving parent frame: %w", err)
		}
		if out.Depth <= parent.Depth {
			out.Depth = parent.Depth + 1
		}
	}

	inputs, err := marshalPayload(out.Inputs)
	if err != nil {
		return nil, err
	}
	outputs, err := marshalPayload(out.Outputs)
	if err != nil {
		return nil, err
	}
	digestJSON, err := marshalPayload(out.DigestJSON)
	if err != nil {
		return nil, err
	}

	var closedAt sql.NullString
	if out.ClosedAt != nil {
		closedAt = sql.NullString{String: formatTime(*out.ClosedAt), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frames (`+frameColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.RunID, out.ProjectID, out.ParentFrameID, out.Depth,
		out.Type, out.Name, string(out.State),
		inputs, outputs, out.DigestText, digestJSON,
		string(out.Retention), formatTime(out.CreatedAt), closedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	s.logger.Debug("frame created",
		zap.String("frame_id", out.ID),
		zap.String("run_id", out.RunID),
		zap.Int("depth", out.Depth),
	)

	return &out, nil
}

// GetFrame retrieves a frame by ID.
func (s *Store) GetFrame(ctx context.Context, id string) (*frame.Frame, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+frameColumns+` FROM frames WHERE frame_id = ?`, id)

	f, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: frame %s", store.ErrNotFound, id)
	}
	return f, err
}

// UpdateFrame applies only the fields present in the patch. An empty
// patch is a no-op; absent fields stay untouched.
func (s *Store) UpdateFrame(ctx context.Context, id string, patch frame.FramePatch) error {
	if err := s.guard(); err != nil {
		return err
	}
	if patch.Empty() {
		return nil
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if patch.State != nil {
		sets = append(sets, "state = ?")
		args = append(args, string(*patch.State))
	}
	if patch.Outputs != nil {
		outputs, err := marshalPayload(*patch.Outputs)
		if err != nil {
			return err
		}
		sets = append(sets, "outputs = ?")
		args = append(args, outputs)
	}
	if patch.DigestText != nil {
		sets = append(sets, "digest_text = ?")
		args = append(args, *patch.DigestText)
	}
	if patch.DigestJSON != nil {
		digestJSON, err := marshalPayload(*patch.DigestJSON)
		if err != nil {
			return err
		}
		sets = append(sets, "digest_json = ?")
		args = append(args, digestJSON)
	}
	if patch.ClosedAt != nil {
		sets = append(sets, "closed_at = ?")
		args = append(args, formatTime(*patch.ClosedAt))
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE frames SET `+strings.Join(sets, ", ")+` WHERE frame_id = ?`, args...)
	if err != nil {
		return mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: frame %s", store.ErrNotFound, id)
	}
	return nil
}

// subtreeQuery selects the frame plus every descendant, so owned rows
// are removed explicitly rather than left to the engine cascade.
const subtreeQuery = `
	WITH RECURSIVE subtree(frame_id) AS (
		SELECT frame_id FROM frames WHERE frame_id = ?
		UNION
		SELECT f.frame_id FROM frames f
		INNER JOIN subtree s ON f.parent_frame_id = s.frame_id
	)
	SELECT frame_id FROM subtree`

// DeleteFrame removes a frame and its descendant subtree along with the
// anchors, events, and embeddings they own, all in one transaction. The
// lexical index entries are removed by the FTS triggers.
func (s *Store) DeleteFrame(ctx context.Context, id string) error {
	if err := s.guard(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"anchors", "events", "frame_embeddings"} {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE frame_id IN (`+subtreeQuery+`)`, id)
		if err != nil {
			return mapError(err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM frames WHERE frame_id IN (`+subtreeQuery+`)`, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: frame %s", store.ErrNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("frame deleted", zap.String("frame_id", id))
	return nil
}

// ActiveFrames returns frames in the active state in breadth-first read
// order: depth ascending, then creation time ascending. A non-empty runID
// filters to that run.
func (s *Store) ActiveFrames(ctx context.Context, runID string) ([]*frame.Frame, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	query := `SELECT ` + frameColumns + ` FROM frames WHERE state = 'active'`
	args := []any{}
	if runID != "" {
		query += ` AND run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY depth ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanFrame(row scanner) (*frame.Frame, error) {
	var (
		f                       frame.Frame
		parentID                sql.NullString
		state, retention        string
		inputs, outputs, digest sql.NullString
		createdAt               string
		closedAt                sql.NullString
	)

	err := row.Scan(
		&f.ID, &f.RunID, &f.ProjectID, &parentID, &f.Depth, &f.Type, &f.Name,
		&state, &inputs, &outputs, &f.DigestText, &digest,
		&retention, &createdAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}

	f.State = frame.State(state)
	f.Retention = frame.RetentionPolicy(retention)
	if parentID.Valid {
		f.ParentFrameID = &parentID.String
	}
	if f.Inputs, err = unmarshalPayload(inputs); err != nil {
		return nil, err
	}
	if f.Outputs, err = unmarshalPayload(outputs); err != nil {
		return nil, err
	}
	if f.DigestJSON, err = unmarshalPayload(digest); err != nil {
		return nil, err
	}
	f.CreatedAt = parseTime(createdAt)
	if closedAt.Valid {
		t := parseTime(closedAt.String)
		f.ClosedAt = &t
	}

	return &f, nil
}
