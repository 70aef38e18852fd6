// Package store defines the persistence contract for frames, events, and
// anchors. Implementations own schema creation and migration and keep the
// derived lexical index synchronized with the base tables.
package store

import (
	"context"

	"github.com/papercomputeco/reels/pkg/frame"
)

// Driver persists and retrieves frames, events, and anchors.
// All implementations enforce referential integrity: deleting a frame
// removes its events, anchors, and embedding record.
type Driver interface {
	// CreateFrame persists a frame, assigning an ID when absent and
	// defaulting the retention policy to frame.RetentionDefault.
	CreateFrame(ctx context.Context, f *frame.Frame) (*frame.Frame, error)

	// GetFrame retrieves a frame by ID. Returns ErrNotFound when absent.
	GetFrame(ctx context.Context, id string) (*frame.Frame, error)

	// UpdateFrame applies only the fields present in the patch.
	// An empty patch is a no-op.
	UpdateFrame(ctx context.Context, id string, patch frame.FramePatch) error

	// DeleteFrame removes a frame, its descendant subtree, and every
	// anchor and event they own. Derived index entries are removed by
	// the schema layer's synchronization hooks.
	DeleteFrame(ctx context.Context, id string) error

	// ActiveFrames returns frames in the active state ordered by depth
	// ascending then creation time ascending (breadth-first read order),
	// optionally filtered by run.
	ActiveFrames(ctx context.Context, runID string) ([]*frame.Frame, error)

	// AppendEvent appends an immutable event to a frame, assigning the
	// next per-frame sequence number.
	AppendEvent(ctx context.Context, e *frame.Event) (*frame.Event, error)

	// Events returns a frame's events ordered by sequence number.
	Events(ctx context.Context, frameID string) ([]*frame.Event, error)

	// CreateAnchor pins an annotation to a frame.
	CreateAnchor(ctx context.Context, a *frame.Anchor) (*frame.Anchor, error)

	// Anchors returns a frame's anchors ordered by priority descending.
	Anchors(ctx context.Context, frameID string) ([]*frame.Anchor, error)

	// Close releases the storage handle. Operations after Close fail
	// with ErrClosed.
	Close() error
}
