package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/reels/pkg/frame"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeFramePersisted is emitted after a frame is created.
	EventTypeFramePersisted = "reels.frame.persisted"

	// EventTypeFrameClosed is emitted after a frame transitions to closed.
	EventTypeFrameClosed = "reels.frame.closed"

	// EventTypeGCCompleted is emitted after a garbage collection run.
	EventTypeGCCompleted = "reels.gc.completed"
)

// Event is a transport-neutral store lifecycle event.
type Event struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Frame         *FrameMeta  `json:"frame,omitempty"`
	GC            *GCMeta     `json:"gc,omitempty"`
}

// EventSource identifies where the event originated.
type EventSource struct {
	ProjectID string `json:"project_id,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// FrameMeta carries frame identity for frame lifecycle events. Payloads
// stay in the store; consumers fetch them by ID when they need them.
type FrameMeta struct {
	FrameID       string  `json:"frame_id"`
	ParentFrameID *string `json:"parent_frame_id,omitempty"`
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	Depth         int     `json:"depth"`
	Retention     string  `json:"retention_policy"`
}

// GCMeta summarizes a garbage collection run.
type GCMeta struct {
	FramesDeleted     int   `json:"frames_deleted"`
	EventsDeleted     int   `json:"events_deleted"`
	AnchorsDeleted    int   `json:"anchors_deleted"`
	EmbeddingsDeleted int   `json:"embeddings_deleted"`
	DryRun            bool  `json:"dry_run"`
	DurationMs        int64 `json:"duration_ms"`
}

// NewFrameEvent builds a frame lifecycle event of the given type.
func NewFrameEvent(eventType string, f *frame.Frame) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			ProjectID: f.ProjectID,
			RunID:     f.RunID,
		},
		Frame: &FrameMeta{
			FrameID:       f.ID,
			ParentFrameID: f.ParentFrameID,
			Type:          f.Type,
			Name:          f.Name,
			Depth:         f.Depth,
			Retention:     string(f.Retention),
		},
	}
}

// NewGCCompletedEvent builds a gc.completed event.
func NewGCCompletedEvent(meta GCMeta) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeGCCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		GC:            &meta,
	}
}
