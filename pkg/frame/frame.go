// Package frame defines the core data model for the reels context store:
// frames (nested units of agent work), their event timelines, and pinned
// anchors. Structured payloads (inputs, outputs, digests, metadata) are
// opaque JSON maps serialized at the store boundary; nothing outside the
// store inspects their contents except the lexical indexer.
package frame

import (
	"time"
)

// State is the lifecycle state of a frame.
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

// RetentionPolicy controls a frame's eligibility for garbage collection.
type RetentionPolicy string

const (
	// RetentionKeepForever marks a frame as never GC-eligible.
	RetentionKeepForever RetentionPolicy = "keep_forever"

	// RetentionDefault ages out after the configured retention window.
	RetentionDefault RetentionPolicy = "default"

	// RetentionArchive ages out after the configured retention window,
	// same as RetentionDefault; the tag distinguishes frames an agent
	// explicitly archived from ones it simply never tagged.
	RetentionArchive RetentionPolicy = "archive"

	// RetentionTTL30d ages out 30 days after creation.
	RetentionTTL30d RetentionPolicy = "ttl_30d"

	// RetentionTTL7d ages out 7 days after creation.
	RetentionTTL7d RetentionPolicy = "ttl_7d"
)

// ValidRetentionPolicy reports whether p is one of the five known tags.
// The store rejects unknown tags at write time; the garbage collector
// treats unknown tags found in older data as RetentionDefault.
func ValidRetentionPolicy(p RetentionPolicy) bool {
	switch p {
	case RetentionKeepForever, RetentionDefault, RetentionArchive,
		RetentionTTL30d, RetentionTTL7d:
		return true
	}
	return false
}

// Payload is an opaque structured blob attached to frames, events, and
// anchors. It round-trips through JSON at the store boundary.
type Payload map[string]any

// Frame is a unit of agent work: a session, task, function call, or debug
// episode. Frames nest; a child is exclusively owned by its parent for
// cascade-delete purposes.
type Frame struct {
	ID            string          `json:"frame_id"`
	RunID         string          `json:"run_id"`
	ProjectID     string          `json:"project_id"`
	ParentFrameID *string         `json:"parent_frame_id,omitempty"`
	Depth         int             `json:"depth"`
	Type          string          `json:"type"`
	Name          string          `json:"name"`
	State         State           `json:"state"`
	Inputs        Payload         `json:"inputs,omitempty"`
	Outputs       Payload         `json:"outputs,omitempty"`
	DigestText    string          `json:"digest_text,omitempty"`
	DigestJSON    Payload         `json:"digest_json,omitempty"`
	Retention     RetentionPolicy `json:"retention_policy"`
	CreatedAt     time.Time       `json:"created_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
}

// FramePatch is a partial update to a frame. Only non-nil fields are
// applied; a zero-value patch is a no-op.
type FramePatch struct {
	State      *State     `json:"state,omitempty"`
	Outputs    *Payload   `json:"outputs,omitempty"`
	DigestText *string    `json:"digest_text,omitempty"`
	DigestJSON *Payload   `json:"digest_json,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p FramePatch) Empty() bool {
	return p.State == nil && p.Outputs == nil && p.DigestText == nil &&
		p.DigestJSON == nil && p.ClosedAt == nil
}

// Event is an immutable, ordered fact attached to a frame. Seq increases
// monotonically per frame and is assigned by the store on append.
type Event struct {
	ID        string    `json:"event_id"`
	RunID     string    `json:"run_id"`
	FrameID   string    `json:"frame_id"`
	Seq       int64     `json:"seq"`
	EventType string    `json:"event_type"`
	Payload   Payload   `json:"payload,omitempty"`
	TS        time.Time `json:"ts"`
}

// Anchor is a pinned, prioritized annotation attached to a frame.
type Anchor struct {
	ID        string    `json:"anchor_id"`
	FrameID   string    `json:"frame_id"`
	ProjectID string    `json:"project_id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Priority  int       `json:"priority"`
	Metadata  Payload   `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
