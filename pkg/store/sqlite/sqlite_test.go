package sqlite_test

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/frame"
	"github.com/papercomputeco/reels/pkg/store"
	"github.com/papercomputeco/reels/pkg/store/sqlite"
)

func TestSqlite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sqlite Suite")
}

func newMemoryStore() *sqlite.Store {
	s, err := sqlite.New(sqlite.Config{Path: ":memory:"}, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Store", func() {
	var (
		s   *sqlite.Store
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = newMemoryStore()
	})

	AfterEach(func() {
		if s != nil {
			s.Close()
		}
	})

	Describe("New", func() {
		It("creates the database file and parent directories", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "nested", "reels.db")

			fs, err := sqlite.New(sqlite.Config{Path: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer fs.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects an empty path", func() {
			_, err := sqlite.New(sqlite.Config{}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})

		It("is safe to reopen an existing database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "reels.db")

			first, err := sqlite.New(sqlite.Config{Path: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			_, err = first.CreateFrame(ctx, &frame.Frame{Name: "survives reopen"})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Close()).To(Succeed())

			second, err := sqlite.New(sqlite.Config{Path: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			frames, err := second.ActiveFrames(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Name).To(Equal("survives reopen"))
		})
	})

	Describe("CreateFrame", func() {
		It("assigns defaults for absent fields", func() {
			created, err := s.CreateFrame(ctx, &frame.Frame{
				RunID: "run-1",
				Name:  "fix flaky test",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).NotTo(BeEmpty())
			Expect(created.State).To(Equal(frame.StateActive))
			Expect(created.Retention).To(Equal(frame.RetentionDefault))
			Expect(created.CreatedAt).NotTo(BeZero())
		})

		It("preserves a caller-supplied ID", func() {
			created, err := s.CreateFrame(ctx, &frame.Frame{ID: "frame-42", Name: "explicit"})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).To(Equal("frame-42"))
		})

		It("rejects unknown retention policies", func() {
			_, err := s.CreateFrame(ctx, &frame.Frame{
				Name:      "bad retention",
				Retention: frame.RetentionPolicy("ttl_90d"),
			})
			Expect(err).To(MatchError(store.ErrInvalidRetention))
		})

		It("forces a child's depth below its parent", func() {
			parent, err := s.CreateFrame(ctx, &frame.Frame{Name: "parent", Depth: 3})
			Expect(err).NotTo(HaveOccurred())

			child, err := s.CreateFrame(ctx, &frame.Frame{
				Name:          "child",
				ParentFrameID: &parent.ID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(child.Depth).To(Equal(4))
		})

		It("fails when the parent does not exist", func() {
			missing := "no-such-frame"
			_, err := s.CreateFrame(ctx, &frame.Frame{
				Name:          "orphan",
				ParentFrameID: &missing,
			})
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("round-trips opaque payloads", func() {
			created, err := s.CreateFrame(ctx, &frame.Frame{
				Name:   "payloads",
				Inputs: frame.Payload{"file": "main.go", "line": float64(42)},
				DigestJSON: frame.Payload{
					"decision": "use exponential backoff",
				},
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := s.GetFrame(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Inputs).To(Equal(created.Inputs))
			Expect(got.DigestJSON).To(Equal(created.DigestJSON))
			Expect(got.Outputs).To(BeNil())
		})
	})

	Describe("GetFrame", func() {
		It("returns ErrNotFound for a missing frame", func() {
			_, err := s.GetFrame(ctx, "nonexistent")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("UpdateFrame", func() {
		var created *frame.Frame

		BeforeEach(func() {
			var err error
			created, err = s.CreateFrame(ctx, &frame.Frame{
				Name:       "to update",
				DigestText: "original digest",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("applies only the patched fields", func() {
			closed := frame.StateClosed
			now := time.Now().UTC()
			err := s.UpdateFrame(ctx, created.ID, frame.FramePatch{
				State:    &closed,
				ClosedAt: &now,
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := s.GetFrame(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal(frame.StateClosed))
			Expect(got.ClosedAt).NotTo(BeNil())
			Expect(got.DigestText).To(Equal("original digest"))
		})

		It("treats an empty patch as a no-op", func() {
			Expect(s.UpdateFrame(ctx, created.ID, frame.FramePatch{})).To(Succeed())

			got, err := s.GetFrame(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DigestText).To(Equal("original digest"))
			Expect(got.State).To(Equal(frame.StateActive))
		})

		It("returns ErrNotFound for a missing frame", func() {
			digest := "x"
			err := s.UpdateFrame(ctx, "nonexistent", frame.FramePatch{DigestText: &digest})
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("DeleteFrame", func() {
		It("removes the frame with its events and anchors", func() {
			created, err := s.CreateFrame(ctx, &frame.Frame{Name: "doomed"})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.AppendEvent(ctx, &frame.Event{FrameID: created.ID, EventType: "tool_call"})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.CreateAnchor(ctx, &frame.Anchor{FrameID: created.ID, Text: "pin"})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.DeleteFrame(ctx, created.ID)).To(Succeed())

			_, err = s.GetFrame(ctx, created.ID)
			Expect(err).To(MatchError(store.ErrNotFound))

			events, err := s.Events(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())

			anchors, err := s.Anchors(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(anchors).To(BeEmpty())
		})

		It("returns ErrNotFound for a missing frame", func() {
			Expect(s.DeleteFrame(ctx, "nonexistent")).To(MatchError(store.ErrNotFound))
		})

		It("removes the descendant subtree across pooled connections", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "reels.db")
			fs, err := sqlite.New(sqlite.Config{Path: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer fs.Close()

			parent, err := fs.CreateFrame(ctx, &frame.Frame{Name: "parent"})
			Expect(err).NotTo(HaveOccurred())
			child, err := fs.CreateFrame(ctx, &frame.Frame{Name: "child", ParentFrameID: &parent.ID})
			Expect(err).NotTo(HaveOccurred())
			grandchild, err := fs.CreateFrame(ctx, &frame.Frame{Name: "grandchild", ParentFrameID: &child.ID})
			Expect(err).NotTo(HaveOccurred())

			_, err = fs.AppendEvent(ctx, &frame.Event{FrameID: grandchild.ID, EventType: "tool_call"})
			Expect(err).NotTo(HaveOccurred())
			_, err = fs.CreateAnchor(ctx, &frame.Anchor{FrameID: child.ID, Text: "pin"})
			Expect(err).NotTo(HaveOccurred())

			Expect(fs.DeleteFrame(ctx, parent.ID)).To(Succeed())

			for _, id := range []string{parent.ID, child.ID, grandchild.ID} {
				_, err := fs.GetFrame(ctx, id)
				Expect(err).To(MatchError(store.ErrNotFound))
			}

			var orphans int
			err = fs.DB().QueryRowContext(ctx,
				`SELECT (SELECT COUNT(*) FROM events) + (SELECT COUNT(*) FROM anchors)`).Scan(&orphans)
			Expect(err).NotTo(HaveOccurred())
			Expect(orphans).To(BeZero())
		})
	})

	Describe("ActiveFrames", func() {
		It("orders by depth then creation time and skips closed frames", func() {
			root, err := s.CreateFrame(ctx, &frame.Frame{
				RunID:     "run-1",
				Name:      "root",
				CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.CreateFrame(ctx, &frame.Frame{
				RunID:         "run-1",
				Name:          "child",
				ParentFrameID: &root.ID,
				CreatedAt:     time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
			})
			Expect(err).NotTo(HaveOccurred())

			closedAt := time.Now().UTC()
			closedFrame, err := s.CreateFrame(ctx, &frame.Frame{RunID: "run-1", Name: "done"})
			Expect(err).NotTo(HaveOccurred())
			closed := frame.StateClosed
			err = s.UpdateFrame(ctx, closedFrame.ID, frame.FramePatch{State: &closed, ClosedAt: &closedAt})
			Expect(err).NotTo(HaveOccurred())

			frames, err := s.ActiveFrames(ctx, "run-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(frames).To(HaveLen(2))
			Expect(frames[0].Name).To(Equal("root"))
			Expect(frames[1].Name).To(Equal("child"))
		})

		It("orders frames created within the same second", func() {
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			// Inserted newest-first so a correct result cannot come from
			// insertion order.
			_, err := s.CreateFrame(ctx, &frame.Frame{
				RunID:     "run-1",
				Name:      "second",
				CreatedAt: base.Add(520 * time.Millisecond),
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.CreateFrame(ctx, &frame.Frame{
				RunID:     "run-1",
				Name:      "first",
				CreatedAt: base.Add(500 * time.Millisecond),
			})
			Expect(err).NotTo(HaveOccurred())

			frames, err := s.ActiveFrames(ctx, "run-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(frames).To(HaveLen(2))
			Expect(frames[0].Name).To(Equal("first"))
			Expect(frames[1].Name).To(Equal("second"))
		})

		It("filters by run", func() {
			_, err := s.CreateFrame(ctx, &frame.Frame{RunID: "run-a", Name: "a"})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.CreateFrame(ctx, &frame.Frame{RunID: "run-b", Name: "b"})
			Expect(err).NotTo(HaveOccurred())

			frames, err := s.ActiveFrames(ctx, "run-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Name).To(Equal("a"))

			all, err := s.ActiveFrames(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})
	})

	Describe("AppendEvent", func() {
		var created *frame.Frame

		BeforeEach(func() {
			var err error
			created, err = s.CreateFrame(ctx, &frame.Frame{Name: "timeline"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("assigns monotonically increasing sequence numbers per frame", func() {
			first, err := s.AppendEvent(ctx, &frame.Event{FrameID: created.ID, EventType: "tool_call"})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Seq).To(Equal(int64(1)))

			second, err := s.AppendEvent(ctx, &frame.Event{FrameID: created.ID, EventType: "tool_result"})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Seq).To(Equal(int64(2)))

			other, err := s.CreateFrame(ctx, &frame.Frame{Name: "other timeline"})
			Expect(err).NotTo(HaveOccurred())

			otherFirst, err := s.AppendEvent(ctx, &frame.Event{FrameID: other.ID, EventType: "note"})
			Expect(err).NotTo(HaveOccurred())
			Expect(otherFirst.Seq).To(Equal(int64(1)))
		})

		It("rejects events for a missing frame", func() {
			_, err := s.AppendEvent(ctx, &frame.Event{FrameID: "nonexistent", EventType: "note"})
			Expect(err).To(MatchError(store.ErrIntegrity))
		})

		It("returns events in sequence order", func() {
			for _, et := range []string{"first", "second", "third"} {
				_, err := s.AppendEvent(ctx, &frame.Event{FrameID: created.ID, EventType: et})
				Expect(err).NotTo(HaveOccurred())
			}

			events, err := s.Events(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].EventType).To(Equal("first"))
			Expect(events[2].EventType).To(Equal("third"))
			Expect(events[2].Seq).To(Equal(int64(3)))
		})
	})

	Describe("Anchors", func() {
		It("orders by priority descending", func() {
			created, err := s.CreateFrame(ctx, &frame.Frame{Name: "pinboard"})
			Expect(err).NotTo(HaveOccurred())

			for text, priority := range map[string]int{"low": 1, "high": 9, "mid": 5} {
				_, err := s.CreateAnchor(ctx, &frame.Anchor{
					FrameID:  created.ID,
					Text:     text,
					Priority: priority,
				})
				Expect(err).NotTo(HaveOccurred())
			}

			anchors, err := s.Anchors(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(anchors).To(HaveLen(3))
			Expect(anchors[0].Text).To(Equal("high"))
			Expect(anchors[1].Text).To(Equal("mid"))
			Expect(anchors[2].Text).To(Equal("low"))
		})

		It("rejects anchors for a missing frame", func() {
			_, err := s.CreateAnchor(ctx, &frame.Anchor{FrameID: "nonexistent", Text: "pin"})
			Expect(err).To(MatchError(store.ErrIntegrity))
		})
	})

	Describe("Export and Import", func() {
		It("round-trips frames, events, and anchors", func() {
			root, err := s.CreateFrame(ctx, &frame.Frame{RunID: "run-1", Name: "root"})
			Expect(err).NotTo(HaveOccurred())
			child, err := s.CreateFrame(ctx, &frame.Frame{
				RunID:         "run-1",
				Name:          "child",
				ParentFrameID: &root.ID,
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AppendEvent(ctx, &frame.Event{FrameID: child.ID, EventType: "tool_call"})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.CreateAnchor(ctx, &frame.Anchor{FrameID: root.ID, Text: "pin", Priority: 3})
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(s.Export(ctx, &buf)).To(Succeed())

			dest := newMemoryStore()
			defer dest.Close()

			count, err := dest.Import(ctx, &buf, sqlite.ImportOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			gotChild, err := dest.GetFrame(ctx, child.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(gotChild.ParentFrameID).NotTo(BeNil())
			Expect(*gotChild.ParentFrameID).To(Equal(root.ID))

			events, err := dest.Events(ctx, child.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))

			anchors, err := dest.Anchors(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(anchors).To(HaveLen(1))
			Expect(anchors[0].Priority).To(Equal(3))
		})

		It("merges into a non-empty store, replacing matching IDs", func() {
			_, err := s.CreateFrame(ctx, &frame.Frame{ID: "shared", Name: "old name"})
			Expect(err).NotTo(HaveOccurred())

			src := newMemoryStore()
			defer src.Close()
			_, err = src.CreateFrame(ctx, &frame.Frame{ID: "shared", Name: "new name"})
			Expect(err).NotTo(HaveOccurred())
			_, err = src.CreateFrame(ctx, &frame.Frame{ID: "fresh", Name: "fresh"})
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(src.Export(ctx, &buf)).To(Succeed())

			count, err := s.Import(ctx, &buf, sqlite.ImportOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			got, err := s.GetFrame(ctx, "shared")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("new name"))

			all, err := s.ActiveFrames(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})

		It("rejects snapshots with an unknown version", func() {
			_, err := s.Import(ctx, bytes.NewBufferString(`{"version": 99}`), sqlite.ImportOptions{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported snapshot version"))
		})

		It("replaces the store contents when truncating", func() {
			stale, err := s.CreateFrame(ctx, &frame.Frame{ID: "stale", Name: "stale"})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AppendEvent(ctx, &frame.Event{FrameID: stale.ID, EventType: "tool_call"})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.CreateAnchor(ctx, &frame.Anchor{FrameID: stale.ID, Text: "pin"})
			Expect(err).NotTo(HaveOccurred())

			src := newMemoryStore()
			defer src.Close()
			_, err = src.CreateFrame(ctx, &frame.Frame{ID: "fresh", Name: "fresh"})
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(src.Export(ctx, &buf)).To(Succeed())

			count, err := s.Import(ctx, &buf, sqlite.ImportOptions{Truncate: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			_, err = s.GetFrame(ctx, "stale")
			Expect(err).To(MatchError(store.ErrNotFound))

			events, err := s.Events(ctx, "stale")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())

			all, err := s.ActiveFrames(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].ID).To(Equal("fresh"))
		})
	})

	Describe("migrations", func() {
		// DDL from databases created before the retention column and the
		// cascade rules on events and anchors.
		const legacySchema = `
			CREATE TABLE frames (
				frame_id        TEXT PRIMARY KEY,
				run_id          TEXT NOT NULL DEFAULT '',
				project_id      TEXT NOT NULL DEFAULT '',
				parent_frame_id TEXT REFERENCES frames(frame_id) ON DELETE CASCADE,
				depth           INTEGER NOT NULL DEFAULT 0,
				type            TEXT NOT NULL DEFAULT '',
				name            TEXT NOT NULL DEFAULT '',
				state           TEXT NOT NULL DEFAULT 'active',
				inputs          TEXT,
				outputs         TEXT,
				digest_text     TEXT NOT NULL DEFAULT '',
				digest_json     TEXT,
				created_at      TEXT NOT NULL,
				closed_at       TEXT
			);
			CREATE TABLE events (
				event_id   TEXT PRIMARY KEY,
				run_id     TEXT NOT NULL DEFAULT '',
				frame_id   TEXT NOT NULL REFERENCES frames(frame_id),
				seq        INTEGER NOT NULL,
				event_type TEXT NOT NULL DEFAULT '',
				payload    TEXT,
				ts         TEXT NOT NULL,
				UNIQUE(frame_id, seq)
			);
			CREATE TABLE anchors (
				anchor_id  TEXT PRIMARY KEY,
				frame_id   TEXT NOT NULL REFERENCES frames(frame_id),
				project_id TEXT NOT NULL DEFAULT '',
				type       TEXT NOT NULL DEFAULT '',
				text       TEXT NOT NULL DEFAULT '',
				priority   INTEGER NOT NULL DEFAULT 0,
				metadata   TEXT,
				created_at TEXT NOT NULL
			);`

		It("upgrades a legacy database in place", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "legacy.db")

			raw, err := sql.Open("sqlite3", dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = raw.Exec(legacySchema)
			Expect(err).NotTo(HaveOccurred())
			_, err = raw.Exec(`
				INSERT INTO frames (frame_id, name, created_at)
				VALUES ('legacy-parent', 'parent', '2025-01-01T00:00:00Z');
				INSERT INTO frames (frame_id, name, parent_frame_id, depth, created_at)
				VALUES ('legacy-child', 'child', 'legacy-parent', 1, '2025-01-01T00:01:00Z');
				INSERT INTO events (event_id, frame_id, seq, event_type, ts)
				VALUES ('legacy-event', 'legacy-child', 1, 'tool_call', '2025-01-01T00:02:00Z');
				INSERT INTO anchors (anchor_id, frame_id, text, created_at)
				VALUES ('legacy-anchor', 'legacy-child', 'pin', '2025-01-01T00:03:00Z');`)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.Close()).To(Succeed())

			migrated, err := sqlite.New(sqlite.Config{Path: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer migrated.Close()

			var version int
			err = migrated.DB().QueryRowContext(ctx,
				`SELECT MAX(version) FROM schema_version`).Scan(&version)
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(3))

			got, err := migrated.GetFrame(ctx, "legacy-parent")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Retention).To(Equal(frame.RetentionDefault))

			events, err := migrated.Events(ctx, "legacy-child")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].ID).To(Equal("legacy-event"))

			anchors, err := migrated.Anchors(ctx, "legacy-child")
			Expect(err).NotTo(HaveOccurred())
			Expect(anchors).To(HaveLen(1))
		})

		It("rebuilds the cascade rules the legacy tables lack", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "legacy.db")

			raw, err := sql.Open("sqlite3", dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = raw.Exec(legacySchema)
			Expect(err).NotTo(HaveOccurred())
			_, err = raw.Exec(`
				INSERT INTO frames (frame_id, name, created_at)
				VALUES ('legacy-parent', 'parent', '2025-01-01T00:00:00Z');
				INSERT INTO frames (frame_id, name, parent_frame_id, depth, created_at)
				VALUES ('legacy-child', 'child', 'legacy-parent', 1, '2025-01-01T00:01:00Z');
				INSERT INTO events (event_id, frame_id, seq, event_type, ts)
				VALUES ('legacy-event', 'legacy-child', 1, 'tool_call', '2025-01-01T00:02:00Z');
				INSERT INTO anchors (anchor_id, frame_id, text, created_at)
				VALUES ('legacy-anchor', 'legacy-child', 'pin', '2025-01-01T00:03:00Z');`)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.Close()).To(Succeed())

			migrated, err := sqlite.New(sqlite.Config{Path: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer migrated.Close()

			// Engine-level delete, bypassing the store's explicit subtree
			// deletes, so only the rebuilt constraints remove child rows.
			_, err = migrated.DB().ExecContext(ctx,
				`DELETE FROM frames WHERE frame_id = 'legacy-parent'`)
			Expect(err).NotTo(HaveOccurred())

			var remaining int
			err = migrated.DB().QueryRowContext(ctx, `
				SELECT (SELECT COUNT(*) FROM frames)
					+ (SELECT COUNT(*) FROM events)
					+ (SELECT COUNT(*) FROM anchors)`).Scan(&remaining)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(BeZero())
		})
	})

	Describe("Close", func() {
		It("fails subsequent operations with ErrClosed", func() {
			Expect(s.Close()).To(Succeed())

			_, err := s.CreateFrame(ctx, &frame.Frame{Name: "too late"})
			Expect(err).To(MatchError(store.ErrClosed))

			s = nil
		})
	})
})
