package eventstream_test

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reels/pkg/eventstream"
	"github.com/papercomputeco/reels/pkg/frame"
)

func TestEventstream(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Eventstream Suite")
}

var _ = Describe("Event", func() {
	It("maps frame identity into frame lifecycle events", func() {
		parentID := "parent-1"
		f := &frame.Frame{
			ID:            "frame-1",
			RunID:         "run-1",
			ProjectID:     "reels",
			ParentFrameID: &parentID,
			Depth:         2,
			Type:          "task",
			Name:          "investigate flaky test",
			Retention:     frame.RetentionTTL7d,
		}

		event := eventstream.NewFrameEvent(eventstream.EventTypeFramePersisted, f)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeFramePersisted))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.EmittedAt).NotTo(BeZero())
		Expect(event.Source.ProjectID).To(Equal("reels"))
		Expect(event.Source.RunID).To(Equal("run-1"))
		Expect(event.GC).To(BeNil())

		Expect(event.Frame).NotTo(BeNil())
		Expect(event.Frame.FrameID).To(Equal("frame-1"))
		Expect(*event.Frame.ParentFrameID).To(Equal("parent-1"))
		Expect(event.Frame.Depth).To(Equal(2))
		Expect(event.Frame.Retention).To(Equal("ttl_7d"))
	})

	It("carries the run summary in gc.completed events", func() {
		event := eventstream.NewGCCompletedEvent(eventstream.GCMeta{
			FramesDeleted: 7,
			EventsDeleted: 12,
			DryRun:        true,
			DurationMs:    88,
		})

		Expect(event.EventType).To(Equal(eventstream.EventTypeGCCompleted))
		Expect(event.Frame).To(BeNil())
		Expect(event.GC).NotTo(BeNil())
		Expect(event.GC.FramesDeleted).To(Equal(7))
		Expect(event.GC.DryRun).To(BeTrue())
	})

	It("marshals frame events with the expected top-level keys", func() {
		event := eventstream.NewFrameEvent(eventstream.EventTypeFrameClosed, &frame.Frame{ID: "f"})

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("frame"))
		Expect(got).NotTo(HaveKey("gc"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeFramePersisted).To(Equal("reels.frame.persisted"))
		Expect(eventstream.EventTypeFrameClosed).To(Equal("reels.frame.closed"))
		Expect(eventstream.EventTypeGCCompleted).To(Equal("reels.gc.completed"))
	})
})
