package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reels/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadSessionState", func() {
		It("returns nil when no session file exists", func() {
			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("loads a valid session state", func() {
			// Write a session file manually
			data := `{"run_id":"run-1","project_id":"reels","current_frame_id":"frame-2","frame_stack":["frame-1","frame-2"]}`
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte(data), 0o644)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).NotTo(BeNil())
			Expect(state.RunID).To(Equal("run-1"))
			Expect(state.ProjectID).To(Equal("reels"))
			Expect(state.CurrentFrameID).To(Equal("frame-2"))
			Expect(state.FrameStack).To(Equal([]string{"frame-1", "frame-2"}))
		})

		It("returns error for invalid JSON", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("not json"), 0o644)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadSessionState(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})

	Describe("SaveSession", func() {
		It("persists session state to disk", func() {
			state := &dotdir.SessionState{
				RunID:          "run-save",
				CurrentFrameID: "frame-a",
				FrameStack:     []string{"frame-a"},
			}

			err := m.SaveSession(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			// Verify the file exists
			_, err = os.Stat(filepath.Join(tmpDir, "session.json"))
			Expect(err).NotTo(HaveOccurred())

			// Load it back and verify
			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.RunID).To(Equal("run-save"))
			Expect(loaded.CurrentFrameID).To(Equal("frame-a"))
		})

		It("returns error for nil state", func() {
			err := m.SaveSession(nil, tmpDir)
			Expect(err).To(HaveOccurred())
		})

		It("overwrites existing session state", func() {
			first := &dotdir.SessionState{
				RunID:          "run-1",
				CurrentFrameID: "frame-1",
			}
			second := &dotdir.SessionState{
				RunID:          "run-1",
				CurrentFrameID: "frame-2",
				FrameStack:     []string{"frame-1", "frame-2"},
			}

			err := m.SaveSession(first, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = m.SaveSession(second, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.CurrentFrameID).To(Equal("frame-2"))
			Expect(loaded.FrameStack).To(HaveLen(2))
		})
	})

	Describe("ClearSession", func() {
		It("removes the session file", func() {
			state := &dotdir.SessionState{RunID: "run-to-clear"}
			err := m.SaveSession(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = m.ClearSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			// Verify it's gone
			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())
		})

		It("succeeds when no session file exists", func() {
			err := m.ClearSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("round-trip", func() {
		It("saves and loads session state correctly", func() {
			state := &dotdir.SessionState{
				RunID:          "run-roundtrip",
				ProjectID:      "reels",
				CurrentFrameID: "frame-c",
				FrameStack:     []string{"frame-a", "frame-b", "frame-c"},
			}

			err := m.SaveSession(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(state))
		})
	})
})
