package search

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/frame"
	"github.com/papercomputeco/reels/pkg/store/sqlite"
)

var _ = Describe("likeSearch", func() {
	var (
		s   *sqlite.Store
		e   *Engine
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		s, err = sqlite.New(sqlite.Config{Path: ":memory:"}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		e = NewEngine(s.DB(), nil, nil, nil, zap.NewNop())
	})

	AfterEach(func() {
		s.Close()
	})

	seed := func(id, name string) {
		_, err := s.CreateFrame(ctx, &frame.Frame{ID: id, Name: name})
		Expect(err).NotTo(HaveOccurred())
	}

	It("matches plain substrings", func() {
		seed("hit", "implement retry backoff")
		seed("miss", "something else")

		hits, err := e.likeSearch(ctx, "backoff", 10, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].frameID).To(Equal("hit"))
	})

	It("treats a percent sign in the query as a literal", func() {
		seed("literal", "rollout 100% complete")
		seed("near-miss", "rollout 100 percent complete")

		hits, err := e.likeSearch(ctx, "100%", 10, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].frameID).To(Equal("literal"))
	})

	It("treats an underscore in the query as a literal", func() {
		seed("literal", "renamed the frame_id column")
		seed("near-miss", "renamed the frameXid column")

		hits, err := e.likeSearch(ctx, "frame_id", 10, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].frameID).To(Equal("literal"))
	})

	It("treats a backslash in the query as a literal", func() {
		seed("literal", `path C:\reels\db`)

		hits, err := e.likeSearch(ctx, `C:\reels`, 10, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
	})
})
