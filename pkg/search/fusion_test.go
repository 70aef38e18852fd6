package search

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("sanitizeQuery", func() {
	DescribeTable("rewrites raw input into safe MATCH syntax",
		func(raw, want string) {
			Expect(sanitizeQuery(raw)).To(Equal(want))
		},
		Entry("plain terms", "retry backoff", `"retry" "backoff"`),
		Entry("column filter syntax", "name:secret", `"name" "secret"`),
		Entry("quoted phrase", `"exact phrase"`, `"exact" "phrase"`),
		Entry("boolean operators dropped", "retry AND backoff OR NOT jitter", `"retry" "backoff" "jitter"`),
		Entry("lowercase and is a term", "fish and chips", `"fish" "and" "chips"`),
		Entry("NEAR dropped", "NEAR(a b)", `"a" "b"`),
		Entry("trailing wildcard preserved", "embed*", `"embed"*`),
		Entry("wildcard on last term only", "auth* token*", `"auth" "token"*`),
		Entry("interior operators stripped", "a+b c-d", `"a" "b" "c" "d"`),
		Entry("empty input", "", `""`),
		Entry("only operators", `^*()"`, `""`),
		Entry("only boolean operators", "AND OR NOT", `""`),
	)
})

var _ = Describe("normalizeScores", func() {
	It("scales scores to the unit interval", func() {
		hits := []hit{
			{frameID: "a", score: 2},
			{frameID: "b", score: 6},
			{frameID: "c", score: 4},
		}
		normalizeScores(hits)
		Expect(hits[0].score).To(Equal(0.0))
		Expect(hits[1].score).To(Equal(1.0))
		Expect(hits[2].score).To(Equal(0.5))
	})

	It("normalizes an all-equal set to 1.0", func() {
		hits := []hit{{frameID: "a", score: 3}, {frameID: "b", score: 3}}
		normalizeScores(hits)
		Expect(hits[0].score).To(Equal(1.0))
		Expect(hits[1].score).To(Equal(1.0))
	})

	It("handles an empty set", func() {
		normalizeScores(nil)
	})
})

var _ = Describe("invertDistances", func() {
	It("maps the closest distance to 1.0 and the farthest to 0.0", func() {
		hits := []hit{
			{frameID: "near", score: 0.1},
			{frameID: "mid", score: 0.3},
			{frameID: "far", score: 0.5},
		}
		invertDistances(hits)
		Expect(hits[0].score).To(Equal(1.0))
		Expect(hits[1].score).To(BeNumerically("~", 0.5, 1e-9))
		Expect(hits[2].score).To(Equal(0.0))
	})

	It("scores a single hit 1.0", func() {
		hits := []hit{{frameID: "only", score: 0.42}}
		invertDistances(hits)
		Expect(hits[0].score).To(Equal(1.0))
	})
})

var _ = Describe("fuseWeighted", func() {
	It("blends both paths with the given weights", func() {
		text := []hit{
			{frameID: "both", score: 1.0},
			{frameID: "text-only", score: 0.5},
		}
		vec := []hit{
			{frameID: "both", score: 0.1},
			{frameID: "vec-only", score: 0.3},
		}

		fused := fuseWeighted(text, vec, 0.6, 0.4)

		scores := map[string]float64{}
		for _, h := range fused {
			scores[h.frameID] = h.score
		}

		// text normalizes to both=1.0, text-only=0.0;
		// vec distances invert to both=1.0, vec-only=0.0.
		Expect(scores["both"]).To(BeNumerically("~", 1.0, 1e-9))
		Expect(scores["text-only"]).To(Equal(0.0))
		Expect(scores["vec-only"]).To(Equal(0.0))
		Expect(fused[0].frameID).To(Equal("both"))
	})
})

var _ = Describe("fuseRRF", func() {
	It("sums reciprocal rank contributions", func() {
		text := []hit{
			{frameID: "a", score: -1.0},
			{frameID: "b", score: -2.0},
		}
		vec := []hit{
			{frameID: "b", score: 0.1},
			{frameID: "c", score: 0.2},
		}

		fused := fuseRRF(text, vec)

		scores := map[string]float64{}
		for _, h := range fused {
			scores[h.frameID] = h.score
		}

		Expect(scores["a"]).To(BeNumerically("~", 1.0/61.0, 1e-9))
		Expect(scores["b"]).To(BeNumerically("~", 1.0/62.0+1.0/61.0, 1e-9))
		Expect(scores["c"]).To(BeNumerically("~", 1.0/62.0, 1e-9))
		Expect(fused[0].frameID).To(Equal("b"))
	})

	It("breaks ties deterministically by frame ID", func() {
		text := []hit{{frameID: "z", score: -1.0}}
		vec := []hit{{frameID: "a", score: 0.1}}

		fused := fuseRRF(text, vec)
		Expect(fused[0].frameID).To(Equal("a"))
		Expect(fused[1].frameID).To(Equal("z"))
	})
})
