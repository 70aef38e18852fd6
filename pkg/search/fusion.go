package search

import "sort"

// FusionStrategy selects how lexical and vector rankings combine.
type FusionStrategy string

const (
	// FusionWeighted min-max normalizes each path to [0, 1] and blends
	// with configurable weights. Scores stay interpretable as "how well
	// did this frame do on each signal".
	FusionWeighted FusionStrategy = "weighted"

	// FusionRRF uses reciprocal rank fusion: only rank positions matter,
	// which is robust when the two paths' score scales disagree.
	FusionRRF FusionStrategy = "rrf"
)

const (
	// DefaultTextWeight and DefaultVectorWeight bias weighted fusion
	// toward the lexical signal.
	DefaultTextWeight   = 0.6
	DefaultVectorWeight = 0.4

	// rrfK dampens the head of each ranking; the conventional constant.
	rrfK = 60
)

// normalizeScores min-max scales scores to [0, 1] in place. A degenerate
// set (all scores equal) normalizes to 1.0 so a single perfect hit does
// not vanish to zero.
func normalizeScores(hits []hit) {
	if len(hits) == 0 {
		return
	}

	min, max := hits[0].score, hits[0].score
	for _, h := range hits[1:] {
		if h.score < min {
			min = h.score
		}
		if h.score > max {
			max = h.score
		}
	}

	if max == min {
		for i := range hits {
			hits[i].score = 1.0
		}
		return
	}

	for i := range hits {
		hits[i].score = (hits[i].score - min) / (max - min)
	}
}

// invertDistances converts ascending distances to descending [0, 1]
// similarity scores via inverted min-max. All-equal distances (including
// a single hit) score 1.0.
func invertDistances(hits []hit) {
	if len(hits) == 0 {
		return
	}

	min, max := hits[0].score, hits[0].score
	for _, h := range hits[1:] {
		if h.score < min {
			min = h.score
		}
		if h.score > max {
			max = h.score
		}
	}

	if max == min {
		for i := range hits {
			hits[i].score = 1.0
		}
		return
	}

	for i := range hits {
		hits[i].score = (max - hits[i].score) / (max - min)
	}
}

// fuseWeighted blends two normalized rankings. Frames appearing on only
// one path contribute only that path's weighted score.
func fuseWeighted(text, vec []hit, textWeight, vectorWeight float64) []hit {
	normalizeScores(text)
	invertDistances(vec)

	combined := make(map[string]float64, len(text)+len(vec))
	for _, h := range text {
		combined[h.frameID] += textWeight * h.score
	}
	for _, h := range vec {
		combined[h.frameID] += vectorWeight * h.score
	}

	return sortHits(combined)
}

// fuseRRF combines two rankings by reciprocal rank: each appearance at
// rank r contributes 1/(k+r+1).
func fuseRRF(text, vec []hit) []hit {
	combined := make(map[string]float64, len(text)+len(vec))
	for r, h := range text {
		combined[h.frameID] += 1.0 / float64(rrfK+r+1)
	}
	for r, h := range vec {
		combined[h.frameID] += 1.0 / float64(rrfK+r+1)
	}

	return sortHits(combined)
}

// sortHits orders fused scores descending, breaking ties by frame ID so
// ranking is deterministic.
func sortHits(combined map[string]float64) []hit {
	hits := make([]hit, 0, len(combined))
	for id, score := range combined {
		hits = append(hits, hit{frameID: id, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].frameID < hits[j].frameID
	})
	return hits
}
