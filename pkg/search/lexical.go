package search

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Weights are the bm25 column weights for the lexical path. Higher means
// a match in that column counts more.
type Weights struct {
	Name    float64
	Digest  float64
	Inputs  float64
	Outputs float64
}

// DefaultWeights favor the frame name heavily, then the digest, then the
// payloads.
var DefaultWeights = Weights{Name: 10, Digest: 5, Inputs: 2, Outputs: 1}

// LIKE fallback scores by match tier. A name hit outranks a digest hit
// outranks a payload hit, mirroring the bm25 weight ordering.
const (
	likeScoreName    = 1.0
	likeScoreDigest  = 0.6
	likeScoreInputs  = 0.3
	likeScoreOutputs = 0.1
)

// hit is an intermediate scored frame reference flowing between the
// lexical path, the vector path, and fusion.
type hit struct {
	frameID string
	score   float64
}

// lexicalSearch ranks frames with FTS5 bm25. bm25 ranks are negative
// (better = more negative), so they map to (0, 1] via 1/(1+|rank|). When
// the MATCH query fails (FTS5 compiled out, or an unsanitizable query)
// the LIKE fallback answers instead.
func (e *Engine) lexicalSearch(ctx context.Context, query string, w Weights, limit, offset int) ([]hit, error) {
	match := sanitizeQuery(query)

	rows, err := e.db.QueryContext(ctx, `
		SELECT f.frame_id, bm25(frames_fts, ?, ?, ?, ?) AS rank
		FROM frames_fts
		INNER JOIN frames f ON f.rowid = frames_fts.rowid
		WHERE frames_fts MATCH ?
		ORDER BY rank
		LIMIT ? OFFSET ?`,
		w.Name, w.Digest, w.Inputs, w.Outputs,
		match, limit, offset,
	)
	if err != nil {
		e.logger.Warn("fts query failed, falling back to LIKE",
			zap.String("match", match),
			zap.Error(err),
		)
		return e.likeSearch(ctx, query, limit, offset)
	}
	defer rows.Close()

	var hits []hit
	for rows.Next() {
		var (
			h    hit
			rank float64
		)
		if err := rows.Scan(&h.frameID, &rank); err != nil {
			return nil, fmt.Errorf("scanning lexical result: %w", err)
		}
		h.score = 1.0 / (1.0 + math.Abs(rank))
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// likeEscaper neutralizes the LIKE wildcards so query text matches as a
// literal substring.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeSearch is the degraded lexical path: substring match with fixed
// tiered scores instead of relevance ranking.
func (e *Engine) likeSearch(ctx context.Context, query string, limit, offset int) ([]hit, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"

	rows, err := e.db.QueryContext(ctx, `
		SELECT frame_id,
			CASE
				WHEN name LIKE ? ESCAPE '\' THEN ?
				WHEN digest_text LIKE ? ESCAPE '\' THEN ?
				WHEN inputs LIKE ? ESCAPE '\' THEN ?
				ELSE ?
			END AS score
		FROM frames
		WHERE name LIKE ? ESCAPE '\'
			OR digest_text LIKE ? ESCAPE '\'
			OR inputs LIKE ? ESCAPE '\'
			OR outputs LIKE ? ESCAPE '\'
		ORDER BY score DESC, created_at DESC
		LIMIT ? OFFSET ?`,
		pattern, likeScoreName,
		pattern, likeScoreDigest,
		pattern, likeScoreInputs,
		likeScoreOutputs,
		pattern, pattern, pattern, pattern,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("like fallback query: %w", err)
	}
	defer rows.Close()

	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.frameID, &h.score); err != nil {
			return nil, fmt.Errorf("scanning like result: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
