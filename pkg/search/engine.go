// Package search implements hybrid retrieval over stored frames: FTS5
// lexical ranking fused with vector nearest-neighbor results. It is used
// by the REST API endpoint, the MCP tool, and the CLI.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/embeddings"
	"github.com/papercomputeco/reels/pkg/telemetry"
	"github.com/papercomputeco/reels/pkg/vector"
)

// Strategy labels recorded in the retrieval log.
const (
	strategyLexical        = "lexical"
	strategyVector         = "vector"
	strategyHybridWeighted = "hybrid_weighted"
	strategyHybridRRF      = "hybrid_rrf"
)

// Engine runs hybrid searches. The embedder and vector driver are
// optional; without them every search is lexical-only.
type Engine struct {
	db       *sql.DB
	embedder embeddings.Provider
	vectors  vector.Driver
	recorder *telemetry.Recorder
	logger   *zap.Logger
}

// NewEngine creates a search engine over the store's database handle.
// embedder, vectors, and recorder may each be nil.
func NewEngine(
	db *sql.DB,
	embedder embeddings.Provider,
	vectors vector.Driver,
	recorder *telemetry.Recorder,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:       db,
		embedder: embedder,
		vectors:  vectors,
		recorder: recorder,
		logger:   logger,
	}
}

// Options tune a single search.
type Options struct {
	// Limit caps returned results. Defaults to 10.
	Limit int

	// Offset skips results after fusion, for pagination.
	Offset int

	// Fusion selects the combining strategy. Defaults to FusionWeighted.
	Fusion FusionStrategy

	// TextWeight/VectorWeight override the weighted-fusion blend.
	// Defaults to DefaultTextWeight/DefaultVectorWeight.
	TextWeight   float64
	VectorWeight float64

	// Weights override the bm25 column weights. Defaults to DefaultWeights.
	Weights *Weights

	// MinScore drops fused results scoring below it.
	MinScore float64
}

// Result is one ranked frame.
type Result struct {
	FrameID    string  `json:"frame_id"`
	Name       string  `json:"name"`
	DigestText string  `json:"digest_text"`
	Score      float64 `json:"score"`
}

// Output is a completed search.
type Output struct {
	Query    string   `json:"query"`
	Strategy string   `json:"strategy"`
	Results  []Result `json:"results"`
	Count    int      `json:"count"`
}

// Search runs the lexical path, the vector path when configured, fuses,
// and records the outcome in the retrieval log. Vector path failures
// degrade to lexical-only; they never fail the search.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Output, error) {
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	weights := DefaultWeights
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	textWeight, vectorWeight := opts.TextWeight, opts.VectorWeight
	if textWeight <= 0 && vectorWeight <= 0 {
		textWeight, vectorWeight = DefaultTextWeight, DefaultVectorWeight
	}

	// Both paths fetch enough candidates to survive the post-fusion
	// offset slice.
	fetchK := limit + opts.Offset

	textHits, err := e.lexicalSearch(ctx, query, weights, fetchK, 0)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	vecHits := e.vectorSearch(ctx, query, fetchK)

	var (
		fused    []hit
		strategy string
	)
	switch {
	case len(vecHits) == 0:
		strategy = strategyLexical
		fused = textHits
	case len(textHits) == 0:
		strategy = strategyVector
		invertDistances(vecHits)
		fused = vecHits
	case opts.Fusion == FusionRRF:
		strategy = strategyHybridRRF
		fused = fuseRRF(textHits, vecHits)
	default:
		strategy = strategyHybridWeighted
		fused = fuseWeighted(textHits, vecHits, textWeight, vectorWeight)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(fused) {
			fused = nil
		} else {
			fused = fused[opts.Offset:]
		}
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}
	if opts.MinScore > 0 {
		kept := fused[:0]
		for _, h := range fused {
			if h.score >= opts.MinScore {
				kept = append(kept, h)
			}
		}
		fused = kept
	}

	results, err := e.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Query:    query,
		Strategy: strategy,
		Results:  results,
		Count:    len(results),
	}

	e.record(ctx, out, time.Since(start))

	return out, nil
}

// vectorSearch embeds the query and asks the vector backend for nearest
// neighbors. Any failure is logged and returns nil so the search degrades
// to lexical-only. Distances ride in hit.score until fusion normalizes.
func (e *Engine) vectorSearch(ctx context.Context, query string, topK int) []hit {
	if e.embedder == nil || e.vectors == nil {
		return nil
	}

	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, lexical-only search",
			zap.Error(err),
		)
		return nil
	}

	neighbors, err := e.vectors.Query(ctx, embedding, topK)
	if err != nil {
		e.logger.Warn("vector query failed, lexical-only search",
			zap.Error(err),
		)
		return nil
	}

	hits := make([]hit, len(neighbors))
	for i, n := range neighbors {
		hits[i] = hit{frameID: n.FrameID, score: n.Distance}
	}
	return hits
}

// hydrate loads names and digests for the fused frame IDs, preserving
// fused order. Frames deleted between ranking and hydration drop out.
func (e *Engine) hydrate(ctx context.Context, hits []hit) ([]Result, error) {
	if len(hits) == 0 {
		return []Result{}, nil
	}

	placeholders := make([]string, len(hits))
	args := make([]any, len(hits))
	for i, h := range hits {
		placeholders[i] = "?"
		args[i] = h.frameID
	}

	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT frame_id, name, digest_text FROM frames WHERE frame_id IN (%s)`,
		strings.Join(placeholders, ","),
	), args...)
	if err != nil {
		return nil, fmt.Errorf("hydrating results: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Result, len(hits))
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.FrameID, &r.Name, &r.DigestText); err != nil {
			return nil, fmt.Errorf("scanning frame: %w", err)
		}
		byID[r.FrameID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r, ok := byID[h.frameID]
		if !ok {
			continue
		}
		r.Score = h.score
		results = append(results, r)
	}
	return results, nil
}

// record appends the outcome to the retrieval log. Failures are logged
// and swallowed; telemetry never fails a search.
func (e *Engine) record(ctx context.Context, out *Output, elapsed time.Duration) {
	if e.recorder == nil {
		return
	}

	entry := telemetry.Entry{
		Query:       out.Query,
		Strategy:    out.Strategy,
		ResultCount: out.Count,
		LatencyMS:   float64(elapsed.Microseconds()) / 1000.0,
	}
	if len(out.Results) > 0 {
		top := out.Results[0].Score
		entry.TopScore = &top
		entry.FrameIDs = make([]string, len(out.Results))
		for i, r := range out.Results {
			entry.FrameIDs[i] = r.FrameID
		}
	}

	if err := e.recorder.LogRetrieval(ctx, entry); err != nil {
		e.logger.Warn("failed to record retrieval",
			zap.Error(err),
		)
	}
}
