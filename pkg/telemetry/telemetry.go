// Package telemetry records retrieval outcomes in an append-only log and
// aggregates them into quality statistics. Recording is advisory: a failed
// write must never fail the search that triggered it, so LogRetrieval
// returns its error for the caller to log and discard.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// timeLayout is fixed-width so the lexicographic window comparison over
// created_at orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Recorder writes and aggregates retrieval log entries on the store's
// shared database handle.
type Recorder struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a Recorder over the store's database handle.
func New(db *sql.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Entry is one retrieval outcome.
type Entry struct {
	Query       string
	Strategy    string
	ResultCount int
	// TopScore is nil when the query returned nothing.
	TopScore  *float64
	LatencyMS float64
	// FrameIDs are the returned frame IDs in rank order.
	FrameIDs []string
}

// LogRetrieval appends an entry to the retrieval log.
func (r *Recorder) LogRetrieval(ctx context.Context, e Entry) error {
	ids, err := json.Marshal(e.FrameIDs)
	if err != nil {
		return fmt.Errorf("marshaling result frame ids: %w", err)
	}
	if e.FrameIDs == nil {
		ids = []byte("[]")
	}

	var topScore sql.NullFloat64
	if e.TopScore != nil {
		topScore = sql.NullFloat64{Float64: *e.TopScore, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO retrieval_log (query_text, strategy, results_count, top_score, latency_ms, result_frame_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Query, e.Strategy, e.ResultCount, topScore, e.LatencyMS,
		string(ids), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting retrieval log entry: %w", err)
	}
	return nil
}

// Stats aggregates retrieval quality over a window.
type Stats struct {
	TotalQueries    int            `json:"total_queries"`
	MeanLatencyMS   float64        `json:"mean_latency_ms"`
	P95LatencyMS    float64        `json:"p95_latency_ms"`
	MeanResultCount float64        `json:"mean_result_count"`
	ZeroResultCount int            `json:"zero_result_count"`
	ByStrategy      map[string]int `json:"by_strategy"`
}

// Stats aggregates the log entries of the last sinceDays days, or the
// whole log when sinceDays is zero or negative. An empty window yields
// all-zero stats and an empty strategy map.
func (r *Recorder) Stats(ctx context.Context, sinceDays int) (*Stats, error) {
	query := `SELECT strategy, results_count, latency_ms FROM retrieval_log`
	args := []any{}
	if sinceDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -sinceDays)
		query += ` WHERE created_at >= ?`
		args = append(args, cutoff.Format(timeLayout))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying retrieval log: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByStrategy: map[string]int{}}

	var (
		latencies  []float64
		latencySum float64
		resultSum  int
	)
	for rows.Next() {
		var (
			strategy string
			count    int
			latency  float64
		)
		if err := rows.Scan(&strategy, &count, &latency); err != nil {
			return nil, fmt.Errorf("scanning retrieval log entry: %w", err)
		}
		stats.TotalQueries++
		stats.ByStrategy[strategy]++
		if count == 0 {
			stats.ZeroResultCount++
		}
		resultSum += count
		latencySum += latency
		latencies = append(latencies, latency)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalQueries == 0 {
		return stats, nil
	}

	n := float64(stats.TotalQueries)
	stats.MeanLatencyMS = latencySum / n
	stats.MeanResultCount = float64(resultSum) / n
	stats.P95LatencyMS = p95(latencies)

	r.logger.Debug("computed retrieval stats",
		zap.Int("total_queries", stats.TotalQueries),
		zap.Int("since_days", sinceDays),
	)

	return stats, nil
}

// p95 is the value at index round(n*0.95)-1 (clamped to 0) of the
// ascending latencies.
func p95(latencies []float64) float64 {
	sort.Float64s(latencies)
	idx := int(math.Round(float64(len(latencies))*0.95)) - 1
	if idx < 0 {
		idx = 0
	}
	return latencies[idx]
}
