// Package statscmder provides the stats command for retrieval quality
// statistics.
package statscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reels/pkg/cliui"
	"github.com/papercomputeco/reels/pkg/config"
	"github.com/papercomputeco/reels/pkg/telemetry"
)

type statsCommander struct {
	sinceDays int

	apiTarget string
}

const statsLongDesc string = `Show retrieval quality statistics.

Aggregates the retrieval log: query volume, latency (mean and p95),
result counts, zero-result rate, and the strategy distribution
(lexical, vector, hybrid_weighted, hybrid_rrf).

Examples:
  reels stats
  reels stats --since-days 7`

const statsShortDesc string = "Show retrieval quality statistics"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVar(&cmder.sinceDays, "since-days", 0, "Restrict to the last N days (default: all)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Reels API server URL")

	return cmd
}

func (c *statsCommander) run(ctx context.Context) error {
	url := c.apiTarget + "/stats/retrieval"
	if c.sinceDays > 0 {
		url += "?since_days=" + strconv.Itoa(c.sinceDays)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating stats request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Reels API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	stats := &telemetry.Stats{}
	if err := json.Unmarshal(body, stats); err != nil {
		return fmt.Errorf("failed to parse stats response: %w", err)
	}

	if stats.TotalQueries == 0 {
		fmt.Println("No retrieval log entries.")
		return nil
	}

	window := "all time"
	if c.sinceDays > 0 {
		window = fmt.Sprintf("last %d days", c.sinceDays)
	}

	fmt.Printf("\n  %s %s\n\n",
		cliui.KeyStyle.Render("Retrieval stats"),
		cliui.DimStyle.Render("("+window+")"),
	)
	fmt.Printf("  %s %d\n", cliui.DimStyle.Render("queries:     "), stats.TotalQueries)
	fmt.Printf("  %s %.1fms mean, %.1fms p95\n",
		cliui.DimStyle.Render("latency:     "),
		stats.MeanLatencyMS,
		stats.P95LatencyMS,
	)
	fmt.Printf("  %s %.1f mean, %d with zero results\n",
		cliui.DimStyle.Render("results:     "),
		stats.MeanResultCount,
		stats.ZeroResultCount,
	)

	strategies := make([]string, 0, len(stats.ByStrategy))
	for s := range stats.ByStrategy {
		strategies = append(strategies, s)
	}
	sort.Strings(strategies)
	for _, s := range strategies {
		fmt.Printf("  %s %d\n",
			cliui.DimStyle.Render(fmt.Sprintf("%-13s", s+":")),
			stats.ByStrategy[s],
		)
	}
	fmt.Println()

	return nil
}
