// Package searchcmder provides the search command for hybrid retrieval
// over stored frames.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/reels/pkg/config"
	"github.com/papercomputeco/reels/pkg/search"
)

var (
	rankStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	nameStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	digestStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	strategyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query    string
	limit    int
	fusion   string
	minScore float64
	quiet    bool

	apiTarget string
}

const searchLongDesc string = `Search stored frames via the Reels API.

Runs hybrid retrieval: BM25 lexical ranking over frame names, digests,
and payloads, fused with vector nearest-neighbor results when an
embedding provider is configured. Without one, searches are lexical-only.

Use --quiet to output only frame IDs, one per line, for piping.

Examples:
  reels search "how did we configure logging"
  reels search "flaky watcher test" --fusion rrf --limit 20
  reels search "auth retry" --quiet | xargs -n1 reels frame close`

const searchShortDesc string = "Search stored frames"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
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
			if !cmd.Flags().Changed("fusion") {
				cmder.fusion = cfg.Search.Fusion
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 10, "Number of results to return")
	cmd.Flags().StringVar(&cmder.fusion, "fusion", defaults.Search.Fusion, "Fusion strategy (weighted, rrf)")
	cmd.Flags().Float64Var(&cmder.minScore, "min-score", 0, "Drop results scoring below this")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only frame IDs, one per line (for piping)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Reels API server URL")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	output, err := SearchAPI(ctx, c.apiTarget, c.query, c.limit, c.fusion, c.minScore)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range output.Results {
			fmt.Println(result.FrameID)
		}
		return nil
	}

	fmt.Printf("\n%s %s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", output.Query)),
		strategyStyle.Render("("+output.Strategy+")"),
	)

	for i, result := range output.Results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result search.Result) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		idStyle.Render(result.FrameID),
	)

	fmt.Printf("  %s\n", nameStyle.Render(result.Name))

	if result.DigestText != "" {
		digest := strings.ReplaceAll(result.DigestText, "\n", " ")
		if len(digest) > 80 {
			digest = digest[:77] + "..."
		}
		fmt.Printf("  %s\n", digestStyle.Render(digest))
	}

	fmt.Println()
}

// SearchAPI calls the reels search API and returns the parsed output.
func SearchAPI(ctx context.Context, apiTarget, query string, limit int, fusion string, minScore float64) (*search.Output, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/search"
	q := searchURL.Query()
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	if fusion != "" {
		q.Set("fusion", fusion)
	}
	if minScore > 0 {
		q.Set("min_score", strconv.FormatFloat(minScore, 'f', -1, 64))
	}
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Reels API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output search.Output
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
