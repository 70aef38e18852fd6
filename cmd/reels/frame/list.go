package framecmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reels/pkg/cliui"
	"github.com/papercomputeco/reels/pkg/config"
	"github.com/papercomputeco/reels/pkg/dotdir"
	"github.com/papercomputeco/reels/pkg/frame"
	"github.com/papercomputeco/reels/pkg/utils"
)

type listCommander struct {
	runID string
	all   bool

	apiTarget string
	configDir string
}

const listLongDesc string = `List active frames.

Shows the session run's open frames in breadth-first order (shallowest
first). Use --all to list active frames across every run.

Examples:
  reels frame list
  reels frame list --run 7be1…
  reels frame list --all`

const listShortDesc string = "List active frames"

// listResponse mirrors the API's GET /frames body.
type listResponse struct {
	Count  int            `json:"count"`
	Frames []*frame.Frame `json:"frames"`
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cfger, err := config.NewConfiger(cmder.configDir)
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
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.runID, "run", "", "Run ID to list (default: session run)")
	cmd.Flags().BoolVar(&cmder.all, "all", false, "List active frames across all runs")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Reels API server URL")

	return cmd
}

func (c *listCommander) run(cmd *cobra.Command) error {
	runID := c.runID
	if runID == "" && !c.all {
		ddm := dotdir.NewManager()
		session, err := ddm.LoadSessionState(c.configDir)
		if err != nil {
			return err
		}
		if session != nil {
			runID = session.RunID
		}
	}

	url := c.apiTarget + "/frames"
	if runID != "" {
		url += "?run=" + runID
	}

	out := &listResponse{}
	if err := doJSON(cmd.Context(), "GET", url, nil, 200, out); err != nil {
		return err
	}

	if out.Count == 0 {
		fmt.Println("No active frames.")
		return nil
	}

	fmt.Println()
	for _, f := range out.Frames {
		indent := strings.Repeat("  ", f.Depth)
		fmt.Printf("  %s%s %s %s %s\n",
			indent,
			cliui.KeyStyle.Render(utils.Truncate(f.Name, 48)),
			cliui.DimStyle.Render("["+f.Type+"]"),
			cliui.ValueStyle.Render(f.ID),
			cliui.DimStyle.Render(f.CreatedAt.Format("2006-01-02 15:04")),
		)
	}
	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d active frames", out.Count)))

	return nil
}
