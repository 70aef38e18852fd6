package framecmder

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/reels/pkg/cliui"
	"github.com/papercomputeco/reels/pkg/config"
	"github.com/papercomputeco/reels/pkg/dotdir"
	"github.com/papercomputeco/reels/pkg/frame"
	"github.com/papercomputeco/reels/pkg/git"
)

type createCommander struct {
	name      string
	frameType string
	runID     string
	projectID string
	parentID  string
	retention string
	root      bool

	apiTarget string
	configDir string
}

const createLongDesc string = `Open a new frame.

Without --parent or --root, the new frame nests under the session's
current frame. Without --run, the frame joins the session's current run;
a fresh session starts a new run.

Examples:
  reels frame create "investigate flaky test" --type debug
  reels frame create "nightly batch" --root --retention ttl_7d
  reels frame create "call: fetch_user" --type function_call --parent <id>`

const createShortDesc string = "Open a new frame"

func newCreateCmd() *cobra.Command {
	cmder := &createCommander{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: createShortDesc,
		Long:  createLongDesc,
		Args:  cobra.ExactArgs(1),
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
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.name = args[0]
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.frameType, "type", "t", "task", "Frame type (session, task, function_call, debug, ...)")
	cmd.Flags().StringVar(&cmder.runID, "run", "", "Run ID (default: session run, or a new run)")
	cmd.Flags().StringVar(&cmder.projectID, "project", "", "Project ID (default: session project, or the git repo name)")
	cmd.Flags().StringVar(&cmder.parentID, "parent", "", "Parent frame ID (default: session current frame)")
	cmd.Flags().StringVar(&cmder.retention, "retention", "", "Retention policy (keep_forever, default, archive, ttl_30d, ttl_7d)")
	cmd.Flags().BoolVar(&cmder.root, "root", false, "Open a top-level frame, ignoring the session's current frame")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Reels API server URL")

	return cmd
}

func (c *createCommander) run(cmd *cobra.Command) error {
	ddm := dotdir.NewManager()
	session, err := ddm.LoadSessionState(c.configDir)
	if err != nil {
		return err
	}
	if session == nil {
		session = &dotdir.SessionState{}
	}

	runID := c.runID
	if runID == "" {
		runID = session.RunID
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	projectID := c.projectID
	if projectID == "" {
		projectID = session.ProjectID
	}
	if projectID == "" {
		projectID = git.RepoName()
	}

	parentID := c.parentID
	if parentID == "" && !c.root {
		parentID = session.CurrentFrameID
	}

	f := &frame.Frame{
		RunID:     runID,
		ProjectID: projectID,
		Type:      c.frameType,
		Name:      c.name,
		Retention: frame.RetentionPolicy(c.retention),
	}

	if parentID != "" {
		parent, err := getFrame(cmd.Context(), c.apiTarget, parentID)
		if err != nil {
			return fmt.Errorf("resolving parent frame: %w", err)
		}
		f.ParentFrameID = &parent.ID
		f.Depth = parent.Depth + 1
	}

	created, err := postFrame(cmd.Context(), c.apiTarget, f)
	if err != nil {
		return err
	}

	session.RunID = runID
	if projectID != "" {
		session.ProjectID = projectID
	}
	session.CurrentFrameID = created.ID
	session.FrameStack = append(session.FrameStack, created.ID)
	if err := ddm.SaveSession(session, c.configDir); err != nil {
		return err
	}

	fmt.Printf("\n  %s Opened frame %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(created.Name),
	)
	fmt.Printf("  %s %s\n", cliui.DimStyle.Render("frame:"), cliui.ValueStyle.Render(created.ID))
	fmt.Printf("  %s %s\n", cliui.DimStyle.Render("run:  "), cliui.ValueStyle.Render(created.RunID))
	if created.ParentFrameID != nil {
		fmt.Printf("  %s %s (depth %d)\n",
			cliui.DimStyle.Render("under:"),
			cliui.ValueStyle.Render(*created.ParentFrameID),
			created.Depth,
		)
	}
	fmt.Println()

	return nil
}
