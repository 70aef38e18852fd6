package framecmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reels/pkg/cliui"
	"github.com/papercomputeco/reels/pkg/config"
	"github.com/papercomputeco/reels/pkg/dotdir"
	"github.com/papercomputeco/reels/pkg/frame"
)

type closeCommander struct {
	frameID string
	digest  string

	apiTarget string
	configDir string
}

const closeLongDesc string = `Close a frame.

Without an argument, closes the session's current frame and pops back to
its parent. The digest becomes the frame's searchable summary; frames
without one only match on their name.

Examples:
  reels frame close --digest "fixed the race in the file watcher"
  reels frame close 4f1c… --digest "abandoned, superseded by #213"`

const closeShortDesc string = "Close a frame"

func newCloseCmd() *cobra.Command {
	cmder := &closeCommander{}

	cmd := &cobra.Command{
		Use:   "close [frame-id]",
		Short: closeShortDesc,
		Long:  closeLongDesc,
		Args:  cobra.MaximumNArgs(1),
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
			if len(args) > 0 {
				cmder.frameID = args[0]
			}
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.digest, "digest", "", "Searchable summary of what happened in the frame")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Reels API server URL")

	return cmd
}

func (c *closeCommander) run(cmd *cobra.Command) error {
	ddm := dotdir.NewManager()
	session, err := ddm.LoadSessionState(c.configDir)
	if err != nil {
		return err
	}

	frameID := c.frameID
	if frameID == "" {
		if session == nil || session.CurrentFrameID == "" {
			return fmt.Errorf("no current frame in session; pass a frame ID")
		}
		frameID = session.CurrentFrameID
	}

	closed := frame.StateClosed
	now := time.Now().UTC()
	patch := frame.FramePatch{
		State:    &closed,
		ClosedAt: &now,
	}
	if c.digest != "" {
		patch.DigestText = &c.digest
	}

	updated, err := patchFrame(cmd.Context(), c.apiTarget, frameID, patch)
	if err != nil {
		return err
	}

	// Pop the session stack when the closed frame is the current one.
	if session != nil && session.CurrentFrameID == frameID {
		if n := len(session.FrameStack); n > 0 && session.FrameStack[n-1] == frameID {
			session.FrameStack = session.FrameStack[:n-1]
		}
		session.CurrentFrameID = ""
		if n := len(session.FrameStack); n > 0 {
			session.CurrentFrameID = session.FrameStack[n-1]
		}
		if err := ddm.SaveSession(session, c.configDir); err != nil {
			return err
		}
	}

	fmt.Printf("\n  %s Closed frame %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(updated.Name),
	)
	fmt.Printf("  %s %s\n", cliui.DimStyle.Render("frame:"), cliui.ValueStyle.Render(updated.ID))
	if updated.DigestText != "" {
		fmt.Printf("  %s %s\n", cliui.DimStyle.Render("digest:"), cliui.ValueStyle.Render(updated.DigestText))
	}
	fmt.Println()

	return nil
}
