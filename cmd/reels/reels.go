// Package reelscmder
package reelscmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/reels/cmd/reels/config"
	exportcmder "github.com/papercomputeco/reels/cmd/reels/export"
	framecmder "github.com/papercomputeco/reels/cmd/reels/frame"
	gccmder "github.com/papercomputeco/reels/cmd/reels/gc"
	importcmder "github.com/papercomputeco/reels/cmd/reels/import"
	initcmder "github.com/papercomputeco/reels/cmd/reels/init"
	searchcmder "github.com/papercomputeco/reels/cmd/reels/search"
	servecmder "github.com/papercomputeco/reels/cmd/reels/serve"
	statscmder "github.com/papercomputeco/reels/cmd/reels/stats"
)

const reelsLongDesc string = `Reels is a hierarchical context store for your agents.

Frames capture units of agent work, events record what happened inside
them, and anchors pin the facts worth keeping. Hybrid lexical+semantic
search brings it all back.

Run the server with:
  reels serve          Run the API server

Work with context using:
  reels frame          Create, close, and list frames
  reels search         Search stored frames
  reels gc             Expire old frames by retention policy
  reels stats          Show retrieval quality statistics`

const reelsShortDesc string = "Reels - Agent Context Store"

func NewReelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reels",
		Short: reelsShortDesc,
		Long:  reelsLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .reels/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(framecmder.NewFrameCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(gccmder.NewGCCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(exportcmder.NewExportCmd())
	cmd.AddCommand(importcmder.NewImportCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())

	return cmd
}
