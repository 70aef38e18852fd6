// Package gccmder provides the gc command for expiring old frames by
// retention policy.
package gccmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reels/pkg/cliui"
	"github.com/papercomputeco/reels/pkg/config"
	"github.com/papercomputeco/reels/pkg/gc"
)

type gcCommander struct {
	dryRun        bool
	retentionDays int
	batchSize     int

	apiTarget string
}

const gcLongDesc string = `Expire old frames by retention policy.

Frames tagged keep_forever are never collected. ttl_7d and ttl_30d frames
expire after their fixed windows; everything else (default, archive, and
unknown tags) ages out after the configured retention window. Deleting a
frame removes its events, anchors, embeddings, and child frames.

Use --dry-run to see what a run would delete without deleting it.

Examples:
  reels gc --dry-run
  reels gc
  reels gc --retention-days 30 --batch-size 500`

const gcShortDesc string = "Expire old frames by retention policy"

func NewGCCmd() *cobra.Command {
	cmder := &gcCommander{}
	fs := config.NewFlagSet()

	cmd := &cobra.Command{
		Use:   "gc",
		Short: gcShortDesc,
		Long:  gcLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, fs, []string{
				config.FlagGCRetentionDays,
				config.FlagGCBatchSize,
				config.FlagAPITarget,
			})

			cmder.retentionDays = v.GetInt("gc.retention_days")
			cmder.batchSize = v.GetInt("gc.batch_size")
			cmder.apiTarget = v.GetString("client.api_target")

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "Report what would be deleted without deleting it")
	config.AddIntFlag(cmd, fs, config.FlagGCRetentionDays, &cmder.retentionDays)
	config.AddIntFlag(cmd, fs, config.FlagGCBatchSize, &cmder.batchSize)
	config.AddStringFlag(cmd, fs, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *gcCommander) run(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"dry_run":        c.dryRun,
		"retention_days": c.retentionDays,
		"batch_size":     c.batchSize,
	})
	if err != nil {
		return fmt.Errorf("marshaling gc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiTarget+"/gc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating gc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Reels API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gc request failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	result := &gc.Result{}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to parse gc response: %w", err)
	}

	verb := "Deleted"
	if result.DryRun {
		verb = "Would delete"
	}

	fmt.Printf("\n  %s %s %d frames\n",
		cliui.SuccessMark,
		verb,
		result.FramesDeleted,
	)
	fmt.Printf("  %s %d events, %d anchors, %d embeddings\n",
		cliui.DimStyle.Render("plus:"),
		result.EventsDeleted,
		result.AnchorsDeleted,
		result.EmbeddingsDeleted,
	)
	fmt.Printf("  %s\n\n",
		cliui.DimStyle.Render(fmt.Sprintf("%d batches in %dms", result.Batches, result.DurationMs)),
	)

	return nil
}
