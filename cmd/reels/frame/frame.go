// Package framecmder provides the frame command for creating, closing, and
// listing frames against a running reels API server. The current run and
// open-frame nesting live in .reels/session.json so consecutive commands
// compose without re-typing IDs.
package framecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reels/pkg/frame"
)

const frameLongDesc string = `Create, close, and list context frames.

Frames are the unit of agent work: a session, task, function call, or
debug episode. Frames nest; "frame create" opens a child of the current
frame, and "frame close" pops back to its parent.

Use subcommands to work with frames:
  reels frame create <name>    Open a new frame
  reels frame close [id]       Close a frame (default: current)
  reels frame list             List active frames

Examples:
  reels frame create "refactor config loading" --type task
  reels frame close --digest "moved defaults into NewDefaultConfig"
  reels frame list`

const frameShortDesc string = "Create, close, and list frames"

func NewFrameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame",
		Short: frameShortDesc,
		Long:  frameLongDesc,
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newCloseCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// postFrame creates a frame via the API.
func postFrame(ctx context.Context, apiTarget string, f *frame.Frame) (*frame.Frame, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshaling frame: %w", err)
	}

	created := &frame.Frame{}
	if err := doJSON(ctx, http.MethodPost, apiTarget+"/frames", body, http.StatusCreated, created); err != nil {
		return nil, err
	}
	return created, nil
}

// getFrame fetches a frame by ID via the API.
func getFrame(ctx context.Context, apiTarget, id string) (*frame.Frame, error) {
	f := &frame.Frame{}
	if err := doJSON(ctx, http.MethodGet, apiTarget+"/frames/"+id, nil, http.StatusOK, f); err != nil {
		return nil, err
	}
	return f, nil
}

// patchFrame applies a partial update via the API.
func patchFrame(ctx context.Context, apiTarget, id string, patch frame.FramePatch) (*frame.Frame, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshaling patch: %w", err)
	}

	updated := &frame.Frame{}
	if err := doJSON(ctx, http.MethodPatch, apiTarget+"/frames/"+id, body, http.StatusOK, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// doJSON performs one API request and decodes the JSON response into out.
func doJSON(ctx context.Context, method, url string, body []byte, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Reels API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
