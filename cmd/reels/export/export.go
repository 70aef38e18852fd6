// Package exportcmder provides the export command for writing a JSON
// snapshot of the local store.
package exportcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/config"
	"github.com/papercomputeco/reels/pkg/dotdir"
	"github.com/papercomputeco/reels/pkg/logger"
	"github.com/papercomputeco/reels/pkg/store/sqlite"
)

const dbFileName = "reels.db"

type exportCommander struct {
	sqlitePath string
	outPath    string
	debug      bool

	logger *zap.Logger
}

const exportLongDesc string = `Export the local store as a JSON snapshot.

Writes every frame, event, and anchor to a portable snapshot file.
Embeddings are excluded; they are rebuilt on import when an embedding
provider is configured.

Operates directly on the SQLite file; no running server is required.

Examples:
  reels export -o backup.json
  reels export --sqlite ./reels.db > backup.json`

const exportShortDesc string = "Export the local store as a JSON snapshot"

func NewExportCmd() *cobra.Command {
	cmder := &exportCommander{}
	fs := config.NewFlagSet()

	cmd := &cobra.Command{
		Use:   "export",
		Short: exportShortDesc,
		Long:  exportLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, fs, []string{config.FlagSQLite})
			cmder.sqlitePath = v.GetString("storage.sqlite_path")

			if cmder.sqlitePath == "" {
				ddm := dotdir.NewManager()
				target, err := ddm.Target(configDir)
				if err != nil {
					return fmt.Errorf("resolving database path: %w", err)
				}
				cmder.sqlitePath = filepath.Join(target, dbFileName)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	cmd.Flags().StringVarP(&cmder.outPath, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func (c *exportCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	storer, err := sqlite.New(sqlite.Config{Path: c.sqlitePath}, c.logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer storer.Close()

	out := os.Stdout
	if c.outPath != "" {
		f, err := os.Create(c.outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := storer.Export(cmd.Context(), out); err != nil {
		return fmt.Errorf("exporting store: %w", err)
	}

	if c.outPath != "" {
		fmt.Fprintf(os.Stderr, "Exported snapshot to %s\n", c.outPath)
	}
	return nil
}
