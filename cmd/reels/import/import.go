// Package importcmder provides the import command for loading a JSON
// snapshot into the local store.
package importcmder

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

type importCommander struct {
	sqlitePath string
	inPath     string
	truncate   bool
	debug      bool

	logger *zap.Logger
}

const importLongDesc string = `Import a JSON snapshot into the local store.

By default rows with matching IDs are replaced and everything else is
left alone, so importing into a non-empty store merges. Pass --truncate
to empty the store first and load exactly the snapshot's contents.

Operates directly on the SQLite file; no running server is required.

Examples:
  reels import backup.json
  reels import --truncate backup.json
  reels import --sqlite ./reels.db backup.json`

const importShortDesc string = "Import a JSON snapshot into the local store"

func NewImportCmd() *cobra.Command {
	cmder := &importCommander{}
	fs := config.NewFlagSet()

	cmd := &cobra.Command{
		Use:   "import <snapshot-file>",
		Short: importShortDesc,
		Long:  importLongDesc,
		Args:  cobra.ExactArgs(1),
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
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.inPath = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	cmd.Flags().BoolVar(&cmder.truncate, "truncate", false, "Empty the store before loading the snapshot")

	return cmd
}

func (c *importCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	in, err := os.Open(c.inPath)
	if err != nil {
		return fmt.Errorf("opening snapshot file: %w", err)
	}
	defer in.Close()

	storer, err := sqlite.New(sqlite.Config{Path: c.sqlitePath}, c.logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer storer.Close()

	count, err := storer.Import(cmd.Context(), in, sqlite.ImportOptions{Truncate: c.truncate})
	if err != nil {
		return fmt.Errorf("importing snapshot: %w", err)
	}

	fmt.Printf("Imported %d frames from %s\n", count, c.inPath)
	return nil
}
