package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lachiem1/ioukeeper/internal/storage"
)

var wipeConfirmed bool

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local cache",
}

var dbWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete the local database files",
	Long: `Removes the cached debts, sync bookkeeping and saved view settings.
The API token in the system credential store is kept.`,
	Args: cobra.NoArgs,
	RunE: runDBWipe,
}

func init() {
	dbWipeCmd.Flags().BoolVar(&wipeConfirmed, "yes", false, "Confirm the wipe")
}

func runDBWipe(cmd *cobra.Command, _ []string) error {
	if !wipeConfirmed {
		resolved, err := storage.ResolveConfig(cfg.Storage.Path)
		if err != nil {
			return err
		}
		return errors.New("refusing to wipe " + resolved.Path + " without --yes")
	}

	resolved, existed, err := storage.Wipe(cfg.Storage.Path)
	if err != nil {
		return err
	}
	logger.Info("local cache wiped", zap.String("path", resolved.Path), zap.Bool("existed", existed))
	if !existed {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing to remove at %s.\n", resolved.Path)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed local database at %s (%s mode).\n", resolved.Path, resolved.Mode)
	return nil
}
