package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"cardscope/pkg/accounts"
	"cardscope/process/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		username  string
		processed string
		workers   int
		maxBytes  int64
		once      bool
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Scan every photo dropped into a directory into a user's collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd.ErrOrStderr())
			gdb, err := ctx.ensureDB(cmd.Context(), logger)
			if err != nil {
				return err
			}
			owner, err := accounts.Lookup(cmd.Context(), gdb, username)
			if err != nil {
				return err
			}
			scanner, err := buildScanner(cmd.Context(), cfg, gdb, logger)
			if err != nil {
				return err
			}

			w := watcher.New(gdb, scanner, watcher.Options{
				Dir:               filepath.Clean(args[0]),
				ProcessedDir:      processed,
				OwnerID:           owner.ID,
				Workers:           workers,
				MaxProcessedBytes: maxBytes,
			}, logger.With("component", "watcher"))

			if once {
				sum, err := w.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sum.String())
				return nil
			}
			if err := w.Watch(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "admin", "Owner of the scanned cards")
	cmd.Flags().StringVar(&processed, "processed", "", "Where handled files are moved (default <dir>/processed)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (default NumCPU)")
	cmd.Flags().Int64Var(&maxBytes, "max-processed-bytes", 1<<20, "Downscale archived photos above this size (0 disables)")
	cmd.Flags().BoolVar(&once, "once", false, "Process the current files and exit")
	return cmd
}
