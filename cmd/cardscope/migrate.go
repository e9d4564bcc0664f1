package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardscope/pkg/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed roles, the admin account and sample references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := ctx.logger(cmd.ErrOrStderr())
			gdb, err := ctx.ensureDB(cmd.Context(), logger)
			if err != nil {
				return err
			}
			if err := database.Migrate(gdb, logger); err != nil {
				return err
			}
			if err := database.Seed(cmd.Context(), gdb, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database ready")
			return nil
		},
	}
}
