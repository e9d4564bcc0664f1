package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardscope/pkg/database"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var (
		tables []string
		yes    bool
		reseed bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all rows from application tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := ctx.logger(cmd.ErrOrStderr())
			gdb, err := ctx.ensureDB(cmd.Context(), logger)
			if err != nil {
				return err
			}
			plan, err := database.ResetPlan(gdb, tables)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(plan) == 0 {
				fmt.Fprintln(w, "No requested tables present; nothing to do")
				return nil
			}
			fmt.Fprintln(w, "Tables to clear:")
			for _, t := range plan {
				fmt.Fprintf(w, " - %s\n", t)
			}
			if !yes {
				fmt.Fprintln(w, "Destructive operation. Pass --yes to execute.")
				return nil
			}
			if err := database.Reset(cmd.Context(), gdb, plan); err != nil {
				return err
			}
			logger.Info("tables cleared", "tables", plan)
			if reseed {
				if err := database.Seed(cmd.Context(), gdb, logger); err != nil {
					return err
				}
			}
			fmt.Fprintln(w, "Reset complete")
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tables, "tables", database.AppTables, "Tables to clear")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	cmd.Flags().BoolVar(&reseed, "reseed", false, "Seed roles, the admin account and sample references afterwards")
	return cmd
}
