package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cardscope/models"
	"cardscope/pkg/accounts"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var admin bool
	create := &cobra.Command{
		Use:   "create <username> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := ctx.ensureDB(cmd.Context(), ctx.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			role := models.RoleUser
			if admin {
				role = models.RoleAdministrator
			}
			user, err := accounts.Create(cmd.Context(), gdb, args[0], args[1], role)
			if errors.Is(err, accounts.ErrUserExists) {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s id=%d role=%s\n", user.Username, user.ID, role)
			return nil
		},
	}
	create.Flags().BoolVar(&admin, "admin", false, "Grant the administrator role")

	passwd := &cobra.Command{
		Use:   "passwd <username> <password>",
		Short: "Reset an account password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := ctx.ensureDB(cmd.Context(), ctx.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if err := accounts.SetPassword(cmd.Context(), gdb, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password reset for user %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, passwd)
	return cmd
}
