package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardscope/pkg/catalog"
)

func newReferenceCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage the local card reference table",
	}

	load := &cobra.Command{
		Use:   "load <file.yaml>",
		Short: "Insert or update references from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := catalog.LoadReferencesFile(args[0])
			if err != nil {
				return err
			}
			gdb, err := ctx.ensureDB(cmd.Context(), ctx.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			n, err := catalog.NewReferenceStore(gdb).Upsert(cmd.Context(), refs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d references from %s\n", n, args[0])
			return nil
		},
	}

	var game string
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List known references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := ctx.ensureDB(cmd.Context(), ctx.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			refs, err := catalog.NewReferenceStore(gdb).List(cmd.Context(), game)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if wantJSON(w, asJSON) {
				return writeJSON(w, refs)
			}
			if len(refs) == 0 {
				fmt.Fprintln(w, "No references")
				return nil
			}
			rows := make([][]string, 0, len(refs))
			for _, r := range refs {
				rows = append(rows, []string{r.Game, r.SetCode, r.CardNumber, r.Name, deref(r.Rarity)})
			}
			fmt.Fprintln(w, renderTable([]string{"Game", "Set", "Number", "Name", "Rarity"}, rows, nil))
			return nil
		},
	}
	list.Flags().StringVar(&game, "game", "", "Only list references of this game")
	list.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.AddCommand(load, list)
	return cmd
}
