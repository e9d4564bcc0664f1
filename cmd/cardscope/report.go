package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cardscope/process/report"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var username string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a user's collection and scan history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := ctx.ensureDB(cmd.Context(), ctx.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			rep, err := report.BuildCollection(cmd.Context(), gdb, username)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if wantJSON(w, asJSON) {
				return writeJSON(w, rep)
			}

			fmt.Fprintf(w, "Collection of %s: %d cards, value %s\n", rep.Username, rep.TotalCards, money(rep.TotalValue))
			if len(rep.Games) > 0 {
				rows := make([][]string, 0, len(rep.Games))
				for _, g := range rep.Games {
					rows = append(rows, []string{g.Game, strconv.Itoa(g.Cards), strconv.Itoa(g.Priced), money(g.Value)})
				}
				fmt.Fprintln(w, renderTable([]string{"Game", "Cards", "Priced", "Value"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
			}
			if len(rep.Methods) > 0 {
				rows := make([][]string, 0, len(rep.Methods))
				for _, m := range rep.Methods {
					rows = append(rows, []string{m.Method, strconv.FormatInt(m.Scans, 10), strconv.FormatFloat(m.AvgConfidence, 'f', 2, 64)})
				}
				fmt.Fprintln(w, renderTable([]string{"Method", "Scans", "Avg confidence"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight}))
			}
			fmt.Fprintf(w, "Failed scans: %d\n", rep.FailedScans)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "admin", "Account to report on")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
