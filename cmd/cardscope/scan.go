package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"cardscope/pkg/recognition"
)

type scanOutput struct {
	File   string                  `json:"file"`
	Result *recognition.ScanResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan <image>...",
		Short: "Recognize card photos and print the results",
		Args:  cobra.MinimumNArgs(1),
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
			scanner, err := buildScanner(cmd.Context(), cfg, gdb, logger)
			if err != nil {
				return err
			}

			outputs := make([]scanOutput, 0, len(args))
			failed := 0
			for _, path := range args {
				out := scanOutput{File: path}
				raw, err := os.ReadFile(path)
				if err == nil {
					out.Result, err = scanner.Scan(cmd.Context(), raw)
				}
				if err != nil {
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					out.Error = err.Error()
					failed++
				}
				outputs = append(outputs, out)
			}

			w := cmd.OutOrStdout()
			if wantJSON(w, asJSON) {
				if err := writeJSON(w, outputs); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(w, renderScanTable(outputs))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scans failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func renderScanTable(outputs []scanOutput) string {
	rows := make([][]string, 0, len(outputs))
	for _, o := range outputs {
		if o.Error != "" {
			rows = append(rows, []string{o.File, "error", "", o.Error, "", "", "", ""})
			continue
		}
		r := o.Result
		row := []string{o.File, string(r.ScanMethod), strconv.FormatFloat(r.Confidence, 'f', 2, 64), "", "", "", "", yesNo(r.RequiresConfirmation)}
		if cd := r.CardData; cd != nil {
			row[3] = cd.Name
			row[4] = cd.Game
			if cd.SetCode != "" || cd.CardNumber != "" {
				row[5] = cd.SetCode + "-" + cd.CardNumber
			}
			row[6] = deref(cd.Price)
		}
		rows = append(rows, row)
	}
	return renderTable(
		[]string{"File", "Method", "Confidence", "Name", "Game", "Code", "Price", "Review"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
