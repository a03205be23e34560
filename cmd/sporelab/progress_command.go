package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <experiment-id>",
		Short: "Show per-repetition test status and unlock state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				progress, err := b.svc.Progress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var rows []table.Row
				for _, rep := range progress.Repetitions {
					for _, tp := range rep.Tests {
						rows = append(rows, table.Row{
							rep.Number, tp.TestNumber, tp.Label,
							string(tp.Status.Label), string(rep.State),
						})
					}
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					table.Row{"Rep", "Test", "Label", "Status", "Repetition"}, rows, 1, 2))
				if progress.AllRepetitionsDone {
					fmt.Fprintln(out, "all repetitions done; the experiment is closed for edits")
				}
				return nil
			})
		},
	}
}
