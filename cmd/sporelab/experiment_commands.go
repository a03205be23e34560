package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sporelab/pkg/domain"
)

func newExperimentCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Manage experiments",
	}
	cmd.AddCommand(newExperimentCreateCommand(ctx))
	cmd.AddCommand(newExperimentListCommand(ctx))
	cmd.AddCommand(newExperimentShowCommand(ctx))
	cmd.AddCommand(newExperimentDeleteCommand(ctx))
	return cmd
}

func newExperimentCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		number    int
		strain    string
		startDate string
		reps      int
		tests     int
		ownerID   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now().UTC().Truncate(24 * time.Hour)
			if startDate != "" {
				parsed, err := time.Parse("2006-01-02", startDate)
				if err != nil {
					return fmt.Errorf("parse --start %q (want YYYY-MM-DD): %w", startDate, err)
				}
				start = parsed
			}
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				exp, err := b.svc.CreateExperiment(cmd.Context(), domain.Experiment{
					Number:          number,
					Strain:          strain,
					StartDate:       start,
					RepetitionCount: reps,
					TestCount:       tests,
					OwnerID:         ownerID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created experiment %s (#%d)\n", exp.ID, exp.Number)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&number, "number", 0, "Experiment number")
	cmd.Flags().StringVar(&strain, "strain", "", "Fungal strain identifier")
	cmd.Flags().StringVar(&startDate, "start", "", "Start date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&reps, "reps", 3, "Repetition count")
	cmd.Flags().IntVar(&tests, "tests", 4, "Tests per repetition")
	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner UUID used in photo storage paths")
	_ = cmd.MarkFlagRequired("number")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newExperimentListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				experiments := b.svc.ListExperiments(cmd.Context())
				rows := make([]table.Row, 0, len(experiments))
				for _, exp := range experiments {
					rows = append(rows, table.Row{
						exp.ID, exp.Number, exp.Strain,
						exp.StartDate.Format("2006-01-02"),
						exp.RepetitionCount, exp.TestCount,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					table.Row{"ID", "Number", "Strain", "Start", "Reps", "Tests"}, rows, 2, 5, 6))
				return nil
			})
		},
	}
}

func newExperimentShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <experiment-id>",
		Short: "Show one experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				exp, err := b.svc.GetExperiment(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", exp.ID)
				fmt.Fprintf(out, "Number:      %d\n", exp.Number)
				fmt.Fprintf(out, "Strain:      %s\n", exp.Strain)
				fmt.Fprintf(out, "Start:       %s\n", exp.StartDate.Format("2006-01-02"))
				fmt.Fprintf(out, "Repetitions: %d\n", exp.RepetitionCount)
				fmt.Fprintf(out, "Tests:       %d\n", exp.TestCount)
				fmt.Fprintf(out, "Owner:       %s\n", exp.OwnerID)
				return nil
			})
		},
	}
}

func newExperimentDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <experiment-id>",
		Short: "Delete an experiment and all of its tests and photo records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				if err := b.svc.DeleteExperiment(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted experiment %s; run `sporelab sweep` to reclaim its photo blobs\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
