package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sporelab/pkg/domain"
)

func parseDay(value int) (domain.CheckDay, error) {
	day := domain.CheckDay(value)
	if !day.Valid() {
		return 0, fmt.Errorf("--day must be 7 or 14, got %d", value)
	}
	return day, nil
}

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	var dayFlag int
	cmd := &cobra.Command{
		Use:   "gallery <test-id>",
		Short: "List a test's photos for one checkpoint day with download URLs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(dayFlag)
			if err != nil {
				return err
			}
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				items, err := b.svc.TestGallery(cmd.Context(), args[0], day)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, item := range items {
					index := ""
					if item.Asset.PhotoIndex != nil {
						index = strconv.Itoa(*item.Asset.PhotoIndex)
					}
					rows = append(rows, table.Row{index, item.Asset.StoragePath, item.URL})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					table.Row{"Slot", "Path", "URL"}, rows, 1))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&dayFlag, "day", 7, "Checkpoint day (7 or 14)")
	return cmd
}

func newMosaicCommand(ctx *commandContext) *cobra.Command {
	var dayFlag int
	cmd := &cobra.Command{
		Use:   "mosaic <test-id>",
		Short: "Build the merged day mosaic from a test's current photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(dayFlag)
			if err != nil {
				return err
			}
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				asset, err := b.svc.BuildDayMosaic(cmd.Context(), args[0], day)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "built mosaic %s at %s\n", asset.ID, asset.StoragePath)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&dayFlag, "day", 7, "Checkpoint day (7 or 14)")
	return cmd
}

func newMediaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "media <experiment-id>",
		Short: "List the newest day mosaics across an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				items, err := b.media.ExperimentMosaics(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, item := range items {
					rows = append(rows, table.Row{
						item.RepetitionNumber, item.TestNumber, int(item.Day),
						item.Asset.CreatedAt.Format("2006-01-02 15:04"), item.URL,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					table.Row{"Rep", "Test", "Day", "Created", "URL"}, rows, 1, 2, 3))
				return nil
			})
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var minAgeHours int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored photo blobs that no record references",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				hours := minAgeHours
				if !cmd.Flags().Changed("min-age-hours") {
					hours = b.cfg.Sweep.MinAgeHours
				}
				removed, err := b.svc.OrphanSweep(cmd.Context(), time.Duration(hours)*time.Hour)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned blobs\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&minAgeHours, "min-age-hours", 24, "Only delete blobs older than this many hours")
	return cmd
}
