package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fileconv/internal/history"
	"fileconv/internal/jobs"
)

var errHistoryDisabled = errors.New("job history is disabled (set jobs.history_enabled = true)")

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string
	var jsonOut bool

	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List previously submitted conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilter(statusFilter)
			if err != nil {
				return err
			}
			return withHistory(ctx, func(store *history.Store) error {
				entries, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				views := make([]jobView, 0, len(entries))
				for _, entry := range entries {
					views = append(views, entryView(entry))
				}
				if jsonOut {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderJobsTable(views))
				return nil
			})
		},
	}
	jobsCmd.Flags().StringSliceVarP(&statusFilter, "status", "s", nil, "Only show jobs with these statuses")
	jobsCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	var clearFilter []string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the local history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilter(clearFilter)
			if err != nil {
				return err
			}
			return withHistory(ctx, func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
				return nil
			})
		},
	}
	clearCmd.Flags().StringSliceVarP(&clearFilter, "status", "s", nil, "Only remove jobs with these statuses")
	jobsCmd.AddCommand(clearCmd)
	jobsCmd.AddCommand(newJobsResumeCommand(ctx))

	return jobsCmd
}

func newJobsResumeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Follow every unfinished job in the history until it finishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(cmd.Context(), func(client *jobs.Client, store *history.Store) error {
				if store == nil {
					return errHistoryDisabled
				}
				entries, err := store.List(cmd.Context(), jobs.StatusPending, jobs.StatusProcessing)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No unfinished jobs")
					return nil
				}
				active := make([]jobs.Job, 0, len(entries))
				for _, entry := range entries {
					active = append(active, entry.Job)
				}

				progress := newProgressPrinter(cmd.ErrOrStderr())
				final, err := watchAll(cmd.Context(), client, active, progress)
				if printErr := printJobs(cmd, final, jsonOut); printErr != nil {
					return printErr
				}
				if err != nil {
					return err
				}
				return failureSummary(final)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	store, err := ctx.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errHistoryDisabled
	}
	defer store.Close()
	return fn(store)
}

func parseStatusFilter(values []string) ([]jobs.Status, error) {
	statuses := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		status, err := jobs.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
