package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fileconv/internal/history"
	"fileconv/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status ID",
		Short: "Check the status of a conversion",
		Long: "Check the status of a conversion. ID may be a local job id (or a unique prefix of one),\n" +
			"a conversion id, or a task id.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(cmd.Context(), func(client *jobs.Client, store *history.Store) error {
				job, err := resolveJob(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				var pollErr error
				if watch {
					progress := newProgressPrinter(cmd.ErrOrStderr())
					job, pollErr = client.Watch(cmd.Context(), job, progress.update).Wait()
				} else if !job.Terminal() {
					job, pollErr = client.Poll(cmd.Context(), job)
				}

				if jsonOut {
					if err := writeJSON(cmd, newJobView(job)); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					fmt.Fprintln(out, jobLine(job, shouldColorize(out)))
					if job.ResultLocation != "" {
						fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Result:", job.ResultLocation)
					}
				}
				return pollErr
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until the conversion finishes")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
