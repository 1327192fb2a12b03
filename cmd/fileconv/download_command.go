package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fileconv/internal/fileutil"
	"fileconv/internal/history"
	"fileconv/internal/jobs"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string
	var urlOnly bool

	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Download a converted file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(cmd.Context(), func(client *jobs.Client, store *history.Store) error {
				job, err := resolveJob(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if !job.Terminal() {
					if job, err = client.Poll(cmd.Context(), job); err != nil {
						return err
					}
				}

				location, err := client.DownloadLocation(job)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if urlOnly {
					fmt.Fprintln(out, location)
					return nil
				}

				if output == "-" {
					_, err := client.Download(cmd.Context(), job, out)
					return err
				}
				target := output
				if strings.TrimSpace(target) == "" {
					target = defaultOutputName(job)
				}
				written, err := downloadToFile(cmd, client, job, target)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved %s (%d bytes)\n", target, written)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (\"-\" for stdout)")
	cmd.Flags().BoolVar(&urlOnly, "url", false, "Print the download URL instead of downloading")
	return cmd
}

func downloadToFile(cmd *cobra.Command, client *jobs.Client, job jobs.Job, target string) (int64, error) {
	return fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		_, err := client.Download(cmd.Context(), job, w)
		return err
	})
}

// defaultOutputName swaps the source extension for the output format.
func defaultOutputName(job jobs.Job) string {
	base := strings.TrimSuffix(job.SourceFilename, filepath.Ext(job.SourceFilename))
	if base == "" {
		base = job.ServerID
	}
	if job.OutputFormat == "" {
		return base
	}
	return base + "." + job.OutputFormat
}
