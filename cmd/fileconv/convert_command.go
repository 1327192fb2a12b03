package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fileconv/internal/history"
	"fileconv/internal/jobs"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var format string
	var wait bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Upload files for conversion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, closeAll, err := openUploads(args)
			if err != nil {
				return err
			}
			defer closeAll()

			return ctx.withJobs(cmd.Context(), func(client *jobs.Client, _ *history.Store) error {
				submitted := client.SubmitAll(cmd.Context(), uploads, format)
				if !wait {
					if err := printJobs(cmd, submitted, jsonOut); err != nil {
						return err
					}
					return submissionSummary(submitted)
				}

				progress := newProgressPrinter(cmd.ErrOrStderr())
				final, err := watchAll(cmd.Context(), client, submitted, progress)
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

	cmd.Flags().StringVarP(&format, "to", "t", "", "Output format (for example pdf, png, txt)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the conversions to finish")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func openUploads(paths []string) ([]jobs.Upload, func(), error) {
	files := make([]*os.File, 0, len(paths))
	closeAll := func() {
		for _, file := range files {
			_ = file.Close()
		}
	}
	uploads := make([]jobs.Upload, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		info, err := os.Stat(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		if info.IsDir() {
			closeAll()
			return nil, nil, fmt.Errorf("%s is a directory", path)
		}
		file, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		files = append(files, file)
		uploads = append(uploads, jobs.Upload{Name: filepath.Base(path), Content: file})
	}
	return uploads, closeAll, nil
}

func submissionSummary(list []jobs.Job) error {
	rejected := 0
	for _, job := range list {
		if job.Status == jobs.StatusSubmissionError {
			rejected++
		}
	}
	if rejected == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d uploads were rejected", rejected, len(list))
}
