package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fileconv/internal/history"
	"fileconv/internal/jobs"
	"fileconv/internal/services"
)

type jobView struct {
	ID             string     `json:"id"`
	ConversionID   string     `json:"conversion_id,omitempty"`
	TaskID         string     `json:"task_id,omitempty"`
	Status         string     `json:"status"`
	OutputFormat   string     `json:"output_format"`
	SourceFilename string     `json:"source_filename"`
	ResultLocation string     `json:"result_location,omitempty"`
	ErrorDetail    string     `json:"error_detail,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	PollAttempts   int        `json:"poll_attempts"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

func newJobView(job jobs.Job) jobView {
	view := jobView{
		ID:             job.LocalID,
		ConversionID:   job.ServerID,
		TaskID:         job.TaskID,
		Status:         string(job.Status),
		OutputFormat:   job.OutputFormat,
		SourceFilename: job.SourceFilename,
		ResultLocation: job.ResultLocation,
		ErrorDetail:    job.ErrorDetail,
		PollAttempts:   job.PollAttempts,
		SubmittedAt:    job.SubmittedAt,
	}
	if job.Err != nil {
		view.LastError = services.Message(job.Err)
	}
	if !job.UpdatedAt.IsZero() {
		updated := job.UpdatedAt
		view.UpdatedAt = &updated
	}
	return view
}

func entryView(entry history.Entry) jobView {
	view := newJobView(entry.Job)
	view.LastError = entry.LastError
	return view
}

func renderJobsTable(list []jobView) string {
	rows := make([][]string, 0, len(list))
	for _, view := range list {
		detail := view.ErrorDetail
		if detail == "" {
			detail = view.LastError
		}
		rows = append(rows, []string{
			shortID(view.ID),
			view.SourceFilename,
			view.OutputFormat,
			formatStatusLabel(jobs.Status(view.Status)),
			strconv.Itoa(view.PollAttempts),
			formatTimestamp(view.SubmittedAt),
			detail,
		})
	}
	return renderTable(
		[]string{"ID", "File", "Format", "Status", "Polls", "Submitted", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func printJobs(cmd *cobra.Command, list []jobs.Job, jsonOut bool) error {
	views := make([]jobView, 0, len(list))
	for _, job := range list {
		views = append(views, newJobView(job))
	}
	if jsonOut {
		return writeJSON(cmd, views)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderJobsTable(views))
	return nil
}

// resolveJob finds ref in the ledger. Without a ledger entry ref is taken to
// be a conversion id the service already accepted.
func resolveJob(ctx context.Context, store *history.Store, ref string) (jobs.Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return jobs.Job{}, services.Wrap(services.ErrValidation, "resolve job", "A job id is required.", nil)
	}
	if store != nil {
		entry, err := store.Get(ctx, ref)
		if err == nil {
			return entry.Job, nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return jobs.Job{}, err
		}
	}
	return jobs.Job{
		LocalID:     uuid.NewString(),
		ServerID:    ref,
		Status:      jobs.StatusPending,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// progressPrinter writes a status line whenever a watched job changes status.
type progressPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	last     map[string]jobs.Status
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{
		out:      out,
		colorize: shouldColorize(out),
		last:     make(map[string]jobs.Status),
	}
}

func (p *progressPrinter) update(job jobs.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if previous, ok := p.last[job.LocalID]; ok && previous == job.Status && job.Err == nil {
		return
	}
	p.last[job.LocalID] = job.Status
	fmt.Fprintln(p.out, jobLine(job, p.colorize))
}

// watchAll follows every job to completion and returns the final states in
// input order. The first context error is returned when the caller cancels.
func watchAll(ctx context.Context, client *jobs.Client, list []jobs.Job, progress *progressPrinter) ([]jobs.Job, error) {
	watchers := make([]*jobs.Watcher, len(list))
	for i, job := range list {
		watchers[i] = client.Watch(ctx, job, progress.update)
	}
	final := make([]jobs.Job, len(list))
	var cancelled error
	for i, watcher := range watchers {
		job, err := watcher.Wait()
		final[i] = job
		if errors.Is(err, context.Canceled) && cancelled == nil {
			cancelled = err
		}
	}
	return final, cancelled
}

// failureSummary reports how many jobs did not end completed.
func failureSummary(list []jobs.Job) error {
	failed := 0
	for _, job := range list {
		if job.Status != jobs.StatusCompleted {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d conversions did not complete", failed, len(list))
}
