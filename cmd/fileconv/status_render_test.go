package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"fileconv/internal/jobs"
	"fileconv/internal/services"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("report.txt", statusError, "Failed", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "report.txt:", "[ERROR] Failed")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("report.txt", statusOK, "Completed", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestFormatStatusLabel(t *testing.T) {
	cases := map[jobs.Status]string{
		jobs.StatusSubmissionError: "Submission Error",
		jobs.StatusCompleted:       "Completed",
		"":                         "Unknown",
	}
	for status, want := range cases {
		if got := formatStatusLabel(status); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestJobLine(t *testing.T) {
	failed := jobs.Job{LocalID: "0123456789", SourceFilename: "a.txt", Status: jobs.StatusFailed, ErrorDetail: "bad page"}
	line := jobLine(failed, false)
	requireContains(t, line, "a.txt:")
	requireContains(t, line, "[ERROR] Failed: bad page")

	stalled := jobs.Job{
		LocalID: "0123456789",
		Status:  jobs.StatusProcessing,
		Err:     services.Wrap(services.ErrPollingTimeout, "watch", "Gave up waiting.", nil),
	}
	line = jobLine(stalled, false)
	requireContains(t, line, "01234567:")
	requireContains(t, line, "[WARN] Processing: Gave up waiting.")
}

func TestDefaultOutputName(t *testing.T) {
	if got := defaultOutputName(jobs.Job{SourceFilename: "scan.png", OutputFormat: "pdf"}); got != "scan.pdf" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := defaultOutputName(jobs.Job{ServerID: "conv-9", OutputFormat: "txt"}); got != "conv-9.txt" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestFormatErrorHintsAtLogin(t *testing.T) {
	err := services.Wrap(services.ErrAuthorization, "poll", "Your session has expired. Please log in again.", nil)
	requireContains(t, formatError(err), "fileconv login")
	if got := formatError(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected message %q", got)
	}
}
