package jobs

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Status is the lifecycle state of a conversion job.
type Status string

const (
	StatusSubmitting      Status = "submitting"
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusSubmissionError Status = "submission_error"
)

var allStatuses = []Status{
	StatusSubmitting,
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusSubmissionError,
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus accepts a status name in any case, with "-" or " " in place of "_".
func ParseStatus(value string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	for _, status := range allStatuses {
		if string(status) == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// Terminal reports whether no further status change can happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSubmissionError:
		return true
	default:
		return false
	}
}

// Active reports whether the job is waiting on the service.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// Job is one conversion request as seen from this client.
//
// ResultLocation is set only when Completed; ErrorDetail only when Failed or
// SubmissionError. Err carries the last problem talking to the service,
// including services.ErrPollingTimeout, and never changes Status by itself.
type Job struct {
	LocalID        string
	ServerID       string
	TaskID         string
	Status         Status
	OutputFormat   string
	SourceFilename string
	ResultLocation string
	ErrorDetail    string
	SubmittedAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PollAttempts   int
	Err            error
}

// Terminal reports whether the job has reached a final status.
func (j Job) Terminal() bool {
	return j.Status.Terminal()
}

// Reference returns the most specific identifier known for the job.
func (j Job) Reference() string {
	switch {
	case j.ServerID != "":
		return j.ServerID
	case j.TaskID != "":
		return j.TaskID
	default:
		return j.LocalID
	}
}

// Upload is a file to convert. Name is used for the part filename and to pick
// the media type.
type Upload struct {
	Name    string
	Content io.Reader
}
