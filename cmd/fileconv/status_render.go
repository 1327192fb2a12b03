package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fileconv/internal/jobs"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// jobStatusKind maps a job onto the status line palette.
func jobStatusKind(job jobs.Job) statusKind {
	switch {
	case job.Status == jobs.StatusCompleted:
		return statusOK
	case job.Status == jobs.StatusFailed || job.Status == jobs.StatusSubmissionError:
		return statusError
	case job.Err != nil:
		return statusWarn
	default:
		return statusInfo
	}
}

// formatStatusLabel turns "submission_error" into "Submission Error".
func formatStatusLabel(status jobs.Status) string {
	raw := strings.TrimSpace(string(status))
	if raw == "" {
		return "Unknown"
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(raw, "_", " "))
}

// jobLine renders a one-line summary of job for progress output.
func jobLine(job jobs.Job, colorize bool) string {
	message := formatStatusLabel(job.Status)
	switch {
	case job.ErrorDetail != "":
		message += ": " + job.ErrorDetail
	case job.Err != nil:
		message += ": " + formatError(job.Err)
	}
	label := job.SourceFilename
	if label == "" {
		label = shortID(job.Reference())
	}
	return renderStatusLine(label, jobStatusKind(job), message, colorize)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shouldColorize(w io.Writer) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
