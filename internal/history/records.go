package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fileconv/internal/jobs"
	"fileconv/internal/logging"
	"fileconv/internal/services"
)

const entryColumns = "local_id, server_id, task_id, status, output_format, source_filename, result_location, error_detail, last_error, poll_attempts, submitted_at, created_at, updated_at, recorded_at"

// minPrefixLength is the shortest local id prefix Get will match.
const minPrefixLength = 4

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded job. LastError keeps the text of Job.Err, which
// cannot be stored as an error value.
type Entry struct {
	Job        jobs.Job
	LastError  string
	RecordedAt time.Time
}

// Record inserts or replaces the ledger row for job.LocalID.
func (s *Store) Record(ctx context.Context, job jobs.Job) error {
	if strings.TrimSpace(job.LocalID) == "" {
		return errors.New("record job: local id is empty")
	}
	lastError := ""
	if job.Err != nil {
		lastError = services.Message(job.Err)
	}
	submitted := job.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}

	_, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (`+entryColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(local_id) DO UPDATE SET
            server_id = excluded.server_id,
            task_id = excluded.task_id,
            status = excluded.status,
            output_format = excluded.output_format,
            source_filename = excluded.source_filename,
            result_location = excluded.result_location,
            error_detail = excluded.error_detail,
            last_error = excluded.last_error,
            poll_attempts = excluded.poll_attempts,
            created_at = excluded.created_at,
            updated_at = excluded.updated_at,
            recorded_at = excluded.recorded_at`,
		job.LocalID,
		nullableString(job.ServerID),
		nullableString(job.TaskID),
		string(job.Status),
		job.OutputFormat,
		job.SourceFilename,
		nullableString(job.ResultLocation),
		nullableString(job.ErrorDetail),
		nullableString(lastError),
		job.PollAttempts,
		formatTime(submitted),
		nullableTime(job.CreatedAt),
		nullableTime(job.UpdatedAt),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// Get finds a job by local id, conversion id, or task id, falling back to a
// unique local id prefix. A missing job yields services.ErrNotFound.
func (s *Store) Get(ctx context.Context, ref string) (Entry, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Entry{}, services.Wrap(services.ErrValidation, "history", "A job id is required.", nil)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM jobs
        WHERE local_id = ? OR server_id = ? OR task_id = ?
        ORDER BY submitted_at DESC LIMIT 1`,
		ref, ref, ref,
	)
	entry, err := scanEntry(row)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get job: %w", err)
	}
	if len(ref) < minPrefixLength {
		return Entry{}, services.Wrap(services.ErrNotFound, "history", fmt.Sprintf("No job matches %q.", ref), nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM jobs WHERE local_id LIKE ? ESCAPE '\' LIMIT 2`,
		escapeLike(ref)+"%",
	)
	if err != nil {
		return Entry{}, fmt.Errorf("get job by prefix: %w", err)
	}
	defer rows.Close()

	matches, err := scanEntries(rows)
	if err != nil {
		return Entry{}, err
	}
	switch len(matches) {
	case 0:
		return Entry{}, services.Wrap(services.ErrNotFound, "history", fmt.Sprintf("No job matches %q.", ref), nil)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, services.Wrap(services.ErrValidation, "history", fmt.Sprintf("Job id %q is ambiguous.", ref), nil)
	}
}

// List returns recorded jobs, newest first, optionally limited to statuses.
func (s *Store) List(ctx context.Context, statuses ...jobs.Status) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY submitted_at DESC, local_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Clear removes recorded jobs. With no statuses every job is removed.
func (s *Store) Clear(ctx context.Context, statuses ...jobs.Status) (int64, error) {
	query := `DELETE FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if removed > 0 {
		s.logger.Info("history cleared", logging.Int("removed", int(removed)))
	}
	return removed, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		localID        string
		serverID       sql.NullString
		taskID         sql.NullString
		status         string
		outputFormat   string
		sourceFilename string
		resultLocation sql.NullString
		errorDetail    sql.NullString
		lastError      sql.NullString
		pollAttempts   int
		submittedRaw   string
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		recordedRaw    string
	)
	if err := scanner.Scan(
		&localID,
		&serverID,
		&taskID,
		&status,
		&outputFormat,
		&sourceFilename,
		&resultLocation,
		&errorDetail,
		&lastError,
		&pollAttempts,
		&submittedRaw,
		&createdRaw,
		&updatedRaw,
		&recordedRaw,
	); err != nil {
		return Entry{}, err
	}

	return Entry{
		Job: jobs.Job{
			LocalID:        localID,
			ServerID:       serverID.String,
			TaskID:         taskID.String,
			Status:         jobs.Status(status),
			OutputFormat:   outputFormat,
			SourceFilename: sourceFilename,
			ResultLocation: resultLocation.String,
			ErrorDetail:    errorDetail.String,
			PollAttempts:   pollAttempts,
			SubmittedAt:    parseTime(submittedRaw),
			CreatedAt:      parseTime(createdRaw.String),
			UpdatedAt:      parseTime(updatedRaw.String),
		},
		LastError:  lastError.String,
		RecordedAt: parseTime(recordedRaw),
	}, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
