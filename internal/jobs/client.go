package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fileconv/internal/config"
	"fileconv/internal/fileutil"
	"fileconv/internal/logging"
	"fileconv/internal/services"
	"fileconv/internal/services/convertapi"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 150
	defaultRequestTimeout  = 30 * time.Second

	msgUploadFailed   = "An unknown error occurred during upload."
	msgStatusFailed   = "Could not fetch the conversion status."
	msgConversionFail = "Conversion failed."
)

// Doer sends a request on behalf of the current session.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder persists job snapshots. Recording failures are logged and never
// fail the operation that produced the snapshot.
type Recorder interface {
	Record(ctx context.Context, job Job) error
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL         string
	PollInterval    time.Duration
	MaxPollAttempts int
	RequestTimeout  time.Duration
	OutputFormats   []string
	Logger          *slog.Logger
	Recorder        Recorder
}

// OptionsFromConfig maps the [api] and [jobs] sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		BaseURL:         cfg.API.BaseURL,
		PollInterval:    cfg.PollInterval(),
		MaxPollAttempts: cfg.Jobs.MaxPollAttempts,
		RequestTimeout:  cfg.RequestTimeout(),
		OutputFormats:   append([]string(nil), cfg.Jobs.OutputFormats...),
	}
}

// Client submits and tracks conversion jobs.
type Client struct {
	doer            Doer
	baseURL         string
	pollInterval    time.Duration
	maxPollAttempts int
	requestTimeout  time.Duration
	formats         []string
	logger          *slog.Logger
	recorder        Recorder
}

// NewClient builds a Client sending requests through doer.
func NewClient(doer Doer, opts Options) *Client {
	c := &Client{
		doer:            doer,
		baseURL:         strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		pollInterval:    opts.PollInterval,
		maxPollAttempts: opts.MaxPollAttempts,
		requestTimeout:  opts.RequestTimeout,
		logger:          logging.NewComponentLogger(opts.Logger, "jobs"),
		recorder:        opts.Recorder,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.maxPollAttempts <= 0 {
		c.maxPollAttempts = defaultMaxPollAttempts
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = defaultRequestTimeout
	}
	for _, format := range opts.OutputFormats {
		if f := normalizeFormat(format); f != "" && !slices.Contains(c.formats, f) {
			c.formats = append(c.formats, f)
		}
	}
	return c
}

// OutputFormats returns the accepted output formats. An empty list accepts any format.
func (c *Client) OutputFormats() []string {
	return append([]string(nil), c.formats...)
}

func normalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}

func (c *Client) jobLogger(ctx context.Context, job Job) *slog.Logger {
	logger := logging.WithContext(logging.WithJobID(ctx, job.LocalID), c.logger)
	if job.ServerID != "" {
		logger = logger.With(logging.String(logging.FieldConversionID, job.ServerID))
	}
	return logger
}

func (c *Client) record(ctx context.Context, job Job) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), job); err != nil {
		c.jobLogger(ctx, job).Warn("failed to record job", logging.Error(err))
	}
}

// Submit uploads one file. Missing input or an unaccepted format fails with
// services.ErrValidation before any request. Once the job exists, upload
// failures come back as a job in StatusSubmissionError with a nil error. The
// upload is never retried.
func (c *Client) Submit(ctx context.Context, upload Upload, outputFormat string) (Job, error) {
	name := strings.TrimSpace(upload.Name)
	if name != "" {
		name = filepath.Base(name)
	}
	if name == "" || name == "." || name == string(filepath.Separator) || upload.Content == nil {
		return Job{}, services.Wrap(services.ErrValidation, "submit", "A file is required.", nil)
	}
	format := normalizeFormat(outputFormat)
	if format == "" {
		return Job{}, services.Wrap(services.ErrValidation, "submit", "An output format is required.", nil)
	}
	if len(c.formats) > 0 && !slices.Contains(c.formats, format) {
		return Job{}, services.Wrap(services.ErrValidation, "submit",
			fmt.Sprintf("Unsupported output format %q. Choose one of: %s.", format, strings.Join(c.formats, ", ")), nil)
	}

	job := Job{
		LocalID:        uuid.NewString(),
		Status:         StatusSubmitting,
		OutputFormat:   format,
		SourceFilename: name,
		SubmittedAt:    time.Now().UTC(),
	}
	c.record(ctx, job)
	logger := c.jobLogger(ctx, job)
	logger.Debug("submitting file", logging.String("file", name), logging.String("format", format))

	result, err := c.upload(ctx, name, upload.Content, format)
	if err != nil {
		job.Status = StatusSubmissionError
		job.ErrorDetail = services.Message(err)
		job.Err = err
		c.record(ctx, job)
		logger.Warn("upload failed", logging.Error(err))
		return job, nil
	}

	job.ServerID = strings.TrimSpace(result.ConversionID)
	job.TaskID = strings.TrimSpace(result.TaskID)
	job.Status = StatusPending
	c.record(ctx, job)
	c.jobLogger(ctx, job).Info("upload accepted",
		logging.String("file", name),
		logging.String("task_id", job.TaskID),
		logging.String(logging.FieldStatus, string(job.Status)),
	)
	return job, nil
}

func (c *Client) upload(ctx context.Context, name string, content io.Reader, format string) (convertapi.UploadResult, error) {
	req, err := convertapi.NewUploadRequest(ctx, c.baseURL, name, content, format)
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return convertapi.UploadResult{}, err
		}
		return convertapi.UploadResult{}, services.Wrap(services.ErrSubmission, "submit", fmt.Sprintf("Could not read %s.", name), err)
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		if errors.Is(err, services.ErrAuthorization) {
			return convertapi.UploadResult{}, err
		}
		if errors.Is(err, convertapi.ErrUploadContent) {
			return convertapi.UploadResult{}, services.Wrap(services.ErrSubmission, "submit", fmt.Sprintf("Could not read %s.", name), err)
		}
		return convertapi.UploadResult{}, services.Wrap(services.ErrSubmission, "submit", services.Message(err), err)
	}
	defer resp.Body.Close()

	var result convertapi.UploadResult
	if err := convertapi.DecodeJSON(resp, &result); err != nil {
		var respErr *convertapi.ResponseError
		if errors.As(err, &respErr) {
			return result, services.WrapStatus(services.ErrSubmission, "submit", respErr.StatusCode, respErr.MessageOr(msgUploadFailed), err)
		}
		return result, services.Wrap(services.ErrSubmission, "submit", msgUploadFailed, err)
	}
	if strings.TrimSpace(result.ConversionID) == "" && strings.TrimSpace(result.TaskID) == "" {
		return result, services.Wrap(services.ErrSubmission, "submit", msgUploadFailed, errors.New("service returned no job identifier"))
	}
	return result, nil
}

// SubmitAll uploads files concurrently. Each upload succeeds or fails on its
// own; the returned jobs keep the order of uploads. Rejected input becomes a
// job in StatusSubmissionError.
func (c *Client) SubmitAll(ctx context.Context, uploads []Upload, outputFormat string) []Job {
	results := make([]Job, len(uploads))
	var wg sync.WaitGroup
	for i, upload := range uploads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := c.Submit(ctx, upload, outputFormat)
			if err != nil {
				job = Job{
					LocalID:        uuid.NewString(),
					Status:         StatusSubmissionError,
					OutputFormat:   normalizeFormat(outputFormat),
					SourceFilename: filepath.Base(strings.TrimSpace(upload.Name)),
					ErrorDetail:    services.Message(err),
					SubmittedAt:    time.Now().UTC(),
					Err:            err,
				}
				c.record(ctx, job)
			}
			results[i] = job
		}()
	}
	wg.Wait()
	return results
}

// Poll fetches the job's current status once. Completed and Failed jobs come
// back unchanged without a request. Jobs that were never accepted, or that
// lack a conversion id, fail with services.ErrInvalidState.
//
// Request problems are stored in the returned job's Err and also returned;
// the status is left as it was.
func (c *Client) Poll(ctx context.Context, job Job) (Job, error) {
	switch job.Status {
	case StatusCompleted, StatusFailed:
		return job, nil
	case StatusSubmitting, StatusSubmissionError:
		return job, services.Wrap(services.ErrInvalidState, "poll", fmt.Sprintf("job %s was not accepted by the service", job.Reference()), nil)
	}
	if job.ServerID == "" {
		return job, services.Wrap(services.ErrInvalidState, "poll", "The service did not assign a conversion id to this job.", nil)
	}

	job.PollAttempts++
	payload, err := c.fetchStatus(ctx, job.ServerID)
	if err != nil {
		job.Err = err
		c.jobLogger(ctx, job).Debug("status request failed", logging.Int("attempt", job.PollAttempts), logging.Error(err))
		return job, err
	}

	updated, err := applyStatus(job, payload)
	if err != nil {
		job.Err = err
		return job, err
	}
	updated.Err = nil
	c.record(ctx, updated)
	logger := c.jobLogger(ctx, updated)
	if updated.Status != job.Status {
		logger.Info("job status changed", logging.String("from", string(job.Status)), logging.String(logging.FieldStatus, string(updated.Status)))
	} else {
		logger.Debug("job status unchanged", logging.String(logging.FieldStatus, string(updated.Status)))
	}
	return updated, nil
}

func (c *Client) fetchStatus(ctx context.Context, conversionID string) (convertapi.ConversionStatus, error) {
	var payload convertapi.ConversionStatus
	req, err := convertapi.NewStatusRequest(ctx, c.baseURL, conversionID)
	if err != nil {
		return payload, err
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return payload, err
	}
	defer resp.Body.Close()

	if err := convertapi.DecodeJSON(resp, &payload); err != nil {
		var respErr *convertapi.ResponseError
		if errors.As(err, &respErr) {
			return payload, services.WrapStatus(services.ClassifyStatus(respErr.StatusCode), "poll", respErr.StatusCode, respErr.MessageOr(msgStatusFailed), err)
		}
		return payload, services.Wrap(services.ErrTransient, "poll", msgStatusFailed, err)
	}
	return payload, nil
}

func applyStatus(job Job, payload convertapi.ConversionStatus) (Job, error) {
	switch payload.NormalizedStatus() {
	case convertapi.StatusPending:
		job.Status = StatusPending
	case convertapi.StatusProcessing:
		job.Status = StatusProcessing
	case convertapi.StatusCompleted:
		job.Status = StatusCompleted
	case convertapi.StatusFailed:
		job.Status = StatusFailed
	default:
		return job, services.Wrap(services.ErrValidation, "poll", fmt.Sprintf("The service reported an unknown status %q.", payload.Status), nil)
	}

	job.ResultLocation = ""
	job.ErrorDetail = ""
	switch job.Status {
	case StatusCompleted:
		job.ResultLocation = strings.TrimSpace(payload.ConvertedFilePath)
	case StatusFailed:
		job.ErrorDetail = strings.TrimSpace(payload.ErrorMessage)
		if job.ErrorDetail == "" {
			job.ErrorDetail = msgConversionFail
		}
	}
	if job.TaskID == "" {
		job.TaskID = strings.TrimSpace(payload.TaskID)
	}
	if job.SourceFilename == "" {
		job.SourceFilename = fileutil.SafeName(payload.OriginalFilename)
	}
	if ts, ok := convertapi.ParseTimestamp(payload.CreatedAt); ok {
		job.CreatedAt = ts
	}
	if ts, ok := convertapi.ParseTimestamp(payload.UpdatedAt); ok {
		job.UpdatedAt = ts
	}
	return job, nil
}

// DownloadLocation returns the URL of the converted artifact. It makes no
// request and gives the same answer for the same job. Jobs that are not
// Completed fail with services.ErrInvalidState; an unset or malformed base URL
// fails with services.ErrConfiguration.
func (c *Client) DownloadLocation(job Job) (string, error) {
	if job.Status != StatusCompleted {
		return "", services.Wrap(services.ErrInvalidState, "download location",
			fmt.Sprintf("job %s is %s, not completed", job.Reference(), job.Status), nil)
	}
	if job.ServerID == "" {
		return "", services.Wrap(services.ErrInvalidState, "download location", "completed job has no conversion id", nil)
	}
	location, err := convertapi.Endpoint(c.baseURL, convertapi.PathDownload, job.ServerID)
	if err != nil {
		return "", err
	}
	return location.String(), nil
}

// Download streams the converted artifact of a Completed job into w.
func (c *Client) Download(ctx context.Context, job Job, w io.Writer) (int64, error) {
	if _, err := c.DownloadLocation(job); err != nil {
		return 0, err
	}
	req, err := convertapi.NewDownloadRequest(ctx, c.baseURL, job.ServerID)
	if err != nil {
		return 0, err
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !convertapi.Successful(resp) {
		respErr := convertapi.ReadError(resp)
		return 0, services.WrapStatus(services.ClassifyStatus(resp.StatusCode), "download", resp.StatusCode, respErr.MessageOr("Could not download the converted file."), respErr)
	}
	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, services.Wrap(services.ErrTransient, "download", "The download was interrupted.", err)
	}
	c.jobLogger(ctx, job).Info("downloaded result", logging.Int("bytes", int(written)))
	return written, nil
}
