package convertapi

import (
	"strings"
	"time"
)

// Token is the bearer credential issued by the login endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User mirrors the service's user profile record.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
}

// UploadResult is returned when an upload is accepted for conversion.
// ConversionID is optional; older service versions return only TaskID.
type UploadResult struct {
	Message      string `json:"message"`
	TaskID       string `json:"task_id"`
	ConversionID string `json:"conversion_id"`
}

// Status values reported by the conversion status endpoint.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ConversionStatus mirrors the status endpoint payload. Nullable fields decode
// to empty strings.
type ConversionStatus struct {
	ConversionID      string `json:"conversion_id"`
	TaskID            string `json:"task_id"`
	Status            string `json:"status"`
	OutputFormat      string `json:"output_format"`
	ConvertedFilePath string `json:"converted_file_path"`
	ErrorMessage      string `json:"error_message"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
	OriginalFilename  string `json:"original_filename"`
}

// NormalizedStatus returns the status lowercased, so PENDING and pending compare equal.
func (s ConversionStatus) NormalizedStatus() string {
	return strings.ToLower(strings.TrimSpace(s.Status))
}

// Health is the health endpoint payload.
type Health struct {
	Status string `json:"status"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses the ISO-8601 timestamps emitted by the service.
// Values without a zone are treated as UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
