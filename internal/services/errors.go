package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	ErrAuthentication       = errors.New("authentication failed")
	ErrRegistration         = errors.New("registration failed")
	ErrSessionEstablishment = errors.New("session establishment failed")
	ErrAuthorization        = errors.New("authorization denied")
	ErrValidation           = errors.New("validation error")
	ErrSubmission           = errors.New("submission failed")
	ErrPollingTimeout       = errors.New("polling timed out")
	ErrConfiguration        = errors.New("configuration error")
	ErrInvalidState         = errors.New("invalid state")
	ErrNotFound             = errors.New("not found")
	ErrTransient            = errors.New("transient failure")
)

// Error is a classified failure. Message holds the human-readable text shown
// to users; Marker is one of the exported sentinels above.
type Error struct {
	Marker     error
	Operation  string
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	marker := e.Marker
	if marker == nil {
		marker = ErrTransient
	}
	detail := buildDetail(e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", marker, detail, e.Err)
	}
	return fmt.Sprintf("%v: %s", marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	return WrapStatus(marker, operation, 0, message, err)
}

// WrapStatus is Wrap for failures that carry an HTTP status code.
func WrapStatus(marker error, operation string, status int, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:     marker,
		Operation:  strings.TrimSpace(operation),
		Message:    strings.TrimSpace(message),
		StatusCode: status,
		Err:        err,
	}
}

// Message returns the text a user should see for err: the normalized message
// when err is classified, otherwise err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) && classified.Message != "" {
		return classified.Message
	}
	return err.Error()
}

// StatusCode returns the HTTP status recorded on err, or zero.
func StatusCode(err error) int {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.StatusCode
	}
	return 0
}

// IsTransient reports whether err is worth retrying: deadlines, network
// failures, throttling, and server-side errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthorization) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	status := StatusCode(err)
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// ClassifyStatus maps an HTTP status code to a marker.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuthorization
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return ErrTransient
	case status >= http.StatusBadRequest:
		return ErrValidation
	default:
		return nil
	}
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
