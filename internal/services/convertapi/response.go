package convertapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// ResponseError describes a non-2xx reply. Detail holds the normalized
// "detail" payload and is empty when the service sent none.
type ResponseError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *ResponseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("service returned %d", e.StatusCode)
}

// MessageOr returns Detail, or fallback when the service sent no detail.
func (e *ResponseError) MessageOr(fallback string) string {
	if e == nil || e.Detail == "" {
		return fallback
	}
	return e.Detail
}

// ReadError consumes a bounded prefix of resp's body and returns the
// normalized failure. The caller still owns closing the body.
func ReadError(resp *http.Response) *ResponseError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ResponseError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     DetailMessage(body),
	}
}

// Successful reports whether resp carries a 2xx status.
func Successful(resp *http.Response) bool {
	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

// DecodeJSON checks resp's status and decodes a successful body into out.
// Failures come back as *ResponseError.
func DecodeJSON(resp *http.Response, out any) error {
	if !Successful(resp) {
		return ReadError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DetailMessage normalizes the "detail" member of an error body into one
// display string:
//   - a string is returned as is
//   - a list of validation entries yields their "msg" values joined by ", "
//   - any other JSON value is returned in compact form
//
// Bodies without a detail member yield "".
func DetailMessage(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	raw := bytes.TrimSpace(envelope.Detail)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err == nil {
		messages := make([]string, 0, len(entries))
		for _, entry := range entries {
			if msg := entryMessage(entry); msg != "" {
				messages = append(messages, msg)
			}
		}
		return strings.Join(messages, ", ")
	}

	return compact(raw)
}

func entryMessage(entry json.RawMessage) string {
	var item struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(entry, &item); err == nil && strings.TrimSpace(item.Msg) != "" {
		return strings.TrimSpace(item.Msg)
	}
	var text string
	if err := json.Unmarshal(entry, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return compact(entry)
}

func compact(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}
