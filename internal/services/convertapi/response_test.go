package convertapi_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"fileconv/internal/services/convertapi"
)

func TestDetailMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"LOGIN_BAD_CREDENTIALS"}`, "LOGIN_BAD_CREDENTIALS"},
		{"validation list", `{"detail":[{"loc":["body","email"],"msg":"email already registered","type":"value_error"}]}`, "email already registered"},
		{"multiple entries", `{"detail":[{"msg":"too short"},{"msg":"missing digit"}]}`, "too short, missing digit"},
		{"mixed list", `{"detail":["plain",{"code":7}]}`, `plain, {"code":7}`},
		{"object detail", `{"detail": {"code": "REGISTER_INVALID_PASSWORD", "reason": "short"}}`, `{"code":"REGISTER_INVALID_PASSWORD","reason":"short"}`},
		{"null detail", `{"detail":null}`, ""},
		{"no detail", `{"error":"x"}`, ""},
		{"not json", `<html>bad gateway</html>`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := convertapi.DetailMessage([]byte(tc.body)); got != tc.want {
				t.Fatalf("DetailMessage(%s) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}

func TestDecodeJSONReturnsResponseError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadRequest,
		Status:     "400 Bad Request",
		Body:       io.NopCloser(strings.NewReader(`{"detail":"No filename provided"}`)),
	}
	var out convertapi.UploadResult
	err := convertapi.DecodeJSON(resp, &out)
	respErr, ok := err.(*convertapi.ResponseError)
	if !ok {
		t.Fatalf("expected *ResponseError, got %T (%v)", err, err)
	}
	if respErr.StatusCode != http.StatusBadRequest || respErr.Detail != "No filename provided" {
		t.Fatalf("unexpected response error: %+v", respErr)
	}
	if got := respErr.MessageOr("fallback"); got != "No filename provided" {
		t.Fatalf("unexpected message: %q", got)
	}
	empty := &convertapi.ResponseError{StatusCode: 500}
	if got := empty.MessageOr("fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestDecodeJSONSuccess(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusAccepted,
		Body:       io.NopCloser(strings.NewReader(`{"message":"ok","task_id":"t-1","conversion_id":null}`)),
	}
	var out convertapi.UploadResult
	if err := convertapi.DecodeJSON(resp, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out.TaskID != "t-1" || out.ConversionID != "" {
		t.Fatalf("unexpected upload result: %+v", out)
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, value := range []string{"2024-05-01T12:00:00Z", "2024-05-01T12:00:00.123456+00:00", "2024-05-01T12:00:00.5", "2024-05-01 12:00:00+00:00"} {
		ts, ok := convertapi.ParseTimestamp(value)
		if !ok {
			t.Fatalf("expected %q to parse", value)
		}
		if ts.Year() != 2024 || ts.Hour() != 12 {
			t.Fatalf("unexpected parse of %q: %v", value, ts)
		}
	}
	if _, ok := convertapi.ParseTimestamp("yesterday"); ok {
		t.Fatal("expected garbage timestamp to fail")
	}
}

func TestNormalizedStatus(t *testing.T) {
	status := convertapi.ConversionStatus{Status: " PROCESSING "}
	if status.NormalizedStatus() != convertapi.StatusProcessing {
		t.Fatalf("unexpected normalized status %q", status.NormalizedStatus())
	}
}
