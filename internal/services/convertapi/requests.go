package convertapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrUploadContent marks upload bodies aborted because the file content could
// not be read.
var ErrUploadContent = errors.New("read upload content")

// NewLoginRequest builds the form-encoded credential exchange.
func NewLoginRequest(ctx context.Context, baseURL, username, password string) (*http.Request, error) {
	endpoint, err := Endpoint(baseURL, PathLogin)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// NewRegisterRequest builds the account registration request.
func NewRegisterRequest(ctx context.Context, baseURL, email, password string) (*http.Request, error) {
	return newJSONRequest(ctx, http.MethodPost, baseURL, PathRegister, map[string]string{
		"email":    email,
		"password": password,
	})
}

// NewForgotPasswordRequest asks the service to email a reset token.
func NewForgotPasswordRequest(ctx context.Context, baseURL, email string) (*http.Request, error) {
	return newJSONRequest(ctx, http.MethodPost, baseURL, PathForgotPassword, map[string]string{
		"email": email,
	})
}

// NewResetPasswordRequest redeems a reset token for a new password.
func NewResetPasswordRequest(ctx context.Context, baseURL, token, password string) (*http.Request, error) {
	return newJSONRequest(ctx, http.MethodPost, baseURL, PathResetPassword, map[string]string{
		"token":    token,
		"password": password,
	})
}

// NewCurrentUserRequest fetches the profile of the credential's owner.
func NewCurrentUserRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	return newGetRequest(ctx, baseURL, PathCurrentUser)
}

// NewStatusRequest fetches the state of one conversion.
func NewStatusRequest(ctx context.Context, baseURL, conversionID string) (*http.Request, error) {
	return newGetRequest(ctx, baseURL, PathStatus, conversionID)
}

// NewDownloadRequest fetches the converted artifact of one conversion.
func NewDownloadRequest(ctx context.Context, baseURL, conversionID string) (*http.Request, error) {
	req, err := newGetRequest(ctx, baseURL, PathDownload, conversionID)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	return req, nil
}

// NewHealthRequest probes service liveness.
func NewHealthRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	return newGetRequest(ctx, baseURL, PathHealth)
}

// NewUploadRequest builds the multipart upload. The output format travels
// both as a form field and as a query parameter; service versions differ in
// which one they read.
//
// The body is streamed from content as the transport reads it, so content
// must stay readable until the request completes. A read failure aborts the
// request body with an error marked ErrUploadContent.
func NewUploadRequest(ctx context.Context, baseURL, filename string, content io.Reader, outputFormat string) (*http.Request, error) {
	endpoint, err := Endpoint(baseURL, PathUpload)
	if err != nil {
		return nil, err
	}
	query := endpoint.Query()
	query.Set("output_format", outputFormat)
	endpoint.RawQuery = query.Encode()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), pr)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	go func() {
		pw.CloseWithError(writeUploadBody(writer, filename, content, outputFormat))
	}()
	return req, nil
}

func writeUploadBody(writer *multipart.Writer, filename string, content io.Reader, outputFormat string) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", ContentType(filename))
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("build upload part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("%w: %w", ErrUploadContent, err)
	}
	if err := writer.WriteField("output_format", outputFormat); err != nil {
		return fmt.Errorf("write upload field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize upload body: %w", err)
	}
	return nil
}

// ContentType guesses the media type of filename from its extension.
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".txt":
		return "text/plain"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
		return ct
	}
	return "application/octet-stream"
}

func newGetRequest(ctx context.Context, baseURL, path string, ids ...string) (*http.Request, error) {
	endpoint, err := Endpoint(baseURL, path, ids...)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func newJSONRequest(ctx context.Context, method, baseURL, path string, payload any) (*http.Request, error) {
	endpoint, err := Endpoint(baseURL, path)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
