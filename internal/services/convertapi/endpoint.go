package convertapi

import (
	"fmt"
	"net/url"
	"strings"

	"fileconv/internal/services"
)

// Service paths, relative to the configured base URL.
const (
	PathLogin          = "auth/jwt/login"
	PathRegister       = "auth/register"
	PathForgotPassword = "auth/forgot-password"
	PathResetPassword  = "auth/reset-password"
	PathCurrentUser    = "users/me"
	PathUpload         = "convert/upload"
	PathStatus         = "convert/status"
	PathDownload       = "convert/download"
	PathHealth         = "health"
)

// Endpoint resolves a service path against baseURL, appending each id as a
// single escaped path segment. It fails with services.ErrConfiguration when
// baseURL is unset or malformed, and with services.ErrValidation when an id is
// empty or would step outside the resource path.
func Endpoint(baseURL, path string, ids ...string) (*url.URL, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}

	prefix := strings.TrimRight(base.Path, "/") + "/" + strings.Trim(path, "/")
	var raw strings.Builder
	raw.WriteString(strings.TrimRight(base.EscapedPath(), "/"))
	raw.WriteByte('/')
	raw.WriteString(strings.Trim(path, "/"))
	for _, id := range ids {
		segment, err := escapeSegment(id)
		if err != nil {
			return nil, err
		}
		raw.WriteByte('/')
		raw.WriteString(segment)
	}

	resolved := *base
	if err := setEscapedPath(&resolved, raw.String()); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "resolve endpoint", fmt.Sprintf("invalid path %q", raw.String()), err)
	}
	if resolved.Path != prefix && !strings.HasPrefix(resolved.Path, prefix+"/") {
		return nil, services.Wrap(services.ErrValidation, "resolve endpoint", fmt.Sprintf("path %q escapes %q", resolved.Path, prefix), nil)
	}
	return &resolved, nil
}

func parseBase(baseURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrConfiguration, "resolve endpoint", "API base URL is not configured", nil)
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "resolve endpoint", fmt.Sprintf("API base URL %q is malformed", trimmed), err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "resolve endpoint", fmt.Sprintf("API base URL %q must be an absolute http(s) URL", trimmed), nil)
	}
	if base.RawQuery != "" || base.Fragment != "" || base.User != nil {
		return nil, services.Wrap(services.ErrConfiguration, "resolve endpoint", fmt.Sprintf("API base URL %q must not carry credentials, a query, or a fragment", trimmed), nil)
	}
	for _, segment := range strings.Split(base.Path, "/") {
		if segment == "." || segment == ".." {
			return nil, services.Wrap(services.ErrConfiguration, "resolve endpoint", fmt.Sprintf("API base URL %q contains dot segments", trimmed), nil)
		}
	}
	return base, nil
}

func escapeSegment(id string) (string, error) {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return "", services.Wrap(services.ErrValidation, "resolve endpoint", "identifier is empty", nil)
	case id == "." || id == "..":
		return "", services.Wrap(services.ErrValidation, "resolve endpoint", fmt.Sprintf("identifier %q is not a valid path segment", id), nil)
	case strings.ContainsAny(id, "/\\?#"):
		return "", services.Wrap(services.ErrValidation, "resolve endpoint", fmt.Sprintf("identifier %q contains path separators", id), nil)
	}
	return url.PathEscape(id), nil
}

func setEscapedPath(u *url.URL, escaped string) error {
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return err
	}
	u.Path = path
	u.RawPath = escaped
	if u.EscapedPath() != escaped {
		u.RawPath = ""
	}
	return nil
}
