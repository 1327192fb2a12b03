package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if err := ValidateBaseURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if c.API.RequestTimeoutMs <= 0 {
		return errors.New("api.request_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if err := ensurePositiveMap(map[string]int{
		"jobs.poll_interval_ms":  c.Jobs.PollIntervalMs,
		"jobs.max_poll_attempts": c.Jobs.MaxPollAttempts,
	}); err != nil {
		return err
	}
	if len(c.Jobs.OutputFormats) == 0 {
		return errors.New("jobs.output_formats must list at least one format")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

// ValidateBaseURL reports whether raw is an absolute http(s) URL without
// query or fragment.
func ValidateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("must be set")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%q is missing a host", raw)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("%q must not carry a query or fragment", raw)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
