package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeAPI()
	if err := c.normalizeSession(); err != nil {
		return err
	}
	c.normalizeJobs()
	return c.normalizeLogging()
}

func (c *Config) normalizeAPI() {
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" {
		if value, ok := os.LookupEnv("FILECONV_API_URL"); ok {
			c.API.BaseURL = strings.TrimSpace(value)
		}
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.RequestTimeoutMs == 0 {
		c.API.RequestTimeoutMs = defaultRequestTimeoutMs
	}
}

func (c *Config) normalizeSession() error {
	if strings.TrimSpace(c.Session.StateDir) == "" {
		c.Session.StateDir = defaultStateDir
	}
	var err error
	if c.Session.StateDir, err = expandPath(strings.TrimSpace(c.Session.StateDir)); err != nil {
		return fmt.Errorf("session.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeJobs() {
	formats := make([]string, 0, len(c.Jobs.OutputFormats))
	for _, format := range c.Jobs.OutputFormats {
		format = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(format), ".")))
		if format == "" || slices.Contains(formats, format) {
			continue
		}
		formats = append(formats, format)
	}
	if len(formats) == 0 {
		formats = append(formats, defaultOutputFormats...)
	}
	c.Jobs.OutputFormats = formats
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if value, ok := os.LookupEnv("FILECONV_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(value))
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if file := strings.TrimSpace(c.Logging.File); file != "" {
		var err error
		if c.Logging.File, err = expandPath(file); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	} else {
		c.Logging.File = ""
	}
	return nil
}
