package testsupport

import (
	"path/filepath"
	"testing"

	"fileconv/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp state directory per
// test and a fast polling cadence. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.API.BaseURL = "http://127.0.0.1:0"
	cfgVal.API.RequestTimeoutMs = 2000
	cfgVal.Session.StateDir = filepath.Join(base, "state")
	cfgVal.Jobs.PollIntervalMs = 5
	cfgVal.Jobs.MaxPollAttempts = 10

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBaseURL points the test config at a service root, usually a Backend URL.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BaseURL = url
	}
}

// WithPolling overrides the poll interval (milliseconds) and attempt cap.
func WithPolling(intervalMs, maxAttempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.PollIntervalMs = intervalMs
		b.cfg.Jobs.MaxPollAttempts = maxAttempts
	}
}

// WithRequestTimeout overrides the per-request deadline in milliseconds.
func WithRequestTimeout(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.RequestTimeoutMs = ms
	}
}

// WithHistory toggles the job history ledger.
func WithHistory(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.HistoryEnabled = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Session.StateDir)
}
