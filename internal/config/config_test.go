package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"fileconv/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FILECONV_API_URL", "")
	t.Setenv("FILECONV_LOG_LEVEL", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "fileconv")
	if cfg.Session.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Session.StateDir, wantState)
	}
	if cfg.CredentialPath() != filepath.Join(wantState, "credentials.json") {
		t.Fatalf("unexpected credential path: %q", cfg.CredentialPath())
	}
	if cfg.HistoryPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected base url: %q", cfg.API.BaseURL)
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Fatalf("unexpected request timeout: %s", cfg.RequestTimeout())
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Jobs.MaxPollAttempts != config.Default().Jobs.MaxPollAttempts {
		t.Fatalf("unexpected max poll attempts: %d", cfg.Jobs.MaxPollAttempts)
	}
	if strings.Join(cfg.Jobs.OutputFormats, ",") != "pdf,png,jpg,txt" {
		t.Fatalf("unexpected output formats: %v", cfg.Jobs.OutputFormats)
	}
	if !cfg.Jobs.HistoryEnabled {
		t.Fatal("expected history enabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FILECONV_API_URL", "http://ignored.example")
	t.Setenv("FILECONV_LOG_LEVEL", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := struct {
		API struct {
			BaseURL          string `toml:"base_url"`
			RequestTimeoutMs int    `toml:"request_timeout_ms"`
		} `toml:"api"`
		Session struct {
			StateDir string `toml:"state_dir"`
		} `toml:"session"`
		Jobs struct {
			PollIntervalMs  int      `toml:"poll_interval_ms"`
			MaxPollAttempts int      `toml:"max_poll_attempts"`
			OutputFormats   []string `toml:"output_formats"`
		} `toml:"jobs"`
		Logging struct {
			Format string `toml:"format"`
			Level  string `toml:"level"`
			File   string `toml:"file"`
		} `toml:"logging"`
	}{}
	payload.API.BaseURL = "https://convert.example.com/api/"
	payload.API.RequestTimeoutMs = 1500
	payload.Session.StateDir = "~/state"
	payload.Jobs.PollIntervalMs = 250
	payload.Jobs.MaxPollAttempts = 4
	payload.Jobs.OutputFormats = []string{" PDF", ".png", "pdf", ""}
	payload.Logging.Format = "JSON"
	payload.Logging.Level = "Debug"
	payload.Logging.File = " ~/logs/fileconv.log "

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.API.BaseURL != "https://convert.example.com/api" {
		t.Fatalf("expected file base url to win over env, got %q", cfg.API.BaseURL)
	}
	if cfg.RequestTimeout() != 1500*time.Millisecond {
		t.Fatalf("unexpected request timeout: %s", cfg.RequestTimeout())
	}
	if cfg.Session.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Session.StateDir)
	}
	if cfg.PollInterval() != 250*time.Millisecond || cfg.Jobs.MaxPollAttempts != 4 {
		t.Fatalf("unexpected jobs config: %+v", cfg.Jobs)
	}
	if strings.Join(cfg.Jobs.OutputFormats, ",") != "pdf,png" {
		t.Fatalf("expected normalized formats, got %v", cfg.Jobs.OutputFormats)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Logging.File != filepath.Join(tempHome, "logs", "fileconv.log") {
		t.Fatalf("expected expanded log file, got %q", cfg.Logging.File)
	}
}

func TestLoadUsesEnvBaseURLWhenUnset(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FILECONV_API_URL", " https://env.example.com/ ")
	t.Setenv("FILECONV_LOG_LEVEL", "warn")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.com" {
		t.Fatalf("expected env base url, got %q", cfg.API.BaseURL)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FILECONV_LOG_LEVEL", "")
	t.Setenv("FILECONV_API_URL", "")
	os.Unsetenv("FILECONV_API_URL")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FILECONV_API_URL=https://dotenv.example.com\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[jobs]\npoll_interval_ms = 100\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "https://dotenv.example.com" {
		t.Fatalf("expected base url from .env, got %q", cfg.API.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"relative base url", func(c *config.Config) { c.API.BaseURL = "/api" }, "api.base_url"},
		{"ftp base url", func(c *config.Config) { c.API.BaseURL = "ftp://files.example.com" }, "http or https"},
		{"base url with query", func(c *config.Config) { c.API.BaseURL = "http://x.example?a=1" }, "query"},
		{"zero timeout", func(c *config.Config) { c.API.RequestTimeoutMs = 0 }, "request_timeout_ms"},
		{"negative interval", func(c *config.Config) { c.Jobs.PollIntervalMs = -1 }, "poll_interval_ms"},
		{"zero attempts", func(c *config.Config) { c.Jobs.MaxPollAttempts = 0 }, "max_poll_attempts"},
		{"no formats", func(c *config.Config) { c.Jobs.OutputFormats = nil }, "output_formats"},
		{"unknown level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.API.BaseURL = "http://localhost:8000"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FILECONV_API_URL", "")
	t.Setenv("FILECONV_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected sample base url: %q", cfg.API.BaseURL)
	}
}

func TestEnsureDirectoriesCreatesStateDir(t *testing.T) {
	cfg := config.Default()
	cfg.Session.StateDir = filepath.Join(t.TempDir(), "a", "b")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	info, err := os.Stat(cfg.Session.StateDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected state dir, err=%v", err)
	}
}
