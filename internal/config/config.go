package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// API contains connection settings for the conversion service.
type API struct {
	BaseURL          string `toml:"base_url"`
	RequestTimeoutMs int    `toml:"request_timeout_ms"`
}

// Session contains settings for the persisted session state.
type Session struct {
	StateDir string `toml:"state_dir"`
}

// Jobs contains configuration for conversion job submission and polling.
type Jobs struct {
	PollIntervalMs  int      `toml:"poll_interval_ms"`
	MaxPollAttempts int      `toml:"max_poll_attempts"`
	OutputFormats   []string `toml:"output_formats"`
	HistoryEnabled  bool     `toml:"history_enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file,omitempty"`
}

// Config encapsulates all configuration values for fileconv.
//
// Configuration sections by subsystem:
//   - API: conversion service endpoint and request deadline
//   - Session: state directory for the credential and job history
//   - Jobs: polling cadence, attempt cap, and accepted output formats
//   - Logging: log format and level, plus an optional log file
type Config struct {
	API     API     `toml:"api"`
	Session Session `toml:"session"`
	Jobs    Jobs    `toml:"jobs"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fileconv/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fileconv.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotEnv reads .env files beside the config file and in the working
// directory. Variables already present in the environment are left alone.
func loadDotEnv(configPath string) error {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env")}
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ".env")
		if local != candidates[0] {
			candidates = append(candidates, local)
		}
	}
	for _, candidate := range candidates {
		if err := godotenv.Load(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %q: %w", candidate, err)
		}
	}
	return nil
}

// EnsureDirectories creates the state directory used for the credential and history.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Session.StateDir, 0o700); err != nil {
		return fmt.Errorf("create state directory %q: %w", c.Session.StateDir, err)
	}
	return nil
}

// CredentialPath returns the file holding the persisted bearer credential.
func (c *Config) CredentialPath() string {
	return filepath.Join(c.Session.StateDir, credentialFileName)
}

// HistoryPath returns the job history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Session.StateDir, historyFileName)
}

// RequestTimeout returns the per-request deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutMs) * time.Millisecond
}

// PollInterval returns the spacing between status polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollIntervalMs) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
