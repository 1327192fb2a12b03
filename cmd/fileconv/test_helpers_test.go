package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fileconv/internal/testsupport"
)

type cliTestEnv struct {
	backend    *testsupport.Backend
	configPath string
	stateDir   string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("FILECONV_PASSWORD", "")
	t.Setenv("FILECONV_LOG_LEVEL", "error")

	backend := testsupport.NewBackend(t)
	backend.AddUser("ada@example.com", "s3cret")

	stateDir := filepath.Join(base, "state")
	configPath := filepath.Join(homeDir, ".config", "fileconv", "config.toml")
	testsupport.WriteFile(t, configPath, fmt.Sprintf(
		"[api]\nbase_url = %q\nrequest_timeout_ms = 2000\n\n"+
			"[session]\nstate_dir = %q\n\n"+
			"[jobs]\npoll_interval_ms = 5\nmax_poll_attempts = 20\nhistory_enabled = true\n",
		backend.URL(), stateDir,
	))

	return &cliTestEnv{
		backend:    backend,
		configPath: configPath,
		stateDir:   stateDir,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, env, nil, args...)
}

func runCLIWithInput(t *testing.T, env *cliTestEnv, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.SetIn(stdin)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) login(t *testing.T) {
	t.Helper()
	if _, _, err := runCLI(t, env, "login", "ada@example.com", "--password", "s3cret"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func (env *cliTestEnv) writeInput(t *testing.T, name, content string) string {
	t.Helper()
	return testsupport.WriteFile(t, filepath.Join(env.baseDir, "input", name), content)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
