package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err == nil {
		t.Fatal("expected existing config to be kept")
	}
	requireContains(t, err.Error(), "already exists")

	if _, _, err := runCLI(t, env, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.backend.URL())
	requireContains(t, out, "poll_interval_ms = 5")
	requireContains(t, out, filepath.Join(env.stateDir, "credentials.json"))
}

func TestAPIURLFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "--api-url", "https://convert.example.com/", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "https://convert.example.com")
	if strings.Contains(out, "example.com/") {
		t.Fatalf("expected trailing slash trimmed, got %q", out)
	}

	_, _, err = runCLI(t, env, "--api-url", "ftp://convert.example.com", "config", "show")
	if err == nil {
		t.Fatal("expected invalid --api-url to fail")
	}
	requireContains(t, err.Error(), "--api-url")
}
