package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fileconv/internal/testsupport"
)

func TestLoginWhoamiLogout(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "login", "ada@example.com", "--password", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, out, "Logged in as ada@example.com")
	if _, err := os.Stat(filepath.Join(env.stateDir, "credentials.json")); err != nil {
		t.Fatalf("expected stored credential: %v", err)
	}

	out, _, err = runCLI(t, env, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	requireContains(t, out, "ada@example.com")
	requireContains(t, out, "Session expires")

	out, _, err = runCLI(t, env, "whoami", "--json")
	if err != nil {
		t.Fatalf("whoami --json: %v", err)
	}
	var view whoamiView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode whoami json: %v", err)
	}
	if view.Email != "ada@example.com" || view.ID == "" || view.ExpiresAt == nil {
		t.Fatalf("unexpected whoami view: %+v", view)
	}

	out, _, err = runCLI(t, env, "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	requireContains(t, out, "Logged out")

	if _, _, err := runCLI(t, env, "whoami"); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected not logged in after logout, got %v", err)
	}
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, err := runCLIWithInput(t, env, strings.NewReader("s3cret\n"), "login", "ada@example.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, out, "Logged in as ada@example.com")
	requireContains(t, stderr, "Password:")
}

func TestLoginFailureShowsServiceDetail(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "login", "ada@example.com", "--password", "wrong")
	if err == nil {
		t.Fatal("expected login failure")
	}
	if got := formatError(err); got != "LOGIN_BAD_CREDENTIALS" {
		t.Fatalf("unexpected message %q", got)
	}
	if _, err := os.Stat(filepath.Join(env.stateDir, "credentials.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no stored credential, got %v", err)
	}
}

func TestRevokedCredentialEndsSession(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)
	env.backend.RevokeTokens()

	if _, _, err := runCLI(t, env, "whoami"); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected not logged in, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.stateDir, "credentials.json")); !os.IsNotExist(err) {
		t.Fatalf("expected credential cleared, got %v", err)
	}
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "register", "grace@example.com", "--password", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	requireContains(t, out, "Registered grace@example.com")
	if _, _, err := runCLI(t, env, "whoami"); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected register to leave the session anonymous, got %v", err)
	}

	_, _, err = runCLI(t, env, "register", "grace@example.com", "--password", "pw")
	if err == nil || formatError(err) != "REGISTER_USER_ALREADY_EXISTS" {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}
}

func TestPasswordResetCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "password", "forgot", "ada@example.com")
	if err != nil {
		t.Fatalf("password forgot: %v", err)
	}
	requireContains(t, out, "reset token")
	if calls := env.backend.Calls(testsupport.RouteForgot); calls != 1 {
		t.Fatalf("expected one forgot request, got %d", calls)
	}

	out, _, err = runCLI(t, env, "password", "reset", "reset-ada@example.com", "--password", "n3w")
	if err != nil {
		t.Fatalf("password reset: %v", err)
	}
	requireContains(t, out, "Password updated")

	if _, _, err := runCLI(t, env, "login", "ada@example.com", "--password", "n3w"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestHealthReportsServiceAndSession(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, env.backend.URL())
	requireContains(t, out, "[OK] ok")
	requireContains(t, out, "not logged in")

	env.login(t)
	out, _, err = runCLI(t, env, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "credential valid until")
	if calls := env.backend.Calls(testsupport.RouteMe); calls != 1 {
		t.Fatalf("expected health to skip profile checks, got %d /users/me calls", calls)
	}
}
