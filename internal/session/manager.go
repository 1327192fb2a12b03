package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fileconv/internal/credentials"
	"fileconv/internal/logging"
	"fileconv/internal/services"
	"fileconv/internal/services/convertapi"
)

const (
	defaultBaseURL        = "http://localhost:8000"
	defaultRequestTimeout = 30 * time.Second

	msgLoginFailed        = "Login failed. Please check your credentials."
	msgLoginUnreachable   = "Login failed. The conversion service could not be reached."
	msgSessionFailed      = "Login succeeded but could not retrieve user details."
	msgRegisterFailed     = "Registration failed. Please try again."
	msgSessionExpired     = "Your session has expired. Please log in again."
	msgProfileFailed      = "Could not retrieve user details."
	msgResetFailed        = "Password reset failed. The link may have expired."
	msgForgotFailed       = "Could not request a password reset. Please try again."
	msgCredentialRequired = "Email and password are required."
)

// HTTPDoer describes the HTTP client used to reach the conversion service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises Manager construction.
type Option func(*Manager)

// WithHTTPClient overrides the HTTP client used for service calls.
func WithHTTPClient(client HTTPDoer) Option {
	return func(m *Manager) {
		m.client = client
	}
}

// WithBaseURL sets the conversion service root.
func WithBaseURL(baseURL string) Option {
	return func(m *Manager) {
		m.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithRequestTimeout sets the per-request deadline applied by Do. Zero
// disables the deadline.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager owns the credential, the phase, and the current user.
type Manager struct {
	store   credentials.Store
	client  HTTPDoer
	baseURL string
	timeout time.Duration
	logger  *slog.Logger

	// flowMu serializes Initialize, Login, and FetchCurrentUser so their
	// multi-step sequences do not interleave.
	flowMu sync.Mutex

	// stateMu also covers store writes, so the stored and held credential
	// change together.
	stateMu    sync.RWMutex
	credential string
	phase      Phase
	user       *User
	// generation counts credential installs and logouts. A 401 only ends the
	// session when it answers a request sent under the current generation.
	generation uint64
}

// New builds an anonymous Manager persisting its credential in store.
func New(store credentials.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		client:  http.DefaultClient,
		baseURL: defaultBaseURL,
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = credentials.NewMemoryStore("")
	}
	if m.client == nil {
		m.client = http.DefaultClient
	}
	m.logger = logging.NewComponentLogger(m.logger, "session")
	return m
}

// BaseURL returns the configured service root.
func (m *Manager) BaseURL() string {
	return m.baseURL
}

// Snapshot returns a consistent copy of the session state.
func (m *Manager) Snapshot() Snapshot {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	snap := Snapshot{Credential: m.credential, Phase: m.phase}
	if m.user != nil {
		user := *m.user
		snap.User = &user
	}
	return snap
}

// Initialize restores a stored credential and confirms it with the service.
// Any failure leaves the session anonymous with the store cleared. Callers
// should treat the session as undetermined until Initialize returns.
func (m *Manager) Initialize(ctx context.Context) (Snapshot, error) {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()

	credential, ok := m.store.Load()
	if !ok {
		m.logger.Debug("no stored credential")
		return m.Snapshot(), nil
	}
	if err := m.setState(credential, PhaseCredentialPending, nil); err != nil {
		m.Logout()
		return m.Snapshot(), err
	}
	if _, err := m.fetchCurrentUser(ctx); err != nil {
		m.logger.Info("stored credential rejected; session cleared", logging.Error(err))
		return m.Snapshot(), err
	}
	return m.Snapshot(), nil
}

// Login exchanges identifier and secret for a credential, persists it, and
// confirms the owning user. On any failure the session ends anonymous with
// the store cleared; the phase is never left at CredentialPending.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return services.Wrap(services.ErrValidation, "login", msgCredentialRequired, nil)
	}

	token, err := m.requestToken(ctx, identifier, secret)
	if err != nil {
		m.Logout()
		return err
	}

	if err := m.commitCredential(token); err != nil {
		m.Logout()
		return err
	}

	user, err := m.fetchCurrentUser(ctx)
	if err != nil || user == nil {
		m.Logout()
		return services.WrapStatus(services.ErrSessionEstablishment, "login", services.StatusCode(err), msgSessionFailed, err)
	}
	m.logger.Info("logged in",
		logging.String("email", user.Email),
		logging.String("user_id", user.ID),
		logging.Bool("verified", user.IsVerified),
	)
	return nil
}

// commitCredential persists credential and makes it the held credential
// under one lock, so a rejection of the previous credential cannot clear the
// store between the two.
func (m *Manager) commitCredential(credential string) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if err := m.store.Save(credential); err != nil {
		return services.Wrap(services.ErrSessionEstablishment, "login", "Could not store the session credential.", err)
	}
	if err := m.setStateLocked(credential, PhaseCredentialPending, nil); err != nil {
		return services.Wrap(services.ErrSessionEstablishment, "login", msgSessionFailed, err)
	}
	return nil
}

func (m *Manager) requestToken(ctx context.Context, identifier, secret string) (string, error) {
	req, err := convertapi.NewLoginRequest(ctx, m.baseURL, identifier, secret)
	if err != nil {
		return "", err
	}
	resp, err := m.Do(req)
	if err != nil {
		if errors.Is(err, services.ErrAuthorization) {
			return "", services.WrapStatus(services.ErrAuthentication, "login", http.StatusUnauthorized, msgLoginFailed, err)
		}
		return "", services.Wrap(services.ErrAuthentication, "login", msgLoginUnreachable, err)
	}
	defer resp.Body.Close()

	var token convertapi.Token
	if err := convertapi.DecodeJSON(resp, &token); err != nil {
		var respErr *convertapi.ResponseError
		if errors.As(err, &respErr) {
			return "", services.WrapStatus(services.ErrAuthentication, "login", respErr.StatusCode, respErr.MessageOr(msgLoginFailed), err)
		}
		return "", services.Wrap(services.ErrAuthentication, "login", msgLoginFailed, err)
	}
	token.AccessToken = strings.TrimSpace(token.AccessToken)
	if token.AccessToken == "" {
		return "", services.Wrap(services.ErrAuthentication, "login", msgLoginFailed, errors.New("service returned an empty access token"))
	}
	return token.AccessToken, nil
}

// FetchCurrentUser confirms the held credential with the service and
// refreshes the user. With no credential it returns (nil, nil) without a
// network call. Any failure logs the session out and returns a nil user.
func (m *Manager) FetchCurrentUser(ctx context.Context) (*User, error) {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()
	return m.fetchCurrentUser(ctx)
}

func (m *Manager) fetchCurrentUser(ctx context.Context) (*User, error) {
	m.stateMu.RLock()
	credential, generation := m.credential, m.generation
	m.stateMu.RUnlock()
	if credential == "" {
		return nil, nil
	}

	user, err := m.requestUser(ctx)
	if err != nil {
		m.Logout()
		return nil, err
	}

	m.stateMu.Lock()
	if m.generation != generation {
		m.stateMu.Unlock()
		return nil, services.Wrap(services.ErrInvalidState, "fetch user", "session changed while the profile was loading", nil)
	}
	err = m.setStateLocked(credential, PhaseAuthenticated, &user)
	m.stateMu.Unlock()
	if err != nil {
		m.Logout()
		return nil, err
	}
	out := user
	return &out, nil
}

func (m *Manager) requestUser(ctx context.Context) (User, error) {
	req, err := convertapi.NewCurrentUserRequest(ctx, m.baseURL)
	if err != nil {
		return User{}, err
	}
	resp, err := m.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	var payload convertapi.User
	if err := convertapi.DecodeJSON(resp, &payload); err != nil {
		var respErr *convertapi.ResponseError
		if errors.As(err, &respErr) {
			return User{}, services.WrapStatus(services.ClassifyStatus(respErr.StatusCode), "fetch user", respErr.StatusCode, respErr.MessageOr(msgProfileFailed), err)
		}
		return User{}, services.Wrap(services.ErrTransient, "fetch user", msgProfileFailed, err)
	}
	if strings.TrimSpace(payload.ID) == "" {
		return User{}, services.Wrap(services.ErrValidation, "fetch user", msgProfileFailed, errors.New("profile has no id"))
	}
	return userFromAPI(payload), nil
}

// Logout clears the stored credential and resets the session to anonymous.
// It makes no network call and cannot fail; storage errors are logged.
func (m *Manager) Logout() {
	m.stateMu.Lock()
	previous := m.clearLocked()
	m.stateMu.Unlock()
	m.logCleared(previous)
}

func (m *Manager) clearLocked() Phase {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear stored credential", logging.Error(err))
	}
	previous := m.phase
	m.credential = ""
	m.user = nil
	m.phase = PhaseAnonymous
	m.generation++
	return previous
}

func (m *Manager) logCleared(previous Phase) {
	if previous != PhaseAnonymous {
		m.logger.Debug("session cleared", logging.String(logging.FieldPhase, previous.String()))
	}
}

// Register creates an account. It does not log in.
func (m *Manager) Register(ctx context.Context, email, secret string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || secret == "" {
		return User{}, services.Wrap(services.ErrValidation, "register", msgCredentialRequired, nil)
	}
	req, err := convertapi.NewRegisterRequest(ctx, m.baseURL, email, secret)
	if err != nil {
		return User{}, err
	}
	resp, err := m.Do(req)
	if err != nil {
		return User{}, services.Wrap(services.ErrRegistration, "register", msgRegisterFailed, err)
	}
	defer resp.Body.Close()

	var payload convertapi.User
	if err := convertapi.DecodeJSON(resp, &payload); err != nil {
		var respErr *convertapi.ResponseError
		if errors.As(err, &respErr) {
			return User{}, services.WrapStatus(services.ErrRegistration, "register", respErr.StatusCode, respErr.MessageOr(msgRegisterFailed), err)
		}
		return User{}, services.Wrap(services.ErrRegistration, "register", msgRegisterFailed, err)
	}
	m.logger.Info("account registered", logging.String("email", payload.Email))
	return userFromAPI(payload), nil
}

// RequestPasswordReset asks the service to send a reset token to email.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return services.Wrap(services.ErrValidation, "forgot password", "Email is required.", nil)
	}
	req, err := convertapi.NewForgotPasswordRequest(ctx, m.baseURL, email)
	if err != nil {
		return err
	}
	return m.expectSuccess(req, "forgot password", msgForgotFailed)
}

// ResetPassword sets a new password using a reset token.
func (m *Manager) ResetPassword(ctx context.Context, token, secret string) error {
	token = strings.TrimSpace(token)
	if token == "" || secret == "" {
		return services.Wrap(services.ErrValidation, "reset password", "Reset token and new password are required.", nil)
	}
	req, err := convertapi.NewResetPasswordRequest(ctx, m.baseURL, token, secret)
	if err != nil {
		return err
	}
	return m.expectSuccess(req, "reset password", msgResetFailed)
}

// Health reports the service's self-declared status.
func (m *Manager) Health(ctx context.Context) (string, error) {
	req, err := convertapi.NewHealthRequest(ctx, m.baseURL)
	if err != nil {
		return "", err
	}
	resp, err := m.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var payload convertapi.Health
	if err := convertapi.DecodeJSON(resp, &payload); err != nil {
		return "", services.Wrap(services.ClassifyStatus(resp.StatusCode), "health", "Health check failed.", err)
	}
	return payload.Status, nil
}

func (m *Manager) expectSuccess(req *http.Request, operation, fallback string) error {
	resp, err := m.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, operation, fallback, err)
	}
	defer resp.Body.Close()
	if err := convertapi.DecodeJSON(resp, nil); err != nil {
		var respErr *convertapi.ResponseError
		if errors.As(err, &respErr) {
			return services.WrapStatus(services.ErrValidation, operation, respErr.StatusCode, respErr.MessageOr(fallback), err)
		}
		return services.Wrap(services.ErrTransient, operation, fallback, err)
	}
	return nil
}

// Do sends req to the service. The credential held at call time is attached
// as a bearer token; without one the request goes out unauthenticated. The
// request timeout bounds the wait for response headers. After that it bounds
// each stall while reading the body, so long downloads that keep making
// progress are not cut off. Closing the body releases the timer.
//
// A 401 reply logs the session out before Do returns, unless a newer login or
// logout happened while the request was in flight. Either way it comes back
// as an error marked services.ErrAuthorization with the body already closed. Other
// replies are returned unchanged for the caller to decode.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("session: nil request")
	}
	ctx, cancel := context.WithCancel(req.Context())
	var expired atomic.Bool
	var timer *time.Timer
	if m.timeout > 0 {
		timer = time.AfterFunc(m.timeout, func() {
			expired.Store(true)
			cancel()
		})
	}
	release := func() {
		if timer != nil {
			timer.Stop()
		}
		cancel()
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}

	outbound := req.Clone(ctx)
	outbound.Header.Set("X-Request-ID", requestID)

	m.stateMu.RLock()
	credential, generation := m.credential, m.generation
	m.stateMu.RUnlock()
	if credential != "" {
		outbound.Header.Set("Authorization", "Bearer "+credential)
	} else {
		outbound.Header.Del("Authorization")
	}

	operation := strings.TrimPrefix(outbound.URL.Path, "/")
	logger := m.logger.With(logging.String(logging.FieldEndpoint, outbound.Method+" "+outbound.URL.Path), logging.String("request_id", requestID))

	resp, err := m.client.Do(outbound)
	if err != nil {
		release()
		logger.Debug("request failed", logging.Error(err))
		switch {
		case errors.Is(err, context.Canceled) && req.Context().Err() != nil:
			return nil, err
		case expired.Load() || errors.Is(err, context.DeadlineExceeded):
			return nil, services.Wrap(services.ErrTransient, operation, "The request timed out.", err)
		default:
			return nil, services.Wrap(services.ErrTransient, operation, "The conversion service could not be reached.", err)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		respErr := convertapi.ReadError(resp)
		resp.Body.Close()
		release()
		m.handleUnauthorized(generation)
		logger.Info("credential rejected by service", logging.Int("status", resp.StatusCode))
		return nil, services.WrapStatus(services.ErrAuthorization, operation, resp.StatusCode, msgSessionExpired, respErr)
	}

	logger.Debug("request complete", logging.Int("status", resp.StatusCode))
	resp.Body = &idleTimeoutBody{ReadCloser: resp.Body, timer: timer, idle: m.timeout, release: release}
	return resp, nil
}

// handleUnauthorized logs out unless the session has moved to a new
// generation since the rejected request was sent.
func (m *Manager) handleUnauthorized(sent uint64) {
	m.stateMu.Lock()
	if m.generation != sent {
		m.stateMu.Unlock()
		m.logger.Debug("ignoring 401 for a superseded credential")
		return
	}
	previous := m.clearLocked()
	m.stateMu.Unlock()
	m.logCleared(previous)
}

func (m *Manager) setState(credential string, phase Phase, user *User) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.setStateLocked(credential, phase, user)
}

func (m *Manager) setStateLocked(credential string, phase Phase, user *User) error {
	if !validTransition(m.phase, phase) {
		m.logger.Error("refusing session transition", logging.String("from", m.phase.String()), logging.String("to", phase.String()))
		return services.Wrap(services.ErrInvalidState, "session", fmt.Sprintf("cannot move from %s to %s", m.phase, phase), nil)
	}
	if !stateValid(credential, phase, user) {
		return services.Wrap(services.ErrInvalidState, "session", fmt.Sprintf("inconsistent %s state", phase), nil)
	}
	if m.phase != phase {
		m.logger.Debug("session phase changed", logging.String("from", m.phase.String()), logging.String(logging.FieldPhase, phase.String()))
	}
	if phase == PhaseCredentialPending {
		m.generation++
	}
	m.credential = credential
	m.phase = phase
	m.user = user
	return nil
}

// idleTimeoutBody pushes the request timer out whenever a read makes
// progress. A nil timer means no timeout.
type idleTimeoutBody struct {
	io.ReadCloser
	timer   *time.Timer
	idle    time.Duration
	release func()
	once    sync.Once
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 && b.timer != nil {
		b.timer.Reset(b.idle)
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
