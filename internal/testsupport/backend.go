package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Routes understood by Backend, used with Calls, FailNext, and SetDelay.
const (
	RouteLogin    = "POST /auth/jwt/login"
	RouteRegister = "POST /auth/register"
	RouteForgot   = "POST /auth/forgot-password"
	RouteReset    = "POST /auth/reset-password"
	RouteMe       = "GET /users/me"
	RouteUpload   = "POST /convert/upload"
	RouteStatus   = "GET /convert/status"
	RouteDownload = "GET /convert/download"
	RouteHealth   = "GET /health"
)

var signingKey = []byte("fileconv-test-signing-key")

// StatusStep is one scripted reply of the status endpoint. A non-zero
// HTTPStatus replies with that code and Detail instead of a status payload.
type StatusStep struct {
	Status     string
	ResultPath string
	Error      string
	HTTPStatus int
	Detail     any
}

// Upload records one accepted upload.
type Upload struct {
	ConversionID string
	TaskID       string
	Filename     string
	ContentType  string
	OutputFormat string
	Content      string
}

type fakeUser struct {
	id       string
	email    string
	password string
}

type fakeConversion struct {
	upload  Upload
	script  []StatusStep
	current StatusStep
	created time.Time
}

type override struct {
	status int
	detail any
}

// Backend is an in-memory conversion service served over httptest. It
// implements the login, registration, profile, upload, status, download,
// password reset, and health endpoints.
type Backend struct {
	Server *httptest.Server

	// OmitConversionID makes uploads reply with only a task id.
	OmitConversionID bool

	mu          sync.Mutex
	users       map[string]*fakeUser
	tokens      map[string]string
	conversions map[string]*fakeConversion
	uploads     []Upload
	scripts     []StatusStep
	calls       map[string]int
	overrides   map[string][]override
	delays      map[string]time.Duration
	auth        map[string]string
	nextID      int
}

// NewBackend starts a Backend and registers its shutdown with t.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		users:       map[string]*fakeUser{},
		tokens:      map[string]string{},
		conversions: map[string]*fakeConversion{},
		calls:       map[string]int{},
		overrides:   map[string][]override{},
		delays:      map[string]time.Duration{},
		auth:        map[string]string{},
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the service root.
func (b *Backend) URL() string {
	return b.Server.URL
}

// AddUser registers an account and returns its id.
func (b *Backend) AddUser(email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password).id
}

func (b *Backend) addUserLocked(email, password string) *fakeUser {
	b.nextID++
	user := &fakeUser{id: fmt.Sprintf("u%d", b.nextID), email: email, password: password}
	b.users[strings.ToLower(email)] = user
	return user
}

// IssueToken mints a valid credential for an existing account.
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[strings.ToLower(email)]
	if !ok {
		panic("testsupport: unknown user " + email)
	}
	return b.issueLocked(user)
}

func (b *Backend) issueLocked(user *fakeUser) string {
	b.nextID++
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        fmt.Sprintf("jti-%d", b.nextID),
		Subject:   user.id,
		Audience:  jwt.ClaimStrings{"fastapi-users:auth"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	b.tokens[token] = user.id
	return token
}

// RevokeTokens invalidates every issued credential.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = map[string]string{}
}

// ScriptStatuses sets the replies for the next uploaded conversion. Each
// status request consumes one step; the last step repeats.
func (b *Backend) ScriptStatuses(steps ...StatusStep) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts = append([]StatusStep(nil), steps...)
}

// FailNext makes the next request to route reply with status and detail.
func (b *Backend) FailNext(route string, status int, detail any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[route] = append(b.overrides[route], override{status: status, detail: detail})
}

// SetDelay holds replies on route for d, or until the client gives up.
func (b *Backend) SetDelay(route string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[route] = d
}

// Calls returns how many requests reached route.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// LastAuthorization returns the Authorization header of the latest request to route.
func (b *Backend) LastAuthorization(route string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth[route]
}

// Uploads returns every accepted upload in order.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	route, id := routeOf(r)

	b.mu.Lock()
	b.calls[route]++
	b.auth[route] = r.Header.Get("Authorization")
	delay := b.delays[route]
	var forced *override
	if queue := b.overrides[route]; len(queue) > 0 {
		forced = &queue[0]
		b.overrides[route] = queue[1:]
	}
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if forced != nil {
		writeDetail(w, forced.status, forced.detail)
		return
	}

	switch route {
	case RouteLogin:
		b.login(w, r)
	case RouteRegister:
		b.register(w, r)
	case RouteForgot:
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "null")
	case RouteReset:
		b.resetPassword(w, r)
	case RouteMe:
		b.me(w, r)
	case RouteUpload:
		b.upload(w, r)
	case RouteStatus:
		b.status(w, r, id)
	case RouteDownload:
		b.download(w, r, id)
	case RouteHealth:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

func routeOf(r *http.Request) (string, string) {
	path := r.URL.Path
	for _, prefix := range []string{"/convert/status/", "/convert/download/"} {
		if strings.HasPrefix(path, prefix) {
			return r.Method + " " + strings.TrimSuffix(prefix, "/"), strings.TrimPrefix(path, prefix)
		}
	}
	return r.Method + " " + path, ""
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []map[string]string{{"msg": "invalid form"}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[strings.ToLower(r.PostForm.Get("username"))]
	if !ok || user.password != r.PostForm.Get("password") {
		writeDetail(w, http.StatusBadRequest, "LOGIN_BAD_CREDENTIALS")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": b.issueLocked(user), "token_type": "bearer"})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []map[string]string{{"msg": "invalid body"}})
		return
	}
	if !strings.Contains(payload.Email, "@") {
		writeDetail(w, http.StatusUnprocessableEntity, []map[string]any{{"loc": []string{"body", "email"}, "msg": "value is not a valid email address"}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[strings.ToLower(payload.Email)]; exists {
		writeDetail(w, http.StatusBadRequest, "REGISTER_USER_ALREADY_EXISTS")
		return
	}
	user := b.addUserLocked(payload.Email, payload.Password)
	writeJSON(w, http.StatusCreated, userPayload(user))
}

func (b *Backend) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []map[string]string{{"msg": "invalid body"}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	email := strings.TrimPrefix(payload.Token, "reset-")
	user, ok := b.users[strings.ToLower(email)]
	if !ok || !strings.HasPrefix(payload.Token, "reset-") {
		writeDetail(w, http.StatusBadRequest, "RESET_PASSWORD_BAD_TOKEN")
		return
	}
	user.password = payload.Password
	writeJSON(w, http.StatusOK, nil)
}

// authorize resolves the bearer credential. Callers must hold b.mu.
func (b *Backend) authorize(w http.ResponseWriter, r *http.Request) (*fakeUser, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	userID, ok := b.tokens[token]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	for _, user := range b.users {
		if user.id == userID {
			return user, true
		}
	}
	writeDetail(w, http.StatusUnauthorized, "Unauthorized")
	return nil, false
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.authorize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, userPayload(user))
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	_, ok := b.authorize(w, r)
	b.mu.Unlock()
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []map[string]string{{"msg": "invalid multipart body"}})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No filename provided")
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)

	contentType := header.Header.Get("Content-Type")
	switch contentType {
	case "image/jpeg", "image/png", "application/pdf", "text/plain":
	default:
		writeDetail(w, http.StatusBadRequest, "Unsupported file type: "+contentType+". Allowed: image/jpeg, image/png, application/pdf, text/plain")
		return
	}
	format := r.FormValue("output_format")

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	upload := Upload{
		ConversionID: fmt.Sprintf("conv-%d", b.nextID),
		TaskID:       fmt.Sprintf("task-%d", b.nextID),
		Filename:     header.Filename,
		ContentType:  contentType,
		OutputFormat: format,
		Content:      string(content),
	}
	script := b.scripts
	b.scripts = nil
	if len(script) == 0 {
		script = []StatusStep{{Status: "completed", ResultPath: "/files/" + upload.ConversionID}}
	}
	b.conversions[upload.ConversionID] = &fakeConversion{
		upload:  upload,
		script:  script,
		current: StatusStep{Status: "pending"},
		created: time.Now().UTC(),
	}
	b.uploads = append(b.uploads, upload)

	reply := map[string]string{"message": "File uploaded successfully, conversion started.", "task_id": upload.TaskID}
	if !b.OmitConversionID {
		reply["conversion_id"] = upload.ConversionID
	}
	writeJSON(w, http.StatusAccepted, reply)
}

func (b *Backend) status(w http.ResponseWriter, r *http.Request, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.authorize(w, r); !ok {
		return
	}
	conv, ok := b.conversions[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Conversion not found")
		return
	}
	step := conv.script[0]
	if len(conv.script) > 1 {
		conv.script = conv.script[1:]
	}
	if step.HTTPStatus != 0 {
		writeDetail(w, step.HTTPStatus, step.Detail)
		return
	}
	conv.current = step
	var resultPath, errorMessage any
	if step.ResultPath != "" {
		resultPath = step.ResultPath
	}
	if step.Error != "" {
		errorMessage = step.Error
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversion_id":       conv.upload.ConversionID,
		"task_id":             conv.upload.TaskID,
		"status":              step.Status,
		"output_format":       conv.upload.OutputFormat,
		"converted_file_path": resultPath,
		"error_message":       errorMessage,
		"created_at":          conv.created.Format(time.RFC3339Nano),
		"updated_at":          time.Now().UTC().Format(time.RFC3339Nano),
		"original_filename":   conv.upload.Filename,
	})
}

func (b *Backend) download(w http.ResponseWriter, r *http.Request, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.authorize(w, r); !ok {
		return
	}
	conv, ok := b.conversions[id]
	if !ok || !strings.EqualFold(conv.current.Status, "completed") {
		writeDetail(w, http.StatusNotFound, "Converted file not available")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "converted:"+conv.upload.Content)
}

func userPayload(user *fakeUser) map[string]any {
	return map[string]any{
		"id":           user.id,
		"email":        user.email,
		"is_active":    true,
		"is_superuser": false,
		"is_verified":  true,
	}
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
