package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/auth"
	"github.com/rhuss/slidewright/pkg/auth/jwt"
	"github.com/rhuss/slidewright/pkg/auth/password"
	"github.com/rhuss/slidewright/pkg/engine"
	"github.com/rhuss/slidewright/pkg/provider/providertest"
	"github.com/rhuss/slidewright/pkg/storage"
	"github.com/rhuss/slidewright/pkg/storage/files"
	"github.com/rhuss/slidewright/pkg/storage/memory"
	"github.com/rhuss/slidewright/pkg/tasks"
)

func init() {
	password.Cost = 4 // bcrypt.MinCost
}

const sampleText = "# Quarterly Review\n\nRevenue grew twelve percent compared to last year.\n\n" +
	"## Outlook\n\n- Expand into two new markets\n- Hire a regional sales team\n"

var testUsage = api.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}

type testEnv struct {
	srv     *httptest.Server
	adapter *Adapter
	fake    *providertest.Provider
	store   *memory.Store
	tasks   *tasks.Manager
	files   *files.Store
	issuer  *jwt.Issuer
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// newTestEnv wires the adapter against in-memory backends and a scripted
// provider that plans three slides.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := providertest.New(providertest.Pipeline(3, testUsage))
	e, err := engine.New(fake, engine.Config{KeyConfigured: true})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	svc := engine.NewService(e, nil, engine.ServiceConfig{})

	mgr := tasks.New(tasks.Config{Workers: 2, QueueSize: 10})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("tasks.Start: %v", err)
	}
	t.Cleanup(func() { mgr.Stop(context.Background()) })

	fs, err := files.New(t.TempDir(), 1024)
	if err != nil {
		t.Fatalf("files.New: %v", err)
	}

	issuer, err := jwt.NewIssuer(jwt.Config{Secret: testSecret, Issuer: "slidewright"})
	if err != nil {
		t.Fatalf("jwt.NewIssuer: %v", err)
	}
	store := memory.New()
	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{jwt.New(jwt.Config{Secret: testSecret, Issuer: "slidewright"})},
		DefaultDecision: auth.No,
	}

	a, err := NewAdapter(Deps{
		Service: svc,
		Tasks:   mgr,
		Store:   store,
		Files:   fs,
		Issuer:  issuer,
		Auth:    auth.Middleware(chain, store, nil, auth.DefaultBypassEndpoints),
	}, Config{Version: "1.2.3", PollInterval: 20 * time.Millisecond, MetricsPath: "/metrics"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		a.CloseStreams()
		srv.Close()
	})

	return &testEnv{srv: srv, adapter: a, fake: fake, store: store, tasks: mgr, files: fs, issuer: issuer}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *gohttp.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := gohttp.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := gohttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// registerUser creates an account through the API and returns a token.
func (e *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()
	resp := e.do(t, "POST", "/api/users/register", "", api.RegisterRequest{
		Email: email, Password: "correct-horse", Name: "Test User",
	})
	if resp.StatusCode != gohttp.StatusCreated {
		t.Fatalf("register status = %d, body = %s", resp.StatusCode, readBody(t, resp))
	}
	resp = e.do(t, "POST", "/api/users/login", "", api.LoginRequest{Email: email, Password: "correct-horse"})
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("login status = %d, body = %s", resp.StatusCode, readBody(t, resp))
	}
	var tok api.TokenResponse
	decode(t, resp, &tok)
	return tok.AccessToken
}

func readBody(t *testing.T, resp *gohttp.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func decode(t *testing.T, resp *gohttp.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func expectError(t *testing.T, resp *gohttp.Response, status int, errType api.ErrorType) *api.APIError {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d, body = %s", resp.StatusCode, status, readBody(t, resp))
	}
	var er api.ErrorResponse
	decode(t, resp, &er)
	if er.Error == nil || er.Error.Type != errType {
		t.Fatalf("error = %+v, want type %q", er.Error, errType)
	}
	return er.Error
}

func TestRootAndProbes(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/", "", nil)
	var root rootResponse
	decode(t, resp, &root)
	if diff := cmp.Diff(rootResponse{Name: "slidewright", Version: "1.2.3", Status: "ok"}, root); diff != "" {
		t.Errorf("root mismatch (-want +got):\n%s", diff)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if resp := env.do(t, "GET", path, "", nil); resp.StatusCode != gohttp.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	if resp := env.do(t, "GET", "/metrics", "", nil); resp.StatusCode != gohttp.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", resp.StatusCode)
	} else if !strings.Contains(readBody(t, resp), "slidewright_http_requests_total") {
		t.Error("metrics output missing slidewright_http_requests_total")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/health", "", nil)
	var got healthResponse
	decode(t, resp, &got)

	want := healthResponse{
		Status:           "ok",
		APIKeyConfigured: true,
		Database:         "connected",
		TaskManager:      taskManagerHealth{Running: true, ActiveTasks: 0, Workers: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
}

func TestReadinessFailsWhenTasksStopped(t *testing.T) {
	env := newTestEnv(t)
	if err := env.tasks.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	resp := env.do(t, "GET", "/readyz", "", nil)
	expectError(t, resp, gohttp.StatusServiceUnavailable, api.ErrorTypeUnavailable)
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t)

	req, _ := gohttp.NewRequest("GET", env.srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	resp, err := gohttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "trace-me" {
		t.Errorf("X-Request-ID = %q, want trace-me", got)
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantType    api.ErrorType
	}{
		{"malformed JSON", "application/json", "{", gohttp.StatusBadRequest, api.ErrorTypeInvalidRequest},
		{"empty body", "application/json", "", gohttp.StatusBadRequest, api.ErrorTypeInvalidRequest},
		{"wrong content type", "text/plain", "{}", gohttp.StatusUnsupportedMediaType, api.ErrorTypeUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := gohttp.Post(env.srv.URL+"/api/generate", tt.contentType, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			expectError(t, resp, tt.wantStatus, tt.wantType)
		})
	}
}

func TestNewAdapterRequiresServices(t *testing.T) {
	if _, err := NewAdapter(Deps{}, Config{}); err == nil {
		t.Error("NewAdapter without service should fail")
	}
	svc := engine.NewService(mustEngine(t), nil, engine.ServiceConfig{})
	if _, err := NewAdapter(Deps{Service: svc}, Config{}); err == nil {
		t.Error("NewAdapter without task manager should fail")
	}
}

func mustEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(providertest.New(nil), engine.Config{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/users/me", "/api/presentations", "/api/upload"} {
		resp := env.do(t, "GET", path, "", nil)
		expectError(t, resp, gohttp.StatusUnauthorized, api.ErrorTypeUnauthorized)
	}
}

// seedUser stores a user directly, bypassing the API.
func seedUser(t *testing.T, s storage.UserStore, email string, active bool) *storage.User {
	t.Helper()
	hash, err := password.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u := &storage.User{Email: email, Name: "Seeded", PasswordHash: hash, IsActive: active}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}
