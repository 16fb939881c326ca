package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"planpush/internal/calendar"
	"planpush/internal/google"
	"planpush/internal/notifier"
	"planpush/internal/scheduler"
	"planpush/internal/store"
)

type recordingSender struct {
	mu       sync.Mutex
	payloads []string
}

func (r *recordingSender) Send(ctx context.Context, record json.RawMessage, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingSender) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

type fakeTokens struct {
	hasToken bool
	saved    *oauth2.Token
}

func (f *fakeTokens) Token(ctx context.Context) (*oauth2.Token, error) {
	if !f.hasToken {
		return nil, google.ErrNoToken
	}
	return &oauth2.Token{AccessToken: "test"}, nil
}

func (f *fakeTokens) Save(token *oauth2.Token) error {
	f.saved = token
	f.hasToken = true
	return nil
}

func (f *fakeTokens) HasToken() bool {
	return f.hasToken
}

type stubSink struct {
	mu     sync.Mutex
	failOn map[string]error
	count  int
}

func (s *stubSink) CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[input.Summary]; ok {
		return nil, err
	}
	s.count++
	return &calendar.EventSummary{
		ID:       "evt",
		Summary:  input.Summary,
		HTMLLink: "https://calendar.google.com/event?eid=" + url.QueryEscape(input.Summary),
	}, nil
}

type testEnv struct {
	server *Server
	sender *recordingSender
	tokens *fakeTokens
	sink   *stubSink
	tasks  *store.TaskStore
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	tasks, err := store.NewTaskStore(filepath.Join(dir, "tasks.json"))
	require.NoError(t, err)
	subs, err := store.NewSubscriptionStore(filepath.Join(dir, "subscriptions.json"))
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	sender := &recordingSender{}
	tokens := &fakeTokens{}
	sink := &stubSink{}

	sched, err := scheduler.New(scheduler.Config{}, logger)
	require.NoError(t, err)

	srv, err := New(Config{
		Logger:        logger,
		Tasks:         tasks,
		Subscriptions: subs,
		Notifier:      notifier.New(sender, subs, logger),
		Scheduler:     sched,
		OAuth: google.OAuthConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:8080/oauth2callback",
		},
		Tokens:         tokens,
		VAPIDPublicKey: "test-public-key",
		NewSession: func(ctx context.Context) (*CalendarSession, error) {
			return &CalendarSession{Sink: sink}, nil
		},
	})
	require.NoError(t, err)
	srv.lookupEmail = func(ctx context.Context, ts oauth2.TokenSource) (string, error) {
		return "user@example.com", nil
	}

	return &testEnv{server: srv, sender: sender, tokens: tokens, sink: sink, tasks: tasks}
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func subscribeOne(t *testing.T, h http.Handler, endpoint string) {
	t.Helper()
	body := fmt.Sprintf(`{"endpoint":%q,"keys":{"p256dh":"k","auth":"a"}}`, endpoint)
	rec := doJSON(t, h, http.MethodPost, "/subscribe", body)
	require.Equal(t, http.StatusCreated, rec.Code)
}

const taskBody = `{"name":"Write report","priority":"High","duration":"90","energy":"Medium","deadline":"2024-06-01","start_time":"14:00"}`

func TestAddTask_JSON(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()
	subscribeOne(t, h, "https://push.example.com/a")

	rec := doJSON(t, h, http.MethodPost, "/tasks", taskBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, 1, env.tasks.Len())
	assert.Equal(t, []string{"Task added: Write report"}, env.sender.sent())
}

func TestAddTask_Form(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	form := url.Values{
		"name":     {"Buy groceries"},
		"priority": {"Low"},
		"duration": {"30"},
		"energy":   {"Low"},
		"deadline": {"2024-06-02"},
	}
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, env.tasks.Len())
}

func TestAddTask_ValidationError(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	rec := doJSON(t, h, http.MethodPost, "/tasks", `{"priority":"High"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.tasks.Len())
	assert.Empty(t, env.sender.sent(), "invalid tasks must not trigger notifications")
}

func TestListTasks(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	rec := doJSON(t, h, http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Tasks)

	doJSON(t, h, http.MethodPost, "/tasks", taskBody)
	rec = doJSON(t, h, http.MethodGet, "/tasks", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 1)
}

func TestRemoveTask(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()
	subscribeOne(t, h, "https://push.example.com/a")
	doJSON(t, h, http.MethodPost, "/tasks", taskBody)

	rec := doJSON(t, h, http.MethodDelete, "/tasks/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.tasks.Len())
	assert.Contains(t, env.sender.sent(), "Task removed: Write report")
}

func TestRemoveTask_OutOfRange(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()
	subscribeOne(t, h, "https://push.example.com/a")
	doJSON(t, h, http.MethodPost, "/tasks", taskBody)
	before := len(env.sender.sent())

	for _, target := range []string{"/tasks/5", "/tasks/-1"} {
		rec := doJSON(t, h, http.MethodDelete, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}

	// Out-of-range removals change nothing and notify nobody.
	assert.Equal(t, 1, env.tasks.Len())
	assert.Len(t, env.sender.sent(), before)
}

func TestRemoveTask_BadIndex(t *testing.T) {
	env := newTestServer(t)
	rec := doJSON(t, env.server.Handler(), http.MethodDelete, "/tasks/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscribe(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	body := `{"endpoint":"https://push.example.com/x","keys":{"p256dh":"k","auth":"a"}}`
	rec := doJSON(t, h, http.MethodPost, "/subscribe", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"status":"subscribed"}`, rec.Body.String())

	// Duplicate registration is idempotent and still succeeds.
	rec = doJSON(t, h, http.MethodPost, "/subscribe", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/subscribe", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVAPIDPublicKey(t *testing.T) {
	env := newTestServer(t)
	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/vapid-public-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"publicKey":"test-public-key"}`, rec.Body.String())
}

func TestSchedule_Unauthorized(t *testing.T) {
	env := newTestServer(t)
	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/schedule", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/authorize", resp["authorize_url"])
}

func TestSchedule(t *testing.T) {
	env := newTestServer(t)
	env.tokens.hasToken = true
	env.sink.failOn = map[string]error{
		"Broken": errors.New("googleapi: Error 500"),
	}
	h := env.server.Handler()

	doJSON(t, h, http.MethodPost, "/tasks", taskBody)
	doJSON(t, h, http.MethodPost, "/tasks",
		`{"name":"Broken","priority":"Low","duration":"15","energy":"Low","deadline":"2024-06-02"}`)

	rec := doJSON(t, h, http.MethodPost, "/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Email     string `json:"email"`
		Scheduled []struct {
			Name string `json:"name"`
			Link string `json:"link"`
		} `json:"scheduled"`
		Failed []struct {
			Name  string `json:"name"`
			Error string `json:"error"`
		} `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "user@example.com", resp.Email)
	require.Len(t, resp.Scheduled, 1)
	assert.Equal(t, "Write report", resp.Scheduled[0].Name)
	assert.Contains(t, resp.Scheduled[0].Link, "calendar.google.com")
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, "Broken", resp.Failed[0].Name)
}

func TestAuthorize_RedirectsWithState(t *testing.T) {
	env := newTestServer(t)
	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/authorize", "")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Contains(t, loc.Host, "accounts.google.com")
	assert.NotEmpty(t, loc.Query().Get("state"))
	assert.Equal(t, "client-id", loc.Query().Get("client_id"))
}

func TestOAuthCallback_RejectsUnknownState(t *testing.T) {
	env := newTestServer(t)
	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/oauth2callback?state=bogus&code=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallback_MissingCode(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	rec := doJSON(t, h, http.MethodGet, "/authorize", "")
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	rec = doJSON(t, h, http.MethodGet, "/oauth2callback?state="+state, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	env.server.Health().SetReady(false)
	rec = doJSON(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
