package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"planpush/internal/calendar"
	"planpush/internal/google"
	"planpush/internal/instrumentation"
	"planpush/internal/logging"
	"planpush/internal/notifier"
	"planpush/internal/scheduler"
	"planpush/internal/store"
	"planpush/internal/task"
)

const (
	maxSubscriptionBody = 64 << 10
	oauthStateTTL       = 10 * time.Minute
)

// CalendarSession is an authenticated calendar connection for one
// scheduling run.
type CalendarSession struct {
	Sink   scheduler.Sink
	Tokens oauth2.TokenSource
}

// SessionFactory opens a CalendarSession. The default implementation
// builds a Google Calendar client from the stored token; tests swap in
// fakes.
type SessionFactory func(ctx context.Context) (*CalendarSession, error)

// Config holds the dependencies of the API server.
type Config struct {
	Addr   string
	Logger *slog.Logger

	Tasks         *store.TaskStore
	Subscriptions *store.SubscriptionStore
	Notifier      *notifier.Notifier
	Scheduler     *scheduler.Scheduler

	OAuth  google.OAuthConfig
	Tokens google.TokenProvider

	VAPIDPublicKey string

	// Metrics may be nil; a zero recorder is used instead.
	Metrics *instrumentation.Metrics

	// NewSession overrides the calendar session factory. Nil means
	// connect to Google with the stored token.
	NewSession SessionFactory
}

// Server is the HTTP API server.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	health     *HealthChecker
	newSession SessionFactory

	// lookupEmail resolves the authorized account, replaceable in tests.
	lookupEmail func(ctx context.Context, ts oauth2.TokenSource) (string, error)

	mu     sync.Mutex
	states map[string]time.Time

	httpServer   *http.Server
	shuttingDown atomic.Bool
}

// New creates the API server.
func New(cfg Config) (*Server, error) {
	if cfg.Tasks == nil || cfg.Subscriptions == nil {
		return nil, fmt.Errorf("task and subscription stores are required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}

	s := &Server{
		cfg:         cfg,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		newSession:  cfg.NewSession,
		lookupEmail: google.UserEmail,
		states:      make(map[string]time.Time),
	}
	s.health = NewHealthChecker(s.shuttingDown.Load)

	if s.newSession == nil {
		s.newSession = func(ctx context.Context) (*CalendarSession, error) {
			client, err := calendar.NewClient(ctx, cfg.OAuth, cfg.Tokens,
				calendar.WithRefreshRecorder(func(success bool) {
					result := instrumentation.OAuthResultSuccess
					if !success {
						result = instrumentation.OAuthResultFailure
					}
					s.metrics.RecordOAuthTokenRefresh(context.Background(), result)
				}))
			if err != nil {
				return nil, err
			}
			return &CalendarSession{Sink: client, Tokens: client.TokenSource()}, nil
		}
	}

	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /tasks", s.instrument("/tasks", s.handleListTasks))
	mux.Handle("POST /tasks", s.instrument("/tasks", s.handleAddTask))
	mux.Handle("DELETE /tasks/{index}", s.instrument("/tasks/{index}", s.handleRemoveTask))
	mux.Handle("POST /subscribe", s.instrument("/subscribe", s.handleSubscribe))
	mux.Handle("GET /vapid-public-key", s.instrument("/vapid-public-key", s.handleVAPIDPublicKey))
	mux.Handle("GET /schedule", s.instrument("/schedule", s.handleSchedule))
	mux.Handle("POST /schedule", s.instrument("/schedule", s.handleSchedule))
	mux.Handle("GET /authorize", s.instrument("/authorize", s.handleAuthorize))
	mux.Handle("GET /oauth2callback", s.instrument("/oauth2callback", s.handleOAuthCallback))

	s.health.Register(mux)

	return mux
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("starting API server", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)
	s.health.SetReady(false)
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Health exposes the health checker for readiness control.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(pattern string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		h(rec, r)

		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, rec.status, duration)
		s.logger.Debug("Request handled",
			"method", r.Method,
			"path", pattern,
			logging.KeyStatus, rec.status,
			logging.KeyDuration, duration)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.cfg.Tasks.List()})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	t, err := decodeTask(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.cfg.Tasks.Add(t); err != nil {
		var vErr *task.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		s.logger.Error("Failed to persist task", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to save task")
		return
	}

	summary := s.cfg.Notifier.Broadcast(r.Context(), fmt.Sprintf("Task added: %s", t.Name))
	s.metrics.RecordPushDelivery(r.Context(), summary.Delivered, summary.Failed)

	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "task": t})
}

// decodeTask accepts either a JSON body or an HTML form post.
func decodeTask(r *http.Request) (task.Task, error) {
	var t task.Task

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			return t, fmt.Errorf("invalid task body: %w", err)
		}
		return t, nil
	}

	if err := r.ParseForm(); err != nil {
		return t, fmt.Errorf("invalid form body: %w", err)
	}
	t = task.Task{
		Name:      r.PostFormValue("name"),
		Priority:  r.PostFormValue("priority"),
		Duration:  r.PostFormValue("duration"),
		Energy:    r.PostFormValue("energy"),
		Deadline:  r.PostFormValue("deadline"),
		StartTime: r.PostFormValue("start_time"),
	}
	return t, nil
}

func (s *Server) handleRemoveTask(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "task index must be an integer")
		return
	}

	removed, ok, err := s.cfg.Tasks.Remove(index)
	if err != nil {
		s.logger.Error("Failed to persist task removal", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to save tasks")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	summary := s.cfg.Notifier.Broadcast(r.Context(), fmt.Sprintf("Task removed: %s", removed.Name))
	s.metrics.RecordPushDelivery(r.Context(), summary.Delivered, summary.Failed)

	writeJSON(w, http.StatusOK, map[string]any{"status": "removed", "task": removed})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubscriptionBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read subscription")
		return
	}

	added, err := s.cfg.Subscriptions.Add(body)
	if err != nil {
		if errors.Is(err, store.ErrInvalidSubscription) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Failed to persist subscription", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	if added {
		s.metrics.IncrementSubscribers(r.Context())
		s.logger.Info("Subscriber registered",
			"subscribers", s.cfg.Subscriptions.Len())
	}

	// Re-registration of a known subscription is a success too.
	writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

func (s *Server) handleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": s.cfg.VAPIDPublicKey})
}

// instrumentedSink times every calendar submission.
type instrumentedSink struct {
	base    scheduler.Sink
	metrics *instrumentation.Metrics
}

func (s *instrumentedSink) CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error) {
	start := time.Now()
	event, err := s.base.CreateEvent(ctx, calendarID, input)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, "create_event", status, time.Since(start))

	return event, err
}

type scheduledEvent struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

type failedEvent struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.cfg.Tokens != nil && !s.cfg.Tokens.HasToken() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":         "not authorized with Google",
			"authorize_url": "/authorize",
		})
		return
	}

	session, err := s.newSession(ctx)
	if err != nil {
		if errors.Is(err, google.ErrNoToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":         "not authorized with Google",
				"authorize_url": "/authorize",
			})
			return
		}
		s.logger.Error("Failed to open calendar session", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to connect to Google Calendar")
		return
	}

	email := "unknown"
	if session.Tokens != nil {
		lookupStart := time.Now()
		resolved, err := s.lookupEmail(ctx, session.Tokens)
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			s.logger.Warn("Failed to resolve account email", logging.Err(err))
		} else if resolved != "" {
			email = resolved
		}
		s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceUserinfo, "get", status, time.Since(lookupStart))
	}

	sink := &instrumentedSink{base: session.Sink, metrics: s.metrics}
	results := s.cfg.Scheduler.Run(ctx, sink, s.cfg.Tasks.List())

	scheduled := make([]scheduledEvent, 0, len(results))
	failed := make([]failedEvent, 0)
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, failedEvent{Name: res.Name, Error: res.Err.Error()})
			s.metrics.RecordTaskScheduled(ctx, instrumentation.StatusError)
			continue
		}
		scheduled = append(scheduled, scheduledEvent{Name: res.Name, Link: res.Link})
		s.metrics.RecordTaskScheduled(ctx, instrumentation.StatusSuccess)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":     email,
		"scheduled": scheduled,
		"failed":    failed,
	})
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.OAuth.Validate(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Google OAuth is not configured")
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}
	state := hex.EncodeToString(buf)

	s.mu.Lock()
	now := time.Now()
	for st, issued := range s.states {
		if now.Sub(issued) > oauthStateTTL {
			delete(s.states, st)
		}
	}
	s.states[state] = now
	s.mu.Unlock()

	http.Redirect(w, r, s.cfg.OAuth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	s.mu.Lock()
	issued, known := s.states[state]
	delete(s.states, state)
	s.mu.Unlock()

	if !known || time.Since(issued) > oauthStateTTL {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, "invalid or expired state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := s.cfg.OAuth.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.logger.Error("OAuth code exchange failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, "failed to exchange authorization code")
		return
	}

	if err := s.cfg.Tokens.Save(token); err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.logger.Error("Failed to persist OAuth token", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to save token")
		return
	}

	s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	s.logger.Info("Google authorization completed")

	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "authorized",
		"schedule_url": "/schedule",
	})
}
