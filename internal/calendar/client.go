package calendar

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"planpush/internal/google"
)

// Client wraps the Google Calendar service.
type Client struct {
	svc *calendar.Service
	ts  oauth2.TokenSource
}

// Option configures optional client behavior.
type Option func(*clientOptions)

type clientOptions struct {
	refreshRecorder func(success bool)
}

// WithRefreshRecorder reports token refresh outcomes, so operators can
// watch credentials going stale.
func WithRefreshRecorder(rec func(success bool)) Option {
	return func(o *clientOptions) {
		o.refreshRecorder = rec
	}
}

// NewClient creates a Calendar client authenticated through the given
// token provider. It returns google.ErrNoToken (wrapped) when the user
// has not authorized yet.
func NewClient(ctx context.Context, oauthCfg google.OAuthConfig, provider google.TokenProvider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	var options clientOptions
	for _, opt := range opts {
		opt(&options)
	}

	token, err := provider.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token: %w", err)
	}

	tokenSource := oauthCfg.TokenSource(ctx, token)
	if options.refreshRecorder != nil {
		tokenSource = &observedTokenSource{
			base:   tokenSource,
			last:   token.AccessToken,
			record: options.refreshRecorder,
		}
	}
	client := oauth2.NewClient(ctx, tokenSource)

	// Force HTTP/1.1 by disabling HTTP/2
	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, ts: tokenSource}, nil
}

// TokenSource exposes the refreshing token source, for callers that
// need further authenticated lookups (userinfo).
func (c *Client) TokenSource() oauth2.TokenSource {
	return c.ts
}

// observedTokenSource reports when the underlying source swaps in a
// fresh access token, or fails to.
type observedTokenSource struct {
	base   oauth2.TokenSource
	record func(success bool)

	mu   sync.Mutex
	last string
}

func (o *observedTokenSource) Token() (*oauth2.Token, error) {
	token, err := o.base.Token()
	if err != nil {
		o.record(false)
		return nil, err
	}

	o.mu.Lock()
	refreshed := token.AccessToken != o.last
	o.last = token.AccessToken
	o.mu.Unlock()

	if refreshed {
		o.record(true)
	}
	return token, nil
}

// CreateEvent creates a new calendar event and returns the created
// event including its HTML link.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error) {
	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	created, err := c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	summary := toEventSummary(created)
	return &summary, nil
}
