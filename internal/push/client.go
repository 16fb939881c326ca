package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Client sends Web Push notifications signed with a VAPID key pair.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient validates the sender identity and returns a push client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid push configuration: %w", err)
	}
	return &Client{cfg: cfg}, nil
}

// SetHTTPClient overrides the HTTP client used for delivery. Intended
// for tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Send delivers one notification payload to the subscription stored as
// a raw JSON record. A malformed record, transport failure, or a push
// service response of 400 or above all return an *Error.
func (c *Client) Send(ctx context.Context, record json.RawMessage, payload string) error {
	var sub webpush.Subscription
	if err := json.Unmarshal(record, &sub); err != nil {
		return &Error{Op: "decode", Err: err}
	}
	if sub.Endpoint == "" {
		return &Error{Op: "decode", Err: fmt.Errorf("subscription has no endpoint")}
	}

	opts := &webpush.Options{
		Subscriber:      c.cfg.Subscriber,
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
		TTL:             c.cfg.TTL,
	}
	if c.httpClient != nil {
		opts.HTTPClient = c.httpClient
	}

	resp, err := webpush.SendNotificationWithContext(ctx, []byte(payload), &sub, opts)
	if err != nil {
		return &Error{Op: "send", Endpoint: sub.Endpoint, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// 404 and 410 mean the subscription is gone on the push service
	// side; callers decide whether to act on that.
	if resp.StatusCode >= http.StatusBadRequest {
		return &Error{
			Op:       "send",
			Endpoint: sub.Endpoint,
			Err:      fmt.Errorf("push service returned status %d", resp.StatusCode),
		}
	}

	return nil
}
