package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"planpush/internal/logging"
)

const (
	defaultConcurrency = 8
	defaultSendTimeout = 10 * time.Second
)

// Sender delivers one payload to one subscription record.
type Sender interface {
	Send(ctx context.Context, record json.RawMessage, payload string) error
}

// Registry lists the current subscription records.
type Registry interface {
	List() []json.RawMessage
}

// Summary reports the outcome of one broadcast.
type Summary struct {
	Total     int `json:"total"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Notifier broadcasts messages to all subscribers of a Registry.
type Notifier struct {
	sender      Sender
	registry    Registry
	logger      *slog.Logger
	concurrency int
	sendTimeout time.Duration
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithConcurrency bounds how many deliveries run at once.
func WithConcurrency(n int) Option {
	return func(nf *Notifier) {
		if n > 0 {
			nf.concurrency = n
		}
	}
}

// WithSendTimeout bounds how long a single delivery may take.
func WithSendTimeout(d time.Duration) Option {
	return func(nf *Notifier) {
		if d > 0 {
			nf.sendTimeout = d
		}
	}
}

// New creates a Notifier delivering through sender to the subscribers
// of registry.
func New(sender Sender, registry Registry, logger *slog.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		sender:      sender,
		registry:    registry,
		logger:      logger.With(logging.KeyOperation, "broadcast"),
		concurrency: defaultConcurrency,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Broadcast sends message to every registered subscriber and returns a
// delivery summary. Individual failures are logged at warn level with
// anonymized endpoints; they never abort the broadcast. Only ctx
// cancellation stops deliveries early.
func (n *Notifier) Broadcast(ctx context.Context, message string) Summary {
	records := n.registry.List()
	summary := Summary{Total: len(records)}
	if len(records) == 0 {
		return summary
	}

	start := time.Now()

	var delivered, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for _, record := range records {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(gctx, n.sendTimeout)
			defer cancel()

			if err := n.sender.Send(sendCtx, record, message); err != nil {
				failed.Add(1)
				n.logger.Warn("Push delivery failed",
					logging.KeyEndpointHash, endpointHash(record),
					logging.KeyError, err.Error())
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	g.Wait()

	summary.Delivered = int(delivered.Load())
	summary.Failed = int(failed.Load())

	n.logger.Info("Broadcast complete",
		"total", summary.Total,
		"delivered", summary.Delivered,
		"failed", summary.Failed,
		logging.KeyDuration, time.Since(start))

	return summary
}

// endpointHash extracts the endpoint from a raw subscription record
// and anonymizes it for logging.
func endpointHash(record json.RawMessage) string {
	var sub struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(record, &sub); err != nil || sub.Endpoint == "" {
		return logging.AnonymizeEndpoint(string(record))
	}
	return logging.AnonymizeEndpoint(sub.Endpoint)
}
