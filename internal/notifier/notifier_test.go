package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	payloads []string
	records  []string
	failOn   map[string]error
}

func (f *fakeSender) Send(ctx context.Context, record json.RawMessage, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, string(record))
	f.payloads = append(f.payloads, payload)
	if err, ok := f.failOn[string(record)]; ok {
		return err
	}
	return nil
}

type fakeRegistry struct {
	records []json.RawMessage
}

func (f *fakeRegistry) List() []json.RawMessage {
	return f.records
}

func makeRecords(n int) []json.RawMessage {
	records := make([]json.RawMessage, n)
	for i := range records {
		records[i] = json.RawMessage(fmt.Sprintf(`{"endpoint":"https://push.example.com/%d"}`, i))
	}
	return records
}

func TestBroadcast_AllDelivered(t *testing.T) {
	sender := &fakeSender{}
	registry := &fakeRegistry{records: makeRecords(5)}

	n := New(sender, registry, slog.New(slog.DiscardHandler))
	summary := n.Broadcast(context.Background(), "Task added: Write report")

	assert.Equal(t, Summary{Total: 5, Delivered: 5, Failed: 0}, summary)
	assert.Len(t, sender.payloads, 5)
	for _, p := range sender.payloads {
		assert.Equal(t, "Task added: Write report", p)
	}
}

func TestBroadcast_FailureIsolation(t *testing.T) {
	records := makeRecords(4)
	sender := &fakeSender{failOn: map[string]error{
		string(records[1]): errors.New("push service returned status 410"),
	}}
	registry := &fakeRegistry{records: records}

	n := New(sender, registry, slog.New(slog.DiscardHandler))
	summary := n.Broadcast(context.Background(), "hello")

	// The failing subscriber does not stop delivery to the others.
	assert.Equal(t, Summary{Total: 4, Delivered: 3, Failed: 1}, summary)
	assert.Len(t, sender.records, 4)
}

func TestBroadcast_NoSubscribers(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, &fakeRegistry{}, slog.New(slog.DiscardHandler))

	summary := n.Broadcast(context.Background(), "hello")

	assert.Equal(t, Summary{}, summary)
	assert.Empty(t, sender.records)
}

func TestBroadcast_LogsAnonymizedEndpoint(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	records := makeRecords(1)
	sender := &fakeSender{failOn: map[string]error{
		string(records[0]): errors.New("boom"),
	}}
	n := New(sender, &fakeRegistry{records: records}, logger)

	summary := n.Broadcast(context.Background(), "hello")
	require.Equal(t, 1, summary.Failed)

	out := buf.String()
	assert.Contains(t, out, "Push delivery failed")
	assert.Contains(t, out, "endpoint:")
	assert.NotContains(t, out, "push.example.com/0")
}

func TestBroadcast_ConcurrencyBound(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	block := make(chan struct{})

	sender := senderFunc(func(ctx context.Context, record json.RawMessage, payload string) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		<-block
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	n := New(sender, &fakeRegistry{records: makeRecords(10)}, slog.New(slog.DiscardHandler), WithConcurrency(2))

	done := make(chan Summary, 1)
	go func() {
		done <- n.Broadcast(context.Background(), "hello")
	}()

	close(block)

	summary := <-done
	assert.Equal(t, 10, summary.Delivered)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

type senderFunc func(ctx context.Context, record json.RawMessage, payload string) error

func (f senderFunc) Send(ctx context.Context, record json.RawMessage, payload string) error {
	return f(ctx, record, payload)
}
