package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	m, err := NewMetrics(meter)
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/tasks", 200, 5*time.Millisecond)
	m.RecordGoogleAPIOperation(ctx, ServiceCalendar, "create_event", StatusSuccess, 120*time.Millisecond)
	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)
	m.RecordTaskScheduled(ctx, StatusError)
	m.RecordPushDelivery(ctx, 3, 1)
	m.IncrementSubscribers(ctx)
}

func TestMetrics_ZeroValueIsNoop(t *testing.T) {
	// The zero value must be safe to call before instrumentation is
	// initialized.
	var m Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest(ctx, "POST", "/subscribe", 201, time.Millisecond)
		m.RecordGoogleAPIOperation(ctx, ServiceUserinfo, "get", StatusSuccess, time.Millisecond)
		m.RecordOAuthAuth(ctx, OAuthResultFailure)
		m.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
		m.RecordTaskScheduled(ctx, StatusSuccess)
		m.RecordPushDelivery(ctx, 0, 0)
		m.IncrementSubscribers(ctx)
	})
}
