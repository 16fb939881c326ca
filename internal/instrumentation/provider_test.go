package instrumentation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Metrics(), "disabled provider still hands out a no-op recorder")
	assert.Nil(t, p.PrometheusHandler())
	assert.NotNil(t, p.Tracer("test"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Prometheus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.MetricsExporter = ExporterPrometheus
	cfg.TracingExporter = ExporterNone

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, p.Shutdown(context.Background()))
	}()

	assert.True(t, p.Enabled())
	assert.NotNil(t, p.Metrics())
	assert.NotNil(t, p.PrometheusHandler())

	// Recording through a real provider must not panic.
	p.Metrics().RecordTaskScheduled(context.Background(), StatusSuccess)
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.MetricsExporter = "statsd"

	_, err := NewProvider(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewProvider_OTLPWithoutEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.MetricsExporter = ExporterOTLP
	cfg.OTLPEndpoint = ""

	_, err := NewProvider(context.Background(), cfg)
	assert.Error(t, err)
}
