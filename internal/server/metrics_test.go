package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planpush/internal/instrumentation"
)

func TestNewMetricsServer_RequiresProvider(t *testing.T) {
	_, err := NewMetricsServer(MetricsServerConfig{})
	assert.Error(t, err)
}

func TestNewMetricsServer_RequiresEnabledProvider(t *testing.T) {
	cfg := instrumentation.DefaultConfig()
	cfg.Enabled = false
	provider, err := instrumentation.NewProvider(context.Background(), cfg)
	require.NoError(t, err)

	_, err = NewMetricsServer(MetricsServerConfig{InstrumentationProvider: provider})
	assert.Error(t, err)
}

func TestMetricsServer_StartWithReadySignal(t *testing.T) {
	cfg := instrumentation.DefaultConfig()
	cfg.Enabled = true
	cfg.MetricsExporter = instrumentation.ExporterPrometheus
	provider, err := instrumentation.NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		_ = provider.Shutdown(context.Background())
	}()

	srv, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "127.0.0.1:0",
		InstrumentationProvider: provider,
	})
	require.NoError(t, err)

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- srv.StartWithReadySignal(ready)
	}()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("metrics server exited before ready: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not become ready")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(shutdownCtx))
	assert.ErrorIs(t, <-done, http.ErrServerClosed)
}
