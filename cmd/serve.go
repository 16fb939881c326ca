package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"planpush/internal/config"
	"planpush/internal/google"
	"planpush/internal/instrumentation"
	"planpush/internal/logging"
	"planpush/internal/notifier"
	"planpush/internal/push"
	"planpush/internal/scheduler"
	"planpush/internal/server"
	"planpush/internal/store"
)

func newServeCmd() *cobra.Command {
	cfg := config.Default()
	var debugMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

The server keeps the task list, registers web-push subscribers, runs
the Google OAuth flow, and schedules tasks onto Google Calendar on
request. Prometheus metrics are served on a dedicated port.

Configuration:
  Google OAuth (required for /schedule):
    --google-client-id and --google-client-secret flags
    OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars

  Web Push (required):
    VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY and VAPID_SUBSCRIBER env vars
    OR the corresponding flags. Generate a key pair with any VAPID
    tool; the subscriber is a contact URI like mailto:you@example.com.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyEnvFallbacks(cmd, &cfg)
			envString(cmd, "listen-addr", "LISTEN_ADDR", &cfg.ListenAddr)
			envString(cmd, "metrics-addr", "METRICS_ADDR", &cfg.MetricsAddr)
			envString(cmd, "oauth-redirect-url", "OAUTH_REDIRECT_URL", &cfg.OAuthRedirectURL)
			envString(cmd, "vapid-public-key", "VAPID_PUBLIC_KEY", &cfg.VAPIDPublicKey)
			envString(cmd, "vapid-private-key", "VAPID_PRIVATE_KEY", &cfg.VAPIDPrivateKey)
			envString(cmd, "vapid-subscriber", "VAPID_SUBSCRIBER", &cfg.VAPIDSubscriber)
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				cfg.MetricsEnabled = false
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg, debugMode)
		},
	}

	registerCommonFlags(cmd, &cfg)
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "HTTP API address. Can also use LISTEN_ADDR env var.")
	cmd.Flags().StringVar(&cfg.OAuthRedirectURL, "oauth-redirect-url", "", "OAuth redirect URL, e.g. http://localhost:8080/oauth2callback. Can also use OAUTH_REDIRECT_URL env var.")
	cmd.Flags().StringVar(&cfg.VAPIDPublicKey, "vapid-public-key", "", "VAPID public key for Web Push. Can also use VAPID_PUBLIC_KEY env var.")
	cmd.Flags().StringVar(&cfg.VAPIDPrivateKey, "vapid-private-key", "", "VAPID private key for Web Push. Can also use VAPID_PRIVATE_KEY env var.")
	cmd.Flags().StringVar(&cfg.VAPIDSubscriber, "vapid-subscriber", "", "VAPID subscriber contact, e.g. mailto:you@example.com. Can also use VAPID_SUBSCRIBER env var.")
	cmd.Flags().IntVar(&cfg.NotifyConcurrency, "notify-concurrency", 0, "Concurrent push deliveries (0 = default).")
	cmd.Flags().BoolVar(&cfg.MetricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(cfg config.Config, debugMode bool) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := setupLogger(debugMode)

	// Default the OAuth redirect to our own callback endpoint.
	if cfg.OAuthRedirectURL == "" {
		host := cfg.ListenAddr
		if host[0] == ':' {
			host = "localhost" + host
		}
		cfg.OAuthRedirectURL = fmt.Sprintf("http://%s/oauth2callback", host)
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("Metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}
	defer func() {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("Error during metrics server shutdown", logging.Err(err))
			}
		}
	}()

	tasks, err := store.NewTaskStore(filepath.Join(cfg.DataDir, "tasks.json"))
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	subs, err := store.NewSubscriptionStore(filepath.Join(cfg.DataDir, "subscriptions.json"))
	if err != nil {
		return fmt.Errorf("failed to open subscription store: %w", err)
	}

	pushClient, err := push.NewClient(cfg.Push())
	if err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.Scheduler(), logger)
	if err != nil {
		return err
	}

	apiServer, err := server.New(server.Config{
		Addr:           cfg.ListenAddr,
		Logger:         logger,
		Tasks:          tasks,
		Subscriptions:  subs,
		Notifier:       notifier.New(pushClient, subs, logger, notifier.WithConcurrency(cfg.NotifyConcurrency)),
		Scheduler:      sched,
		OAuth:          cfg.OAuth(),
		Tokens:         google.NewFileTokenProvider(cfg.DataDir),
		VAPIDPublicKey: cfg.VAPIDPublicKey,
		Metrics:        provider.Metrics(),
	})
	if err != nil {
		return err
	}

	logger.Info("planpush starting",
		"addr", cfg.ListenAddr,
		"data_dir", cfg.DataDir,
		"calendar_id", cfg.CalendarID,
		"timezone", cfg.TimeZone,
		"subscribers", subs.Len(),
		"tasks", tasks.Len())

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
