// Package config holds the runtime configuration shared by the serve
// and schedule commands.
package config

import (
	"fmt"
	"time"

	"planpush/internal/google"
	"planpush/internal/push"
	"planpush/internal/scheduler"
)

// Defaults used when neither flag nor environment provides a value.
const (
	DefaultListenAddr  = ":8080"
	DefaultMetricsAddr = ":9090"
	DefaultDataDir     = "data"
	DefaultCalendarID  = "primary"
	DefaultTimeZone    = "UTC"
	DefaultPushTTL     = 60
)

// Config is the assembled runtime configuration.
type Config struct {
	// DataDir holds tasks.json, subscriptions.json and the Google
	// token. Created on startup if missing.
	DataDir string

	// ListenAddr is the main HTTP API address.
	ListenAddr string

	// MetricsAddr is the dedicated Prometheus metrics address.
	MetricsAddr string

	// MetricsEnabled controls the dedicated metrics listener.
	MetricsEnabled bool

	// CalendarID is the target Google calendar.
	CalendarID string

	// TimeZone is the IANA zone task times are interpreted in.
	TimeZone string

	// DefaultStartTime fills in for tasks without a start, "15:04" format.
	DefaultStartTime string

	// Google OAuth client credentials.
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string

	// VAPID sender identity for Web Push.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	// ScheduleWorkers bounds concurrent calendar submissions.
	ScheduleWorkers int

	// NotifyConcurrency bounds concurrent push deliveries.
	NotifyConcurrency int

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration
}

// Default returns a Config with all defaults filled in. Credentials
// stay empty; the commands layer flags and environment on top.
func Default() Config {
	return Config{
		DataDir:          DefaultDataDir,
		ListenAddr:       DefaultListenAddr,
		MetricsAddr:      DefaultMetricsAddr,
		MetricsEnabled:   true,
		CalendarID:       DefaultCalendarID,
		TimeZone:         DefaultTimeZone,
		DefaultStartTime: "",
		ShutdownTimeout:  30 * time.Second,
	}
}

// Validate checks the parts every command needs. Credential checks are
// left to the components that use them, so read-only operation works
// without Google or VAPID setup.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return nil
}

// OAuth returns the Google OAuth client configuration.
func (c *Config) OAuth() google.OAuthConfig {
	return google.OAuthConfig{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		RedirectURL:  c.OAuthRedirectURL,
	}
}

// Push returns the Web Push sender configuration.
func (c *Config) Push() push.Config {
	return push.Config{
		VAPIDPublicKey:  c.VAPIDPublicKey,
		VAPIDPrivateKey: c.VAPIDPrivateKey,
		Subscriber:      c.VAPIDSubscriber,
		TTL:             DefaultPushTTL,
	}
}

// Scheduler returns the scheduling pipeline configuration.
func (c *Config) Scheduler() scheduler.Config {
	return scheduler.Config{
		CalendarID:       c.CalendarID,
		TimeZone:         c.TimeZone,
		DefaultStartTime: c.DefaultStartTime,
		Workers:          c.ScheduleWorkers,
	}
}
