package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestAnonymizeEndpoint(t *testing.T) {
	endpoint := "https://fcm.googleapis.com/fcm/send/abc123"

	hashed := AnonymizeEndpoint(endpoint)
	if hashed == "" {
		t.Fatal("expected non-empty hash")
	}
	if strings.Contains(hashed, "fcm.googleapis.com") {
		t.Error("anonymized endpoint must not contain the raw URL")
	}
	if !strings.HasPrefix(hashed, "endpoint:") {
		t.Errorf("expected endpoint: prefix, got %q", hashed)
	}

	// Same input must hash identically so log entries can be correlated.
	if AnonymizeEndpoint(endpoint) != hashed {
		t.Error("anonymization must be deterministic")
	}

	if AnonymizeEndpoint("") != "" {
		t.Error("empty endpoint should anonymize to empty string")
	}
}

func TestErr_NilSafe(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("operation finished", Err(nil))

	if strings.Contains(buf.String(), "error") {
		t.Errorf("nil error should not produce an error attribute: %s", buf.String())
	}
}

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	WithOperation(logger, "scheduler.run").Info("started")

	out := buf.String()
	if !strings.Contains(out, "operation=scheduler.run") {
		t.Errorf("expected operation attribute, got %s", out)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "<empty>" {
		t.Errorf("SanitizeToken(\"\") = %q", got)
	}

	got := SanitizeToken("ya29.secret-token-value")
	if strings.Contains(got, "secret") {
		t.Errorf("sanitized token leaks content: %q", got)
	}
	if !strings.Contains(got, "23") {
		t.Errorf("expected length indicator in %q", got)
	}
}
