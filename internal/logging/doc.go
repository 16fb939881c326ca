// Package logging provides structured logging utilities for the planpush application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (subscriber endpoint anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "scheduler.run")
//	logger.Info("run finished",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Warn("push delivery failed",
//	    logging.EndpointHash(endpoint))
//
// # Security Considerations
//
// Subscriber endpoints embed per-client capability URLs and user emails are
// personal data; both are hashed before logging so entries can be correlated
// without leaking the raw values. Tokens are never logged directly.
package logging
