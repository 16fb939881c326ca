package push

import (
	"fmt"

	"planpush/internal/logging"
)

// Config holds the process-wide sender identity for Web Push delivery.
type Config struct {
	// VAPIDPublicKey and VAPIDPrivateKey are the base64url-encoded
	// application server keys.
	VAPIDPublicKey  string
	VAPIDPrivateKey string

	// Subscriber is the contact claim sent to push services,
	// e.g. "mailto:ops@example.com".
	Subscriber string

	// TTL is how long (seconds) push services may retain an
	// undelivered notification.
	TTL int
}

// Validate checks that the sender identity is complete.
func (c Config) Validate() error {
	if c.VAPIDPublicKey == "" {
		return fmt.Errorf("VAPID public key is required")
	}
	if c.VAPIDPrivateKey == "" {
		return fmt.Errorf("VAPID private key is required")
	}
	if c.Subscriber == "" {
		return fmt.Errorf("VAPID subscriber contact is required")
	}
	return nil
}

// Error describes a failed push operation. The subscriber endpoint is
// anonymized in the message so errors are safe to log.
type Error struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("push %s failed for %s: %v", e.Op, logging.AnonymizeEndpoint(e.Endpoint), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
