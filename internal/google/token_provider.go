package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// TokenProvider is an interface for providing OAuth tokens for the
// Calendar API. This abstraction allows different token sources
// (file-based for the CLI, request-scoped for tests).
type TokenProvider interface {
	// Token retrieves the stored OAuth token.
	Token(ctx context.Context) (*oauth2.Token, error)

	// Save persists a freshly exchanged token.
	Save(token *oauth2.Token) error

	// HasToken reports whether a token is available without retrieving it.
	HasToken() bool
}

// ErrNoToken is returned when no stored token exists. Callers use it to
// distinguish "authorize first" from real failures.
var ErrNoToken = errors.New("no Google OAuth token found")

// FileTokenProvider persists the token as a JSON file under the data
// directory.
type FileTokenProvider struct {
	path string
}

// NewFileTokenProvider creates a provider storing its token at
// <dataDir>/google.token.
func NewFileTokenProvider(dataDir string) *FileTokenProvider {
	return &FileTokenProvider{path: filepath.Join(dataDir, "google.token")}
}

// Token reads the stored token from disk.
func (p *FileTokenProvider) Token(_ context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	return &token, nil
}

// Save writes the token to disk, readable only by the owner.
func (p *FileTokenProvider) Save(token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// HasToken reports whether a token file exists.
func (p *FileTokenProvider) HasToken() bool {
	_, err := os.Stat(p.path)
	return err == nil
}
