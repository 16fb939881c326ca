package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

// OAuthConfig holds the OAuth2 client settings for the Google Calendar
// integration. Values come from configuration, never from process-wide
// constants.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string

	// RedirectURL is where Google sends the user after consent.
	// For the CLI auth flow this is the out-of-band URL.
	RedirectURL string
}

// OOBRedirectURL is the out-of-band redirect for the CLI flow, where
// the user pastes the authorization code manually.
const OOBRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

// Validate checks that the client credentials are present.
func (c OAuthConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("google client ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("google client secret is required")
	}
	return nil
}

// Config returns the oauth2 configuration for the calendar integration.
func (c OAuthConfig) Config() *oauth2.Config {
	redirect := c.RedirectURL
	if redirect == "" {
		redirect = OOBRedirectURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes: []string{
			calendar.CalendarScope, // Calendar access (event creation)
			"https://www.googleapis.com/auth/userinfo.email",
			"openid",
		},
	}
}

// AuthCodeURL returns the consent page URL for the given CSRF state.
// Offline access is requested so a refresh token is issued.
func (c OAuthConfig) AuthCodeURL(state string) string {
	return c.Config().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token set.
func (c OAuthConfig) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.Config().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// TokenSource wraps a stored token in a refreshing token source.
func (c OAuthConfig) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return c.Config().TokenSource(ctx, token)
}
