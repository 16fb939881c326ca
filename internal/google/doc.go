// Package google handles OAuth2 authentication against Google for the
// Calendar API.
//
// Credentials are an explicit capability: callers construct an
// OAuthConfig from configuration, obtain a token via the authorization
// code flow, and pass a TokenProvider into the calendar client. Nothing
// in this package keeps ambient session state.
package google
