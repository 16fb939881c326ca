// Package server exposes the HTTP API: task CRUD, push subscription
// registration, the Google OAuth flow, and the scheduling endpoint.
// Prometheus metrics are served on a dedicated listener so operational
// data never shares a port with the public API.
package server
