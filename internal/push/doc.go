// Package push delivers Web Push notifications to subscriber endpoints.
//
// Delivery uses the VAPID scheme (RFC 8292): the process signs each
// request with a fixed key pair loaded once from configuration. The
// client knows nothing about fan-out; it sends exactly one notification
// to one subscription record and reports the outcome.
package push
