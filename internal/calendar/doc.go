// Package calendar provides a client for creating events via the
// Google Calendar API.
//
// The client is the event sink the scheduler submits to. It is
// constructed from an explicit OAuth token provider; no ambient
// credential state is consulted.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, oauthCfg, tokenProvider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	created, err := client.CreateEvent(ctx, "primary", calendar.EventInput{...})
package calendar
