// Package notifier fans a message out to every registered push
// subscriber. Failures are isolated per subscriber: one dead or
// misbehaving endpoint never blocks delivery to the rest, and a
// broadcast as a whole cannot fail because of individual endpoints.
package notifier
