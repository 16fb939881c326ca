// Package cmd contains the planpush CLI commands.
package cmd
