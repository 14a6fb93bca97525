package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint defines both an HTTP route and its corresponding CLI command.
// This provides a single source of truth for API operations.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler for this endpoint.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresSession returns true if the handler needs the visitor's
	// browser session (loaded from the session cookie) in its context.
	RequiresSession() bool

	// Command returns a Cobra command that calls this endpoint via HTTP,
	// or nil for browser-only pages.
	// getServerURL is called at runtime to get the server URL (deferred evaluation).
	Command(getServerURL func() string) *cobra.Command
}
