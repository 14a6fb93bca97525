package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/backend"
	"github.com/smartmarks/smartmarks/internal/svcctx"
	"github.com/smartmarks/smartmarks/version"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		Health check
//	@Description	Returns ok while the HTTP server is responding
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

var _ api.Endpoint = (*ReadyEndpoint)(nil)

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Returns ok only if the grading backend is reachable
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Backend: "ok"}

	client := svcctx.GraderFrom(r.Context())
	if client == nil {
		resp.Status = "degraded"
		resp.Backend = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if err := client.Health(r.Context()); err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("grading backend unhealthy", "error", err)
		resp.Status = "degraded"
		resp.Backend = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes the grading backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server   string        `json:"server"`
	Version  string        `json:"version"`
	Backend  BackendStatus `json:"backend"`
	Sessions int           `json:"sessions"`
}

// BackendStatus shows the grading backend's URL, health and, when managed,
// its container state.
type BackendStatus struct {
	URL       string `json:"url"`
	Health    string `json:"health"`
	Container string `json:"container,omitempty"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// Manager is set when the server runs the backend container itself.
	Manager *backend.DockerManager
}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Reports backend URL, health, managed container state and session count
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Server:  "running",
		Version: version.GitRelease,
	}

	if client := svcctx.GraderFrom(r.Context()); client != nil {
		resp.Backend.URL = client.BaseURL()
		if err := client.Health(r.Context()); err != nil {
			resp.Backend.Health = "unhealthy"
		} else {
			resp.Backend.Health = "healthy"
		}
	} else {
		resp.Backend.Health = "not_initialized"
	}

	if e.Manager != nil {
		status, err := e.Manager.Status(r.Context())
		if err != nil {
			resp.Backend.Container = "error"
		} else {
			resp.Backend.Container = string(status)
		}
	}

	if sessions := svcctx.SessionsFrom(r.Context()); sessions != nil {
		resp.Sessions = sessions.Len()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatJSON {
				return api.Output(resp)
			}
			health := color.GreenString(resp.Backend.Health)
			if resp.Backend.Health != "healthy" {
				health = color.RedString(resp.Backend.Health)
			}
			fmt.Printf("Server:   %s (%s)\n", resp.Server, resp.Version)
			fmt.Printf("Sessions: %d\n", resp.Sessions)
			fmt.Printf("Backend:\n")
			fmt.Printf("  URL:       %s\n", resp.Backend.URL)
			fmt.Printf("  Health:    %s\n", health)
			if resp.Backend.Container != "" {
				fmt.Printf("  Container: %s\n", resp.Backend.Container)
			}
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
