package endpoints

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/web"
)

// StaticEndpoint serves the embedded CSS and JavaScript under /static/.
type StaticEndpoint struct{}

var _ api.Endpoint = (*StaticEndpoint)(nil)

func (e *StaticEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/static/{path...}", e.handler
}

func (e *StaticEndpoint) RequiresSession() bool {
	return false
}

func (e *StaticEndpoint) Command(_ func() string) *cobra.Command {
	return nil // No CLI command for static files
}

func (e *StaticEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	staticFS, err := web.StaticFS()
	if err != nil {
		http.Error(w, "assets not available", http.StatusInternalServerError)
		return
	}

	filePath := r.PathValue("path")
	if filePath == "" || strings.HasSuffix(filePath, "/") {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.StripPrefix("/static", http.FileServer(http.FS(staticFS))).ServeHTTP(w, r)
}
