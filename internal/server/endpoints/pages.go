package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/svcctx"
	"github.com/smartmarks/smartmarks/internal/views"
)

// HomeEndpoint handles GET / (exact match).
type HomeEndpoint struct{}

var _ api.Endpoint = (*HomeEndpoint)(nil)

func (e *HomeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/{$}", e.handler
}

func (e *HomeEndpoint) RequiresSession() bool { return true }

func (e *HomeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.PageHome, "", nil)
}

func (e *HomeEndpoint) Command(_ func() string) *cobra.Command { return nil }

// FeaturesEndpoint handles GET /features.
type FeaturesEndpoint struct{}

var _ api.Endpoint = (*FeaturesEndpoint)(nil)

func (e *FeaturesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/features", e.handler
}

func (e *FeaturesEndpoint) RequiresSession() bool { return true }

func (e *FeaturesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.PageFeatures, "nav.features", nil)
}

func (e *FeaturesEndpoint) Command(_ func() string) *cobra.Command { return nil }

// LegalEndpoint serves one of the Markdown legal documents at /{Slug}.
type LegalEndpoint struct {
	Slug     string // e.g. "cookie-policy"
	TitleKey string
}

var _ api.Endpoint = (*LegalEndpoint)(nil)

func (e *LegalEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/" + e.Slug, e.handler
}

func (e *LegalEndpoint) RequiresSession() bool { return true }

func (e *LegalEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	v := svcctx.ViewsFrom(r.Context())
	if v == nil {
		http.Error(w, "views not initialized", http.StatusServiceUnavailable)
		return
	}
	doc, ok := v.Document(e.Slug)
	if !ok {
		renderError(w, r, http.StatusNotFound, "error.not_found")
		return
	}
	render(w, r, http.StatusOK, views.PageLegal, e.TitleKey, doc)
}

func (e *LegalEndpoint) Command(_ func() string) *cobra.Command { return nil }

// NotFoundEndpoint renders the 404 page for any unmatched GET.
type NotFoundEndpoint struct{}

var _ api.Endpoint = (*NotFoundEndpoint)(nil)

func (e *NotFoundEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/{path...}", e.handler
}

func (e *NotFoundEndpoint) RequiresSession() bool { return true }

func (e *NotFoundEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	renderError(w, r, http.StatusNotFound, "error.not_found")
}

func (e *NotFoundEndpoint) Command(_ func() string) *cobra.Command { return nil }
