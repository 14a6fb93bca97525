package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/svcctx"
)

// ThemeEndpoint handles POST /preferences/theme.
type ThemeEndpoint struct{}

var _ api.Endpoint = (*ThemeEndpoint)(nil)

func (e *ThemeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/preferences/theme", e.handler
}

func (e *ThemeEndpoint) RequiresSession() bool { return true }

func (e *ThemeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if s := session.From(r.Context()); s != nil {
		s.ToggleTheme()
	}
	redirect(w, r, safeRedirect(r.PostFormValue("redirect")))
}

func (e *ThemeEndpoint) Command(_ func() string) *cobra.Command { return nil }

// LanguageEndpoint handles POST /preferences/language.
type LanguageEndpoint struct{}

var _ api.Endpoint = (*LanguageEndpoint)(nil)

func (e *LanguageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/preferences/language", e.handler
}

func (e *LanguageEndpoint) RequiresSession() bool { return true }

func (e *LanguageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := session.From(r.Context())
	v := svcctx.ViewsFrom(r.Context())
	if s != nil && v != nil {
		if lang := r.PostFormValue("language"); v.Catalog().Supported(lang) {
			s.SetLanguage(lang)
		}
	}
	redirect(w, r, safeRedirect(r.PostFormValue("redirect")))
}

func (e *LanguageEndpoint) Command(_ func() string) *cobra.Command { return nil }
