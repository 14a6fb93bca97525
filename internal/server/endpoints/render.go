package endpoints

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/smartmarks/smartmarks/internal/grader"
	"github.com/smartmarks/smartmarks/internal/i18n"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/svcctx"
	"github.com/smartmarks/smartmarks/internal/views"
)

// render writes an HTML page for the request's session.
func render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	v := svcctx.ViewsFrom(r.Context())
	if v == nil {
		http.Error(w, "views not initialized", http.StatusServiceUnavailable)
		return
	}
	v.Render(w, status, page, v.NewPage(r, session.From(r.Context()), title, data))
}

// renderError writes the error page with a translated message.
func renderError(w http.ResponseWriter, r *http.Request, status int, key string, args ...any) {
	render(w, r, status, views.PageError, key, tr(r, key, args...))
}

// tr translates key into the session's language.
func tr(r *http.Request, key string, args ...any) string {
	lang := i18n.Fallback
	if s := session.From(r.Context()); s != nil {
		lang = s.Language()
	}
	if v := svcctx.ViewsFrom(r.Context()); v != nil {
		return v.Catalog().T(lang, key, args...)
	}
	return key
}

// flash queues a translated message for the next page.
func flash(r *http.Request, kind, key string, args ...any) {
	if s := session.From(r.Context()); s != nil {
		s.AddFlash(kind, tr(r, key, args...))
	}
}

// redirect answers a form post with 303 See Other.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// requireLogin returns the logged-in session or redirects to the login page.
func requireLogin(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s := session.From(r.Context())
	if s == nil {
		http.Error(w, "session not available", http.StatusInternalServerError)
		return nil, false
	}
	if !s.LoggedIn() {
		redirect(w, r, "/login")
		return nil, false
	}
	return s, true
}

// expired handles a backend 401: the token is dropped and the visitor is sent
// back to the login page. It reports whether err was handled.
func expired(w http.ResponseWriter, r *http.Request, s *session.Session, err error) bool {
	if !grader.IsUnauthorized(err) {
		return false
	}
	svcctx.LoggerFrom(r.Context()).Info("backend rejected session token", "session", s.ID)
	s.Logout()
	flash(r, session.FlashError, "session.expired")
	redirect(w, r, "/login")
	return true
}

// errorMessage is the text shown to users for a failed backend call.
func errorMessage(err error) string {
	var apiErr *grader.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// safeRedirect returns target if it is a local path, otherwise "/".
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return target
}
