package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/improvements"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/svcctx"
	"github.com/smartmarks/smartmarks/internal/views"
)

// ImprovementsPage is the text improvement page data.
type ImprovementsPage struct {
	Text     string
	Error    string
	Analysis *improvements.Analysis
	PDFName  string
}

func improvementsError(r *http.Request, a *improvements.Analysis) string {
	if a != nil && a.ParseErr != nil {
		return tr(r, "improve.parse_failed")
	}
	return ""
}

// ImprovementsPageEndpoint handles GET /improvements. ?text= prefills the
// form; without it the last analysis is shown again.
type ImprovementsPageEndpoint struct{}

var _ api.Endpoint = (*ImprovementsPageEndpoint)(nil)

func (e *ImprovementsPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/improvements", e.handler
}

func (e *ImprovementsPageEndpoint) RequiresSession() bool { return true }

func (e *ImprovementsPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	page := ImprovementsPage{Text: r.URL.Query().Get("text")}
	if page.Text == "" {
		if a := s.Analysis(); a != nil {
			page.Text = a.Text
			page.Analysis = a
			page.Error = improvementsError(r, a)
		}
	}
	render(w, r, http.StatusOK, views.PageImprovements, "improve.title", page)
}

func (e *ImprovementsPageEndpoint) Command(_ func() string) *cobra.Command { return nil }

// ImprovementsEndpoint handles POST /improvements.
type ImprovementsEndpoint struct{}

var _ api.Endpoint = (*ImprovementsEndpoint)(nil)

func (e *ImprovementsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/improvements", e.handler
}

func (e *ImprovementsEndpoint) RequiresSession() bool { return true }

func (e *ImprovementsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	client := svcctx.GraderFrom(r.Context())
	if client == nil {
		http.Error(w, "grading client not initialized", http.StatusServiceUnavailable)
		return
	}

	text := r.PostFormValue("text")
	if improvements.Blank(text) {
		render(w, r, http.StatusBadRequest, views.PageImprovements, "improve.title",
			ImprovementsPage{Text: text, Error: tr(r, "improve.empty")})
		return
	}

	a, err := client.Improvements(r.Context(), s.Token(), text)
	if err != nil {
		if expired(w, r, s, err) {
			return
		}
		svcctx.LoggerFrom(r.Context()).Error("text analysis failed", "session", s.ID, "error", err)
		render(w, r, http.StatusBadGateway, views.PageImprovements, "improve.title",
			ImprovementsPage{Text: text, Error: tr(r, "improve.failed")})
		return
	}
	if a.ParseErr != nil {
		svcctx.LoggerFrom(r.Context()).Warn("malformed improvement suggestions", "session", s.ID, "error", a.ParseErr)
	}

	s.SetAnalysis(a)
	render(w, r, http.StatusOK, views.PageImprovements, "improve.title", ImprovementsPage{
		Text:     text,
		Error:    improvementsError(r, a),
		Analysis: a,
	})
}

func (e *ImprovementsEndpoint) Command(_ func() string) *cobra.Command { return nil }

// ImprovementsPDFEndpoint handles POST /improvements/pdf.
type ImprovementsPDFEndpoint struct{}

var _ api.Endpoint = (*ImprovementsPDFEndpoint)(nil)

func (e *ImprovementsPDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/improvements/pdf", e.handler
}

func (e *ImprovementsPDFEndpoint) RequiresSession() bool { return true }

func (e *ImprovementsPDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	client := svcctx.GraderFrom(r.Context())
	if client == nil {
		http.Error(w, "grading client not initialized", http.StatusServiceUnavailable)
		return
	}

	a := s.Analysis()
	if a == nil {
		flash(r, session.FlashError, "improve.empty")
		redirect(w, r, "/improvements")
		return
	}

	page := ImprovementsPage{Text: a.Text, Analysis: a, Error: improvementsError(r, a)}
	name, err := client.ImprovementsPDF(r.Context(), s.Token(), a)
	if err != nil {
		if expired(w, r, s, err) {
			return
		}
		svcctx.LoggerFrom(r.Context()).Error("improvements pdf failed", "session", s.ID, "error", err)
		page.Error = tr(r, "improve.pdf_failed", errorMessage(err))
		render(w, r, http.StatusBadGateway, views.PageImprovements, "improve.title", page)
		return
	}

	page.PDFName = name
	render(w, r, http.StatusOK, views.PageImprovements, "improve.title", page)
}

func (e *ImprovementsPDFEndpoint) Command(_ func() string) *cobra.Command { return nil }
