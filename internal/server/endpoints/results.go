package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/email"
	"github.com/smartmarks/smartmarks/internal/grader"
	"github.com/smartmarks/smartmarks/internal/report"
	"github.com/smartmarks/smartmarks/internal/results"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/svcctx"
	"github.com/smartmarks/smartmarks/internal/views"
)

// ResultItem is one graded image on the results page.
type ResultItem struct {
	Index    int
	Number   int
	Result   *results.Result
	Retrying bool
}

// EmailForm holds the values of the send-grade form.
type EmailForm struct {
	Name      string
	Recipient string
	Grade     string
}

// ResultsPage is the results page data.
type ResultsPage struct {
	Student      session.Student
	Items        []ResultItem
	PDF          *report.Info
	EmailEnabled bool
	EmailError   string
	Email        EmailForm
}

func resultsPage(r *http.Request, s *session.Session) ResultsPage {
	snap := s.Results.Snapshot()
	items := make([]ResultItem, snap.Results.Len())
	for i, res := range snap.Results {
		items[i] = ResultItem{Index: i, Number: i + 1, Result: res, Retrying: snap.Retrying(i)}
	}
	sender := svcctx.EmailFrom(r.Context())
	return ResultsPage{
		Student:      displayStudent(r, s.Student()),
		Items:        items,
		PDF:          s.PDF(),
		EmailEnabled: sender != nil && sender.Configured(),
		Email:        EmailForm{Name: s.Student().Name},
	}
}

// displayStudent fills blank details with the translated "N/A".
func displayStudent(r *http.Request, st session.Student) session.Student {
	na := tr(r, "results.na")
	for _, f := range []*string{&st.Name, &st.Class, &st.Subject} {
		if strings.TrimSpace(*f) == "" {
			*f = na
		}
	}
	return st
}

// ResultsPageEndpoint handles GET /results.
type ResultsPageEndpoint struct{}

var _ api.Endpoint = (*ResultsPageEndpoint)(nil)

func (e *ResultsPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/results", e.handler
}

func (e *ResultsPageEndpoint) RequiresSession() bool { return true }

func (e *ResultsPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Has("studentName") || q.Has("studentClass") || q.Has("subject") {
		s.SetStudent(session.Student{
			Name:    strings.TrimSpace(q.Get("studentName")),
			Class:   strings.TrimSpace(q.Get("studentClass")),
			Subject: strings.TrimSpace(q.Get("subject")),
		})
	}

	// The backend's stored results do not include retries, so an already
	// loaded set is only refetched on request.
	if !s.Results.Snapshot().Loaded || q.Get("refresh") == "1" {
		if err := s.Results.Load(r.Context(), s.Token()); err != nil && !errors.Is(err, results.ErrNoResults) {
			if expired(w, r, s, err) {
				return
			}
			svcctx.LoggerFrom(r.Context()).Error("failed to load results", "session", s.ID, "error", err)
			flash(r, session.FlashError, "results.load_failed", errorMessage(err))
		}
	}

	render(w, r, http.StatusOK, views.PageResults, "results.title", resultsPage(r, s))
}

func (e *ResultsPageEndpoint) Command(_ func() string) *cobra.Command { return nil }

// RetryEndpoint handles POST /results/{index}/retry.
type RetryEndpoint struct{}

var _ api.Endpoint = (*RetryEndpoint)(nil)

func (e *RetryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/results/{index}/retry", e.handler
}

func (e *RetryEndpoint) RequiresSession() bool { return true }

func (e *RetryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		renderError(w, r, http.StatusNotFound, "error.not_found")
		return
	}

	_, err = retryResult(r, s, index)
	switch {
	case err == nil:
		flash(r, session.FlashSuccess, "results.retry_ok", index+1)
	case errors.Is(err, results.ErrRetryInFlight):
		flash(r, session.FlashError, "results.retry_busy")
	case errors.Is(err, results.ErrIndexOutOfRange):
		renderError(w, r, http.StatusNotFound, "error.not_found")
		return
	case expired(w, r, s, err):
		return
	default:
		flash(r, session.FlashError, "results.retry_failed")
	}
	redirect(w, r, fmt.Sprintf("/results#result-%d", index+1))
}

func (e *RetryEndpoint) Command(_ func() string) *cobra.Command { return nil }

// retryResult re-grades one item of the session's results, loading them
// first if this session has not seen them yet.
func retryResult(r *http.Request, s *session.Session, index int) (*results.Result, error) {
	logger := svcctx.LoggerFrom(r.Context())
	if !s.Results.Snapshot().Loaded {
		if err := s.Results.Load(r.Context(), s.Token()); err != nil && !errors.Is(err, results.ErrNoResults) {
			return nil, err
		}
	}

	logger.Info("retrying result", "session", s.ID, "index", index)
	res, err := s.Results.Retry(r.Context(), s.Token(), index)
	if err != nil {
		logger.Warn("retry failed", "session", s.ID, "index", index, "error", err)
		return nil, err
	}
	return res, nil
}

// ExportPDFEndpoint handles POST /results/pdf.
type ExportPDFEndpoint struct{}

var _ api.Endpoint = (*ExportPDFEndpoint)(nil)

func (e *ExportPDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/results/pdf", e.handler
}

func (e *ExportPDFEndpoint) RequiresSession() bool { return true }

func (e *ExportPDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	client := svcctx.GraderFrom(r.Context())
	if client == nil {
		http.Error(w, "grading client not initialized", http.StatusServiceUnavailable)
		return
	}
	logger := svcctx.LoggerFrom(r.Context())

	info, err := exportPDF(r, client, s)
	if err != nil {
		if expired(w, r, s, err) {
			return
		}
		logger.Error("pdf export failed", "session", s.ID, "error", err)
		flash(r, session.FlashError, "results.pdf_failed", errorMessage(err))
		redirect(w, r, "/results")
		return
	}

	s.SetPDF(info)
	logger.Info("pdf generated", "session", s.ID, "name", info.Name, "pages", info.Pages)
	redirect(w, r, "/results")
}

func (e *ExportPDFEndpoint) Command(_ func() string) *cobra.Command { return nil }

// exportPDF renders the current results as a report, downloads it and checks
// it is a readable PDF.
func exportPDF(r *http.Request, client *grader.Client, s *session.Session) (*report.Info, error) {
	snap := s.Results.Snapshot()
	if snap.Results.Len() == 0 {
		return nil, results.ErrNoResults
	}
	st := displayStudent(r, s.Student())
	name, err := client.GeneratePDF(r.Context(), s.Token(), grader.PDFRequest{
		StudentName:  st.Name,
		StudentClass: st.Class,
		Subject:      st.Subject,
		Results:      snap.Results.Values(),
	})
	if err != nil {
		return nil, err
	}

	dl, err := client.DownloadPDF(r.Context(), s.Token(), name)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}
	defer dl.Body.Close()
	return report.Inspect(name, dl.Body)
}

// PDFResultEndpoint handles GET /pdfresult.
type PDFResultEndpoint struct{}

var _ api.Endpoint = (*PDFResultEndpoint)(nil)

func (e *PDFResultEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/pdfresult", e.handler
}

func (e *PDFResultEndpoint) RequiresSession() bool { return true }

// PDFResultPage is the PDF summary page data.
type PDFResultPage struct {
	Student session.Student
	PDF     *report.Info
}

func (e *PDFResultEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	render(w, r, http.StatusOK, views.PagePDFResult, "pdf.title", PDFResultPage{
		Student: displayStudent(r, s.Student()),
		PDF:     s.PDF(),
	})
}

func (e *PDFResultEndpoint) Command(_ func() string) *cobra.Command { return nil }

// EmailEndpoint handles POST /results/email.
type EmailEndpoint struct{}

var _ api.Endpoint = (*EmailEndpoint)(nil)

func (e *EmailEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/results/email", e.handler
}

func (e *EmailEndpoint) RequiresSession() bool { return true }

func (e *EmailEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	sender := svcctx.EmailFrom(r.Context())

	form := EmailForm{
		Name:      strings.TrimSpace(r.PostFormValue("name")),
		Recipient: strings.TrimSpace(r.PostFormValue("recipient")),
		Grade:     strings.TrimSpace(r.PostFormValue("grade")),
	}
	fail := func(status int, key string, args ...any) {
		page := resultsPage(r, s)
		page.Email = form
		page.EmailError = tr(r, key, args...)
		render(w, r, status, views.PageResults, "results.title", page)
	}

	if sender == nil {
		http.Error(w, "email sender not initialized", http.StatusServiceUnavailable)
		return
	}

	msg := email.Message{Name: form.Name, Recipient: form.Recipient, Grade: form.Grade}
	if err := sender.Send(r.Context(), msg); err != nil {
		switch {
		case errors.Is(err, email.ErrNotConfigured):
			flash(r, session.FlashError, "email.not_configured")
			redirect(w, r, "/results")
		case errors.Is(err, email.ErrMissingFields):
			fail(http.StatusBadRequest, "email.missing_fields")
		case errors.Is(err, email.ErrInvalidRecipient):
			fail(http.StatusBadRequest, "email.invalid_recipient")
		default:
			svcctx.LoggerFrom(r.Context()).Error("email send failed", "session", s.ID, "error", err)
			fail(http.StatusBadGateway, "email.failed", err.Error())
		}
		return
	}

	svcctx.LoggerFrom(r.Context()).Info("grade emailed", "session", s.ID)
	flash(r, session.FlashSuccess, "email.sent", form.Recipient)
	redirect(w, r, "/results")
}

func (e *EmailEndpoint) Command(_ func() string) *cobra.Command { return nil }
