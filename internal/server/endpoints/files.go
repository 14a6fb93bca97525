package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/grader"
	"github.com/smartmarks/smartmarks/internal/svcctx"
)

// PDFFileEndpoint handles GET /pdf/{name}, proxying a generated report.
// ?download=1 serves it as an attachment instead of inline.
type PDFFileEndpoint struct{}

var _ api.Endpoint = (*PDFFileEndpoint)(nil)

func (e *PDFFileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/pdf/{name}", e.handler
}

func (e *PDFFileEndpoint) RequiresSession() bool { return true }

func (e *PDFFileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	name := grader.FileName(r.PathValue("name"))
	if name == "" {
		http.NotFound(w, r)
		return
	}
	disposition := "inline"
	if r.URL.Query().Get("download") == "1" {
		disposition = "attachment"
	}
	proxyFile(w, r, func(c *grader.Client) (*grader.Download, error) {
		return c.DownloadPDF(r.Context(), s.Token(), name)
	}, "application/pdf", fmt.Sprintf("%s; filename=%q", disposition, name))
}

func (e *PDFFileEndpoint) Command(_ func() string) *cobra.Command { return nil }

// ImageEndpoint handles GET /images/{name}, proxying an uploaded image.
type ImageEndpoint struct{}

var _ api.Endpoint = (*ImageEndpoint)(nil)

func (e *ImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/images/{name}", e.handler
}

func (e *ImageEndpoint) RequiresSession() bool { return true }

func (e *ImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	name := grader.FileName(r.PathValue("name"))
	if name == "" {
		http.NotFound(w, r)
		return
	}
	proxyFile(w, r, func(c *grader.Client) (*grader.Download, error) {
		return c.Image(r.Context(), s.Token(), name)
	}, "", "")
}

func (e *ImageEndpoint) Command(_ func() string) *cobra.Command { return nil }

// proxyFile streams a backend download to w. A backend 404 becomes a plain
// 404 so the page can show its fallback.
func proxyFile(w http.ResponseWriter, r *http.Request, fetch func(*grader.Client) (*grader.Download, error), contentType, disposition string) {
	client := svcctx.GraderFrom(r.Context())
	if client == nil {
		http.Error(w, "grading client not initialized", http.StatusServiceUnavailable)
		return
	}

	dl, err := fetch(client)
	if err != nil {
		switch {
		case grader.IsNotFound(err):
			http.NotFound(w, r)
		case grader.IsUnauthorized(err):
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		default:
			svcctx.LoggerFrom(r.Context()).Error("file proxy failed", "path", r.URL.Path, "error", err)
			http.Error(w, "backend unavailable", http.StatusBadGateway)
		}
		return
	}
	defer dl.Body.Close()

	if contentType == "" {
		contentType = dl.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	if dl.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		svcctx.LoggerFrom(r.Context()).Debug("file proxy interrupted", "path", r.URL.Path, "error", err)
	}
}
