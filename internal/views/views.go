// Package views renders the server-side HTML pages.
package views

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/smartmarks/smartmarks/internal/i18n"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/web"
)

// Page names.
const (
	PageHome         = "home"
	PageFeatures     = "features"
	PageLegal        = "legal"
	PageLogin        = "login"
	PageGrade        = "grade"
	PageResults      = "results"
	PagePDFResult    = "pdfresult"
	PageImprovements = "improvements"
	PageError        = "error"
)

var pages = []string{
	PageHome, PageFeatures, PageLegal, PageLogin, PageGrade,
	PageResults, PagePDFResult, PageImprovements, PageError,
}

// Page is the data every template receives.
type Page struct {
	Title     string
	T         i18n.Translator
	Theme     string
	Languages []i18n.Language
	LoggedIn  bool
	Email     string
	Flashes   []session.Flash
	// Path is the current URL path, used to return after preference changes.
	Path string
	Data any
}

// Renderer executes the embedded templates.
type Renderer struct {
	catalog   *i18n.Catalog
	templates map[string]*template.Template
	documents map[string]template.HTML
	logger    *slog.Logger
}

// New parses all templates and renders the Markdown documents.
func New(catalog *i18n.Catalog, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tfs, err := web.TemplatesFS()
	if err != nil {
		return nil, fmt.Errorf("templates not available: %w", err)
	}
	cfs, err := web.ContentFS()
	if err != nil {
		return nil, fmt.Errorf("content not available: %w", err)
	}

	r := &Renderer{
		catalog:   catalog,
		templates: make(map[string]*template.Template, len(pages)),
		logger:    logger,
	}

	base, err := template.New("layout.html").Funcs(funcs()).ParseFS(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	for _, name := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		t, err := clone.ParseFS(tfs, name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		r.templates[name] = t
	}

	if r.documents, err = renderDocuments(cfs); err != nil {
		return nil, err
	}
	return r, nil
}

// Catalog returns the translation catalog.
func (r *Renderer) Catalog() *i18n.Catalog {
	return r.catalog
}

// Document returns a rendered Markdown document by slug, e.g. "cookie-policy".
func (r *Renderer) Document(slug string) (template.HTML, bool) {
	doc, ok := r.documents[slug]
	return doc, ok
}

// NewPage builds the common page data for a request's session.
func (r *Renderer) NewPage(req *http.Request, s *session.Session, title string, data any) *Page {
	p := &Page{
		Title:     title,
		T:         r.catalog.For(i18n.Fallback),
		Theme:     session.ThemeDark,
		Languages: r.catalog.Languages(),
		Path:      req.URL.Path,
		Data:      data,
	}
	if s != nil {
		p.T = r.catalog.For(s.Language())
		p.Theme = s.Theme()
		p.LoggedIn = s.LoggedIn()
		p.Email = s.Email()
		p.Flashes = s.Flashes()
	}
	if p.Title != "" {
		p.Title = p.T.T(p.Title)
	}
	return p
}

// Render executes page name into w with the given status. Output is buffered
// so a template error never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p *Page) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("unknown template", "name", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"marked":     SanitizeMarked,
		"pathEscape": url.PathEscape,
		"join":       strings.Join,
		"number": func(f float64) string {
			return strconv.FormatFloat(f, 'f', -1, 64)
		},
	}
}

func renderDocuments(cfs fs.FS) (map[string]template.HTML, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	entries, err := fs.ReadDir(cfs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	docs := make(map[string]template.HTML)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".md" {
			continue
		}
		src, err := fs.ReadFile(cfs, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		var buf bytes.Buffer
		if err := md.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", e.Name(), err)
		}
		docs[strings.TrimSuffix(e.Name(), ".md")] = template.HTML(buf.String())
	}
	return docs, nil
}
