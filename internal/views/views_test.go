package views

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartmarks/smartmarks/internal/i18n"
	"github.com/smartmarks/smartmarks/internal/session"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	catalog, err := i18n.Load()
	require.NoError(t, err)
	r, err := New(catalog, nil)
	require.NoError(t, err)
	return r
}

func TestSanitizeMarked(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"spelling highlight",
			`<span style="color:red;">Teh</span> cat`,
			`<span style="color: red">Teh</span> cat`,
		},
		{
			"grammar highlight",
			`She <span style="color:blue;">go</span> home`,
			`She <span style="color: blue">go</span> home`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(SanitizeMarked(tt.in)))
		})
	}
}

func TestSanitizeMarked_StripsUnsafe(t *testing.T) {
	for _, in := range []string{
		`ok<script>alert(1)</script>`,
		`<span style="background:url(javascript:alert(1))">ok</span>`,
		`<span onclick="alert(1)">ok</span>`,
		`<span style="color:expression(alert(1))">ok</span>`,
	} {
		out := string(SanitizeMarked(in))
		assert.Contains(t, out, "ok", in)
		assert.NotContains(t, out, "alert", in)
	}
}

func TestNew_Documents(t *testing.T) {
	r := newTestRenderer(t)

	for _, slug := range []string{"terms-of-service", "privacy-policy", "cookie-policy"} {
		doc, ok := r.Document(slug)
		require.True(t, ok, slug)
		assert.Contains(t, string(doc), "<h1>", slug)
	}
	doc, _ := r.Document("cookie-policy")
	assert.Contains(t, string(doc), "<table>")
	assert.Contains(t, string(doc), "smartmarks_session")

	_, ok := r.Document("missing")
	assert.False(t, ok)
}

func TestRender_Layout(t *testing.T) {
	r := newTestRenderer(t)
	st := session.NewStore(session.Config{})
	s := st.New()
	s.SetLanguage("de")
	s.AddFlash(session.FlashError, "Retry failed!")

	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageFeatures, r.NewPage(req, s, "nav.features", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `<html lang="de" class="dark">`)
	assert.Contains(t, body, "<title>Funktionen · SmartMarks</title>")
	assert.Contains(t, body, "Hauptfunktionen von SmartMarks")
	assert.Contains(t, body, `<div class="flash flash-error" role="alert">Retry failed!</div>`)
	assert.Contains(t, body, `href="/login"`)
	assert.Contains(t, body, `value="/features"`)
	assert.Empty(t, s.Flashes(), "rendering consumes flashes")
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Render(rec, http.StatusOK, "nope", r.NewPage(req, nil, "", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRender_EscapesText(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oops", nil)
	r.Render(rec, http.StatusNotFound, PageError, r.NewPage(req, nil, "error.not_found", "<b>bad</b>"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Page not found")
	assert.True(t, strings.Contains(body, "&lt;b&gt;bad&lt;/b&gt;"))
}
