package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartmarks/smartmarks/internal/results"
	"github.com/smartmarks/smartmarks/internal/testutil"
)

func newTestClient(t *testing.T) (*Client, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	return NewClient(Config{BaseURL: fb.URL() + "/", Timeout: 5 * time.Second}), fb
}

func TestClient_Login(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	token, err := c.Login(ctx, testutil.FakeEmail, testutil.FakePassword)
	require.NoError(t, err)
	assert.Equal(t, testutil.FakeToken, token)

	_, err = c.Login(ctx, testutil.FakeEmail, "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Wrong email or password")
}

func TestClient_Results(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		_, err := c.Results(ctx, testutil.FakeToken)
		assert.ErrorIs(t, err, results.ErrNoResults)
	})

	t.Run("maps error table keys", func(t *testing.T) {
		fb.SetResults(testutil.FakeResult{
			Image:         "a.jpg",
			ExtractedText: "Teh cat.",
			ErrorTable:    []testutil.FakeErrorRow{{IncorrectText: "Teh", CorrectText: "The", ErrorCategory: "Spelling"}},
			MarkedText:    "marked",
		})

		rs, err := c.Results(ctx, testutil.FakeToken)
		require.NoError(t, err)
		require.Len(t, rs, 1)
		assert.Equal(t, "a.jpg", rs[0].Image)
		assert.Equal(t, []results.ErrorEntry{{IncorrectText: "Teh", CorrectText: "The", ErrorCategory: "Spelling"}}, rs[0].ErrorTable)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := c.Results(ctx, "")
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "Token is missing!", apiErr.Message)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := c.Results(ctx, "nope")
		assert.True(t, IsUnauthorized(err))
		assert.Contains(t, err.Error(), "Token is invalid!")
	})
}

func TestClient_RetryImage(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()
	fb.SetResults(testutil.FakeResult{Image: "a.jpg", ExtractedText: "old"})
	fb.SetRetry("a.jpg", testutil.FakeResult{
		ExtractedText: "new",
		ErrorTable:    []testutil.FakeErrorRow{{IncorrectText: "go", CorrectText: "goes", ErrorCategory: "Grammar"}},
		MarkedText:    "new marked",
	})

	patch, err := c.RetryImage(ctx, testutil.FakeToken, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "new", patch.ExtractedText)
	assert.Equal(t, "new marked", patch.MarkedText)
	require.Len(t, patch.ErrorTable, 1)
	assert.Equal(t, "Grammar", patch.ErrorTable[0].ErrorCategory)

	_, err = c.RetryImage(ctx, testutil.FakeToken, "missing.jpg")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "File not found on server")

	fb.FailNext("/retry_image", 1)
	_, err = c.RetryImage(ctx, testutil.FakeToken, "a.jpg")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestClient_Upload(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	resp, err := c.Upload(ctx, testutil.FakeToken, Submission{
		StudentName:  "Ada",
		StudentClass: "5b",
		Subject:      "English",
		Images: []Image{
			{Filename: "page1.png", ContentType: "image/png", Body: strings.NewReader("png-1")},
			{Filename: "../page2.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpg-2")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", resp.StudentName)
	assert.Equal(t, "5b", resp.StudentClass)
	assert.Equal(t, "English", resp.Subject)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Spelling", resp.Results[0].ErrorTable[0].ErrorCategory)

	up := fb.LastUpload()
	require.NotNil(t, up)
	assert.Equal(t, []string{"page1.png", "page2.jpg"}, up.Filenames)
	assert.Equal(t, []string{"image/png", "image/jpeg"}, up.ContentTypes)

	// Uploaded images are served back.
	dl, err := c.Image(ctx, testutil.FakeToken, resp.Results[0].Image)
	require.NoError(t, err)
	defer dl.Body.Close()
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-1", string(data))

	t.Run("no images", func(t *testing.T) {
		_, err := c.Upload(ctx, testutil.FakeToken, Submission{StudentName: "Ada"})
		assert.Error(t, err)
	})

	t.Run("unauthorized", func(t *testing.T) {
		_, err := c.Upload(ctx, "", Submission{Images: []Image{{Filename: "a.png", Body: strings.NewReader("x")}}})
		assert.True(t, IsUnauthorized(err))
	})
}

func TestClient_GeneratePDF(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	name, err := c.GeneratePDF(ctx, testutil.FakeToken, PDFRequest{
		StudentName:  "Ada",
		StudentClass: "5b",
		Subject:      "English",
		Results: []results.Result{
			{Image: "a.jpg", ExtractedText: "Teh", ErrorTable: []results.ErrorEntry{{IncorrectText: "Teh", CorrectText: "The", ErrorCategory: "Spelling"}}},
			{Image: "b.jpg", ExtractedText: "ok"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "report_1.pdf", name, "generated_pdfs/ prefix is stripped")

	sent := fb.LastPDFRequest()
	rs := sent["results"].([]any)
	first := rs[0].(map[string]any)
	row := first["errorTable"].([]any)[0].(map[string]any)
	assert.Equal(t, "Teh", row["Incorrect Text"], "rows travel in the backend's key format")
	second := rs[1].(map[string]any)
	assert.Equal(t, []any{}, second["errorTable"])

	dl, err := c.DownloadPDF(ctx, "", name)
	require.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, "application/pdf", dl.ContentType)
	data, _ := io.ReadAll(dl.Body)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = c.DownloadPDF(ctx, "", "nope.pdf")
	assert.True(t, IsNotFound(err))

	_, err = c.GeneratePDF(ctx, testutil.FakeToken, PDFRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "No extracted text provided", apiErr.Message)
}

func TestClient_Improvements(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	a, err := c.Improvements(ctx, testutil.FakeToken, "This is a good text")
	require.NoError(t, err)
	assert.Equal(t, 5, a.Metrics.WordCount)
	require.NoError(t, a.ParseErr)
	require.True(t, a.HasSuggestions())
	assert.Equal(t, []string{"Clear topic"}, a.Suggestions.Strengths)
	assert.Equal(t, "excellent", a.Suggestions.Vocabulary[0].Suggestions[0])

	name, err := c.ImprovementsPDF(ctx, testutil.FakeToken, a)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "improvement_"))

	_, err = c.Improvements(ctx, "", "text")
	assert.True(t, IsUnauthorized(err))
}

func TestClient_HealthAndWaitReady(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	// The backend has no route for "/", a 404 still proves it is up.
	require.NoError(t, c.Health(ctx))
	require.NoError(t, c.WaitReady(ctx, 2*time.Second))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	c.SetConfig(Config{BaseURL: down.URL, Timeout: time.Second})
	assert.Equal(t, down.URL, c.BaseURL())
	assert.Error(t, c.Health(ctx))
	assert.Error(t, c.WaitReady(ctx, time.Second))
}

func TestClient_Unconfigured(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Results(context.Background(), "tok")
	assert.Error(t, err)
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"message": "Token has expired!"}`, "Token has expired!"},
		{"error field", `{"error": "No results found"}`, "No results found"},
		{"both fields", `{"error": "Failed to generate PDF", "message": "disk full"}`, "Failed to generate PDF: disk full"},
		{"plain text", "Internal Server Error\n", "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(500, "/x", []byte(tt.body))
			assert.Equal(t, tt.want, err.Message)
		})
	}

	wrapped := errors.Join(errors.New("context"), &APIError{StatusCode: 401})
	assert.True(t, IsUnauthorized(wrapped))
	assert.False(t, IsNotFound(wrapped))
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"generated_pdfs/report.pdf": "report.pdf",
		"report.pdf":                "report.pdf",
		`generated_pdfs\report.pdf`: "report.pdf",
		"":                          "",
		"..":                        "",
		"/":                         "",
		"a/b/../c.png":              "c.png",
	}
	for in, want := range tests {
		assert.Equal(t, want, FileName(in), in)
	}
}

func TestWireRoundTrip(t *testing.T) {
	in := []results.Result{{Image: "a.jpg", ExtractedText: "x", ErrorTable: []results.ErrorEntry{{IncorrectText: "a", CorrectText: "b", ErrorCategory: "Grammar"}}}}
	data, err := json.Marshal(toWire(in))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Error Category":"Grammar"`)

	var back []wireResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, in, toResults(back))
}
