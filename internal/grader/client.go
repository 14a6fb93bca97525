// Package grader is the HTTP client for the SmartMarks grading backend:
// login, upload and grading, per-image retry, PDF export and text
// improvement analysis.
package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/smartmarks/smartmarks/internal/improvements"
	"github.com/smartmarks/smartmarks/internal/results"
)

// DefaultTimeout bounds a single backend call. Grading runs an LLM per image
// so uploads can take minutes.
const DefaultTimeout = 5 * time.Minute

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4096

// Config configures the grading client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to the grading backend. It is safe for concurrent use and can
// be reconfigured at runtime with SetConfig.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a grading client.
func NewClient(cfg Config) *Client {
	c := &Client{}
	c.SetConfig(cfg)
	return c
}

// SetConfig swaps the backend URL and timeout, e.g. after a config reload.
func (c *Client) SetConfig(cfg Config) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	c.httpClient = &http.Client{Timeout: timeout}
	c.logger = logger
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

func (c *Client) current() (string, *http.Client, *slog.Logger) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL, c.httpClient, c.logger
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	if err := c.postJSON(ctx, "", "/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response did not contain a token")
	}
	return resp.Token, nil
}

// Results fetches all stored results. An empty store is reported as
// results.ErrNoResults.
func (c *Client) Results(ctx context.Context, token string) ([]results.Result, error) {
	var resp resultsResponse
	if err := c.getJSON(ctx, token, "/get_results", &resp); err != nil {
		if IsNotFound(err) {
			return nil, results.ErrNoResults
		}
		return nil, err
	}
	return toResults(resp.Results), nil
}

// RetryImage re-grades a single uploaded image.
func (c *Client) RetryImage(ctx context.Context, token, image string) (results.Patch, error) {
	var resp retryResponse
	if err := c.postJSON(ctx, token, "/retry_image", retryRequest{Image: image}, &resp); err != nil {
		return results.Patch{}, err
	}
	return results.Patch{
		ExtractedText: resp.ExtractedText,
		ErrorTable:    toErrorEntries(resp.ErrorTable),
		MarkedText:    resp.MarkedText,
	}, nil
}

// GeneratePDF renders a graded report and returns the PDF's file name.
func (c *Client) GeneratePDF(ctx context.Context, token string, req PDFRequest) (string, error) {
	body := pdfRequest{
		StudentName:  req.StudentName,
		StudentClass: req.StudentClass,
		Subject:      req.Subject,
		Results:      toWire(req.Results),
	}
	var resp pdfResponse
	if err := c.postJSON(ctx, token, "/generate_pdf", body, &resp); err != nil {
		return "", err
	}
	name := FileName(resp.PDFPath)
	if name == "" {
		return "", fmt.Errorf("pdf response did not contain a path")
	}
	return name, nil
}

// Improvements requests complexity metrics and suggestions for text.
func (c *Client) Improvements(ctx context.Context, token, text string) (*improvements.Analysis, error) {
	var resp improvements.Response
	if err := c.postJSON(ctx, token, "/get_improvements", improvements.Request{Text: text}, &resp); err != nil {
		return nil, err
	}
	if resp.Text == "" {
		resp.Text = text
	}
	return improvements.Analyze(resp), nil
}

// ImprovementsPDF exports an analysis and returns the PDF's file name.
func (c *Client) ImprovementsPDF(ctx context.Context, token string, a *improvements.Analysis) (string, error) {
	var resp pdfResponse
	if err := c.postJSON(ctx, token, "/improvements_pdf", a.PDFRequest(), &resp); err != nil {
		return "", err
	}
	name := FileName(resp.PDFPath)
	if name == "" {
		return "", fmt.Errorf("pdf response did not contain a path")
	}
	return name, nil
}

// Download is a streamed file from the backend. The caller must close Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// DownloadPDF streams a generated PDF.
func (c *Client) DownloadPDF(ctx context.Context, token, name string) (*Download, error) {
	return c.download(ctx, token, "/download_pdf/", name)
}

// Image streams an uploaded image.
func (c *Client) Image(ctx context.Context, token, name string) (*Download, error) {
	return c.download(ctx, token, "/uploads/", name)
}

func (c *Client) download(ctx context.Context, token, prefix, name string) (*Download, error) {
	file := FileName(name)
	if file == "" {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	p := prefix + url.PathEscape(file)

	resp, err := c.do(ctx, token, http.MethodGet, p, "", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newAPIError(resp.StatusCode, p, body)
	}
	return &Download{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

// Health checks the backend is reachable. The backend has no dedicated
// health route, so any response below 500 counts as healthy.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, "", http.MethodGet, "/", "", nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

// WaitReady polls Health once per second until it succeeds or timeout elapses.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	attempts := uint(timeout.Seconds())
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		func() error {
			probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return c.Health(probeCtx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// FileName reduces a backend path such as "generated_pdfs/report.pdf" to its
// base name. It returns "" for names that do not refer to a file.
func FileName(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return ""
	}
	base := path.Base(p)
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	return base
}

func (c *Client) getJSON(ctx context.Context, token, p string, result any) error {
	resp, err := c.do(ctx, token, http.MethodGet, p, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return handleResponse(resp, p, result)
}

func (c *Client) postJSON(ctx context.Context, token, p string, body, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}
	resp, err := c.do(ctx, token, http.MethodPost, p, "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return handleResponse(resp, p, result)
}

func (c *Client) do(ctx context.Context, token, method, p, contentType string, body io.Reader) (*http.Response, error) {
	baseURL, httpClient, logger := c.current()
	if baseURL == "" {
		return nil, fmt.Errorf("grading backend URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+p, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Debug("backend request failed", "method", method, "path", p, "error", err)
		return nil, fmt.Errorf("request to %s failed: %w", p, err)
	}
	logger.Debug("backend request", "method", method, "path", p, "status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

func handleResponse(resp *http.Response, p string, result any) error {
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, p, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
