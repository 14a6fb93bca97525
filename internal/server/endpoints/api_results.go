package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/grader"
	"github.com/smartmarks/smartmarks/internal/improvements"
	"github.com/smartmarks/smartmarks/internal/results"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/svcctx"
)

// TokenEnv is read by the api commands when --token is not given.
const TokenEnv = "SMARTMARKS_TOKEN"

// bearerSession resolves the API client's session from its bearer token.
// It writes a 401 and returns nil when there is none.
func bearerSession(w http.ResponseWriter, r *http.Request) *session.Session {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return nil
	}
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "sessions not initialized")
		return nil
	}
	return sessions.ForToken(strings.TrimSpace(token))
}

// writeSessionError is writeBackendError for bearer clients. A token the
// backend rejects loses its session.
func writeSessionError(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	if grader.IsUnauthorized(err) {
		if sessions := svcctx.SessionsFrom(r.Context()); sessions != nil {
			sessions.Delete(s.ID)
		}
	}
	writeBackendError(w, err)
}

// writeBackendError maps a grading backend failure to a JSON error.
func writeBackendError(w http.ResponseWriter, err error) {
	var apiErr *grader.APIError
	switch {
	case errors.Is(err, results.ErrRetryInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, results.ErrIndexOutOfRange), errors.Is(err, results.ErrNoResults):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, results.ErrMissingImage), errors.Is(err, results.ErrStaleResult):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		writeError(w, apiErr.StatusCode, apiErr.Message)
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// tokenFlag binds --token, defaulting to $SMARTMARKS_TOKEN.
func tokenFlag(cmd *cobra.Command, token *string) {
	cmd.Flags().StringVar(token, "token", os.Getenv(TokenEnv), "Bearer token from 'api login' (env "+TokenEnv+")")
}

// ResultsResponse lists the graded results of an API client.
type ResultsResponse struct {
	Results []results.Result `json:"results"`
	// Retrying is the index being retried, if any.
	Retrying *int `json:"retrying,omitempty"`
}

// APIResultsEndpoint handles GET /api/results.
type APIResultsEndpoint struct{}

var _ api.Endpoint = (*APIResultsEndpoint)(nil)

func (e *APIResultsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/results", e.handler
}

func (e *APIResultsEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		List graded results
//	@Description	Loads the caller's results from the grading backend (?refresh=1 reloads)
//	@Tags			results
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	ResultsResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Router			/api/results [get]
func (e *APIResultsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := bearerSession(w, r)
	if s == nil {
		return
	}
	if !s.Results.Snapshot().Loaded || r.URL.Query().Get("refresh") == "1" {
		if err := s.Results.Load(r.Context(), s.Token()); err != nil && !errors.Is(err, results.ErrNoResults) {
			writeSessionError(w, r, s, err)
			return
		}
	}

	snap := s.Results.Snapshot()
	resp := ResultsResponse{Results: snap.Results.Values()}
	if resp.Results == nil {
		resp.Results = []results.Result{}
	}
	if snap.Active >= 0 {
		active := snap.Active
		resp.Retrying = &active
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *APIResultsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token string
	var refresh bool
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List graded results",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/results"
			if refresh {
				path += "?refresh=1"
			}
			client := api.NewClient(getServerURL()).WithToken(token)
			var resp ResultsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	tokenFlag(cmd, &token)
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Reload results from the grading backend")
	return cmd
}

// RetryResponse is the re-graded result.
type RetryResponse struct {
	Index  int            `json:"index"`
	Result results.Result `json:"result"`
}

// APIRetryEndpoint handles POST /api/results/{index}/retry.
type APIRetryEndpoint struct{}

var _ api.Endpoint = (*APIRetryEndpoint)(nil)

func (e *APIRetryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/results/{index}/retry", e.handler
}

func (e *APIRetryEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		Retry one result
//	@Description	Re-runs grading for the image at index; only one retry may run at a time
//	@Tags			results
//	@Produce		json
//	@Security		BearerAuth
//	@Param			index	path		int	true	"Zero-based result index"
//	@Success		200		{object}	RetryResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/results/{index}/retry [post]
func (e *APIRetryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}
	s := bearerSession(w, r)
	if s == nil {
		return
	}

	res, err := retryResult(r, s, index)
	if err != nil {
		writeSessionError(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, RetryResponse{Index: index, Result: *res})
}

func (e *APIRetryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "retry <index>",
		Short: "Retry grading of one result (index as listed by 'api results', from 0)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}
			client := api.NewClient(getServerURL()).WithToken(token)
			var resp RetryResponse
			if err := client.Post(cmd.Context(), fmt.Sprintf("/api/results/%d/retry", index), nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	tokenFlag(cmd, &token)
	return cmd
}

// ImproveRequest is the body of POST /api/improvements.
type ImproveRequest struct {
	Text string `json:"text"`
}

// ImproveResponse is a text analysis.
type ImproveResponse struct {
	Text        string                    `json:"text"`
	Metrics     improvements.Metrics      `json:"metrics"`
	Suggestions *improvements.Suggestions `json:"suggestions,omitempty"`
	Warning     string                    `json:"warning,omitempty"`
}

// APIImprovementsEndpoint handles POST /api/improvements.
type APIImprovementsEndpoint struct{}

var _ api.Endpoint = (*APIImprovementsEndpoint)(nil)

func (e *APIImprovementsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/improvements", e.handler
}

func (e *APIImprovementsEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		Analyze text
//	@Description	Returns complexity metrics and writing suggestions for a text
//	@Tags			improvements
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		ImproveRequest	true	"Text to analyze"
//	@Success		200		{object}	ImproveResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/improvements [post]
func (e *APIImprovementsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ImproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if improvements.Blank(req.Text) {
		writeError(w, http.StatusBadRequest, "Please enter some text to analyze")
		return
	}
	s := bearerSession(w, r)
	if s == nil {
		return
	}
	client := svcctx.GraderFrom(r.Context())
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "grading client not initialized")
		return
	}

	a, err := client.Improvements(r.Context(), s.Token(), req.Text)
	if err != nil {
		writeSessionError(w, r, s, err)
		return
	}
	s.SetAnalysis(a)

	resp := ImproveResponse{Text: a.Text, Metrics: a.Metrics, Suggestions: a.Suggestions}
	if a.ParseErr != nil {
		resp.Warning = improvements.ErrMalformed.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *APIImprovementsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token, file string
	cmd := &cobra.Command{
		Use:   "improve [text]",
		Short: "Analyze a text and print improvement suggestions",
		Long: `Analyze a text and print complexity metrics and suggestions.

The text is taken from the argument, from --file, or from stdin with --file -.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, file)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL()).WithToken(token)
			var resp ImproveResponse
			if err := client.Post(cmd.Context(), "/api/improvements", ImproveRequest{Text: text}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	tokenFlag(cmd, &token)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the text from a file (- for stdin)")
	return cmd
}

func readText(args []string, file string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case file == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("no text given: pass it as an argument or use --file")
	}
}
