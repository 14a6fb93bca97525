package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/svcctx"
	"github.com/smartmarks/smartmarks/internal/views"
)

// LoginForm is the login page data.
type LoginForm struct {
	Email string
	Error string
}

// LoginPageEndpoint handles GET /login.
type LoginPageEndpoint struct{}

var _ api.Endpoint = (*LoginPageEndpoint)(nil)

func (e *LoginPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/login", e.handler
}

func (e *LoginPageEndpoint) RequiresSession() bool { return true }

func (e *LoginPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if s := session.From(r.Context()); s != nil && s.LoggedIn() {
		redirect(w, r, "/grade")
		return
	}
	render(w, r, http.StatusOK, views.PageLogin, "login.title", LoginForm{})
}

func (e *LoginPageEndpoint) Command(_ func() string) *cobra.Command { return nil }

// LoginEndpoint handles POST /login.
type LoginEndpoint struct{}

var _ api.Endpoint = (*LoginEndpoint)(nil)

func (e *LoginEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/login", e.handler
}

func (e *LoginEndpoint) RequiresSession() bool { return true }

func (e *LoginEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := session.From(r.Context())
	client := svcctx.GraderFrom(r.Context())
	if s == nil || client == nil {
		http.Error(w, "server not initialized", http.StatusServiceUnavailable)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		render(w, r, http.StatusBadRequest, views.PageLogin, "login.title",
			LoginForm{Email: email, Error: tr(r, "login.missing")})
		return
	}

	token, err := client.Login(r.Context(), email, password)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Info("login failed", "email", email, "error", err)
		render(w, r, http.StatusUnauthorized, views.PageLogin, "login.title",
			LoginForm{Email: email, Error: tr(r, "login.failed", errorMessage(err))})
		return
	}

	s.Login(email, token)
	redirect(w, r, "/grade")
}

func (e *LoginEndpoint) Command(_ func() string) *cobra.Command { return nil }

// LogoutEndpoint handles POST /logout.
type LogoutEndpoint struct{}

var _ api.Endpoint = (*LogoutEndpoint)(nil)

func (e *LogoutEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/logout", e.handler
}

func (e *LogoutEndpoint) RequiresSession() bool { return true }

func (e *LogoutEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if s := session.From(r.Context()); s != nil {
		s.Logout()
	}
	redirect(w, r, "/")
}

func (e *LogoutEndpoint) Command(_ func() string) *cobra.Command { return nil }

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the grading backend's bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// APILoginEndpoint handles POST /api/login.
type APILoginEndpoint struct{}

var _ api.Endpoint = (*APILoginEndpoint)(nil)

func (e *APILoginEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/login", e.handler
}

func (e *APILoginEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		Log in to the grading backend
//	@Description	Exchanges credentials for a bearer token used by the other /api routes
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	LoginResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/api/login [post]
func (e *APILoginEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	client := svcctx.GraderFrom(r.Context())
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "grading client not initialized")
		return
	}
	token, err := client.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func (e *APILoginEndpoint) Command(getServerURL func() string) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the grading backend and print the token",
		Long: `Log in with your SmartMarks account and print a bearer token.

Pass the token to the other api commands with --token or SMARTMARKS_TOKEN.
The password is read from the terminal when --password is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(os.Stderr, "Password: ")
				b, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = string(b)
			}
			client := api.NewClient(getServerURL())
			var resp LoginResponse
			if err := client.Post(cmd.Context(), "/api/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
