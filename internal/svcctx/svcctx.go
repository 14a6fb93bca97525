// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/smartmarks/smartmarks/internal/backend"
	"github.com/smartmarks/smartmarks/internal/config"
	"github.com/smartmarks/smartmarks/internal/email"
	"github.com/smartmarks/smartmarks/internal/grader"
	"github.com/smartmarks/smartmarks/internal/home"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/views"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Grader   *grader.Client
	Sessions *session.Store
	Views    *views.Renderer
	Email    *email.Sender
	Backend  *backend.DockerManager // nil unless the backend is managed
	Config   *config.Manager
	Logger   *slog.Logger
	Home     *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// GraderFrom extracts the grading backend client from context.
func GraderFrom(ctx context.Context) *grader.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Grader
	}
	return nil
}

// SessionsFrom extracts the session store from context.
func SessionsFrom(ctx context.Context) *session.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sessions
	}
	return nil
}

// ViewsFrom extracts the page renderer from context.
func ViewsFrom(ctx context.Context) *views.Renderer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Views
	}
	return nil
}

// EmailFrom extracts the grade mailer from context.
func EmailFrom(ctx context.Context) *email.Sender {
	if s := ServicesFrom(ctx); s != nil {
		return s.Email
	}
	return nil
}

// BackendFrom extracts the managed backend container from context.
func BackendFrom(ctx context.Context) *backend.DockerManager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Backend
	}
	return nil
}

// ConfigFrom extracts the current configuration from context.
// Returns the defaults when no config manager is attached.
func ConfigFrom(ctx context.Context) *config.Config {
	if s := ServicesFrom(ctx); s != nil && s.Config != nil {
		if cfg := s.Config.Get(); cfg != nil {
			return cfg
		}
	}
	return config.DefaultConfig()
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
