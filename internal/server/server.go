package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/backend"
	"github.com/smartmarks/smartmarks/internal/config"
	"github.com/smartmarks/smartmarks/internal/email"
	"github.com/smartmarks/smartmarks/internal/grader"
	"github.com/smartmarks/smartmarks/internal/home"
	"github.com/smartmarks/smartmarks/internal/i18n"
	"github.com/smartmarks/smartmarks/internal/server/endpoints"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/svcctx"
	"github.com/smartmarks/smartmarks/internal/views"
)

// SweepInterval is how often expired sessions are dropped.
const SweepInterval = 10 * time.Minute

// Server is the SmartMarks HTTP front-end.
// When the backend is managed it starts the grading container on Start and
// stops it on shutdown.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	manager    *backend.DockerManager
	grader     *grader.Client
	sessions   *session.Store
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 3000)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the smartmarks home directory
	Home *home.Dir
	// Managed runs the grading backend as a local Docker container
	Managed bool
	// DockerConfig holds the managed container settings
	DockerConfig backend.DockerConfig
	// SwaggerSpecPath overrides where swagger.json is read from
	SwaggerSpecPath string
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	appCfg := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = appCfg.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = appCfg.Server.Port
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	if cfg.Managed {
		manager, err := backend.NewDockerManager(cfg.DockerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend manager: %w", err)
		}
		s.manager = manager
	}

	s.grader = grader.NewClient(s.graderConfig(appCfg))
	sender := email.NewSender(appCfg.ToEmailConfig())

	catalog, err := i18n.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	renderer, err := views.New(catalog, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s.sessions = session.NewStore(session.Config{
		TTL:             appCfg.SessionTTL(),
		Secure:          appCfg.Server.CookieSecure,
		DefaultLanguage: catalog.Normalize(appCfg.UI.DefaultLanguage),
		DefaultTheme:    appCfg.UI.DefaultTheme,
		Backend:         s.grader,
		Logger:          cfg.Logger,
	})

	// Backend URL and mail credentials follow config edits; session
	// defaults only apply at startup.
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		s.grader.SetConfig(s.graderConfig(c))
		sender.SetConfig(c.ToEmailConfig())
		cfg.Logger.Info("backend and email settings reloaded from config")
	})

	s.services = &svcctx.Services{
		Grader:   s.grader,
		Sessions: s.sessions,
		Views:    renderer,
		Email:    sender,
		Backend:  s.manager,
		Config:   cfg.ConfigManager,
		Logger:   cfg.Logger,
		Home:     cfg.Home,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		Manager:         s.manager,
		SwaggerSpecPath: cfg.SwaggerSpecPath,
	}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.withSession)
	s.handler = s.withServices(s.withLogging(mux))

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Grading and PDF export block on the backend for minutes.
		WriteTimeout: grader.DefaultTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// graderConfig points the grading client at the managed container when
// there is one, otherwise at the configured URL.
func (s *Server) graderConfig(c *config.Config) grader.Config {
	gc := c.ToGraderConfig()
	gc.Logger = s.logger
	if s.manager != nil {
		gc.BaseURL = s.manager.URL()
	}
	return gc
}

// Start starts the backend (when managed) and the HTTP server.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer s.setNotRunning()

	if s.manager != nil {
		if err := s.startBackend(ctx); err != nil {
			s.closeBackend()
			return err
		}
	} else if wait := s.configMgr.Get().Backend.WaitSeconds; wait > 0 {
		s.logger.Info("waiting for grading backend", "url", s.grader.BaseURL(), "timeout", wait)
		if err := s.grader.WaitReady(ctx, time.Duration(wait)*time.Second); err != nil {
			return fmt.Errorf("grading backend not ready: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr, "backend", s.grader.BaseURL())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.sessions.Run(gctx, SweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			s.logger.Info("shutdown signal received")
		}
		return s.shutdown()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (s *Server) startBackend(ctx context.Context) error {
	if err := s.manager.ValidateExisting(ctx); err != nil {
		return fmt.Errorf("existing backend container incompatible: %w", err)
	}

	s.logger.Info("starting grading backend", "container", s.manager.ContainerName())
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start grading backend: %w", err)
	}

	if err := s.grader.Health(ctx); err != nil {
		if stopErr := s.manager.Stop(context.Background()); stopErr != nil {
			s.logger.Error("grading backend stop error", "error", stopErr)
		}
		return fmt.Errorf("grading backend health check failed: %w", err)
	}
	s.logger.Info("grading backend is ready", "url", s.manager.URL())
	return nil
}

// shutdown performs graceful shutdown of the HTTP server and managed backend.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.manager != nil {
		if err := s.stopBackend(); err != nil {
			s.logger.Error("grading backend stop error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) stopBackend() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("stopping grading backend")
	err := s.manager.Stop(ctx)
	s.closeBackend()
	return err
}

func (s *Server) closeBackend() {
	if err := s.manager.Close(); err != nil {
		s.logger.Error("backend manager close error", "error", err)
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wrapped HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sessions returns the session store.
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

// Grader returns the grading backend client.
func (s *Server) Grader() *grader.Client {
	return s.grader
}

// Registry returns the endpoint registry.
func (s *Server) Registry() *api.Registry {
	return s.endpointRegistry
}
