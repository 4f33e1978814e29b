package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitelimit/internal/enforce"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/goodtune/sitelimit/internal/surface"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	FlushInterval  time.Duration
	IdleThreshold  time.Duration
}

// Dispatcher runs mutations on the daemon event loop.
type Dispatcher interface {
	Submit(ctx context.Context, sig usage.Signal) error
	Recheck(ctx context.Context, domain string) (*enforce.Status, error)
	Session(ctx context.Context) (usage.State, usage.Session, error)
}

// Deps holds the components the API routes are served from.
type Deps struct {
	Dispatcher Dispatcher
	Controller *enforce.Controller
	Reporter   *usage.Reporter
	Limits     storage.LimitStore
	Categories storage.CategoryStore
	Surfaces   *surface.Registry
}

// Server is the host-facing HTTP API.
type Server struct {
	config   Config
	router   *gin.Engine
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	// Suppress gin's debug route dump, requests are logged by our middleware.
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  cfg,
		router:  gin.New(),
		logger:  logger.With().Str("component", "api").Logger(),
		closing: make(chan struct{}),
	}

	s.router.Use(gin.Recovery())
	s.setupRoutes(deps)

	// No write timeout: surface event streams stay open indefinitely.
	s.server = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop closes open event streams and shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")
	s.closeOnce.Do(func() { close(s.closing) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
