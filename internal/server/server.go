// Package server is the HTTP daemon: session CRUD and injection, provider
// registry management, scheduler CRUD, middleware/context toggles,
// capability bundle activation, the OpenAI-compat chat-completions shim,
// and the WebSocket upgrade endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wopr-network/wopr/internal/canvas"
	"github.com/wopr-network/wopr/internal/contextpipeline"
	chain "github.com/wopr-network/wopr/internal/middleware"
	"github.com/wopr-network/wopr/internal/provider"
	"github.com/wopr-network/wopr/internal/queue"
	"github.com/wopr-network/wopr/internal/scheduler"
	"github.com/wopr-network/wopr/internal/security"
	"github.com/wopr-network/wopr/internal/sessionstore"
	"github.com/wopr-network/wopr/internal/wsfanout"
)

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         8177,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout: SSE and the WS upgrade stay open
	}
}

// Deps bundles every collaborator the router dispatches into.
type Deps struct {
	Store      *sessionstore.Store
	Log        *sessionstore.Log
	Queue      *queue.Manager
	Security   *security.Engine
	Middleware *chain.Chain
	Context    *contextpipeline.Pipeline
	Providers  *provider.Registry
	Credential *provider.CredentialStore
	Scheduler  *scheduler.Scheduler
	Canvas     *canvas.Board
	Hub        *wsfanout.Hub
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	deps    Deps
}

// New builds a Server with routes and middleware wired, ready to Start.
func New(cfg *Config, deps Deps) *Server {
	s := &Server{config: cfg, router: chi.NewRouter(), deps: deps}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start starts the HTTP server. It blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router, mainly for httptest-backed tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
