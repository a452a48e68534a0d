// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer between the components built by
// internal/app and HTTP. It decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → app.Build → server.New(app) → Start
//
// The server owns no stores itself; it borrows them from the App and the App
// is closed by whoever built it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/movieshelf/internal/app"
	"github.com/sakif/movieshelf/internal/auth"
	"github.com/sakif/movieshelf/internal/handler"
	"github.com/sakif/movieshelf/internal/middleware"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	app    *app.App
	port   int
	logger *slog.Logger
}

// New creates a Server for a and mounts every route.
func New(a *app.App) *Server {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		port:   a.Config.Port,
		logger: a.Logger,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                       → liveness
// POST   /auth/login                    → password login, issues a JWT
// POST   /auth/logout                   → clears the cookie
// GET    /api/collections               → list collections
// POST   /api/collections               → create a collection        [auth]
// GET    /api/collections/{id}          → one collection
// PATCH  /api/collections/{id}          → rename a collection        [auth]
// GET    /api/collections/{id}/movies   → stored memberships
// POST   /api/collections/{id}/movies   → save a movie               [auth]
// GET    /api/collections/{id}/view     → reconciled view
// GET    /api/library                   → library snapshot + version
// PATCH  /api/library/{id}              → expanded state
// GET    /api/movies/{id}               → catalog details
// GET    /api/events                    → websocket stream of movie_saved
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (logged by Logger)
// 2. RealIP: extracts the client IP from proxy headers
// 3. Recoverer: turns panics into 500s
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	a := s.app
	collections := handler.NewCollectionHandler(a.Collections, a.Memberships, a.Reconciler, a.Catalog, s.logger)
	movies := handler.NewMovieHandler(a.Catalog, s.logger)
	lib := handler.NewLibraryHandler(a.Library, s.logger)
	events := handler.NewEventsHandler(a.Bus, s.logger)
	authHandler := handler.NewAuthHandler(a.Auth, s.logger)

	// With auth disabled RequireAuth is a pass-through.
	requireAuth := auth.RequireAuth(a.Auth.Tokens())

	s.router.Get("/healthz", handler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", collections.HandleList)
			r.With(requireAuth).Post("/", collections.HandleCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", collections.HandleGet)
				r.With(requireAuth).Patch("/", collections.HandleRename)
				r.Get("/movies", collections.HandleListMovies)
				r.With(requireAuth).Post("/movies", collections.HandleSaveMovie)
				r.Get("/view", collections.HandleView)
			})
		})

		r.Get("/library", lib.HandleSnapshot)
		r.Patch("/library/{id}", lib.HandlePatch)

		r.Get("/movies/{id}", movies.HandleGet)
		r.Get("/events", events.HandleStream)
	})
}

// Start loads the library, serves until SIGINT/SIGTERM, then shuts down
// gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on ln until ctx is cancelled.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the library so no rebuild outlives the server
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// An empty library is still served if the store is down at boot; the
	// next save or ?reload=true fills it.
	if err := s.app.Library.Load(ctx); err != nil {
		s.logger.Warn("initial library load failed", slog.String("error", err.Error()))
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("store", s.app.Config.Store.Driver),
			slog.Bool("auth", s.app.Auth.Enabled()),
			slog.Bool("catalog", s.app.Catalog != nil),
		)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.app.Library.Close()
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
