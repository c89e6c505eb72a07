// Package server sets up the HTTP server, router, and all route
// definitions — the wiring layer that assembles repositories, the intra
// client, the sync service and the handlers into one dependency graph.
//
// COMPOSITION ROOT:
// Everything is created in New/setupRoutes, nowhere else. Handlers never
// touch the database directly; the sync service never touches HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/intra-rank/internal/handler"
	"github.com/sakif/intra-rank/internal/intra"
	"github.com/sakif/intra-rank/internal/middleware"
	sqliteRepo "github.com/sakif/intra-rank/internal/repository/sqlite"
	"github.com/sakif/intra-rank/internal/sync"
)

// Config holds server configuration, loaded in cmd/server from the
// environment.
type Config struct {
	Port         int
	DBPath       string
	IntraBaseURL string
	ClientID     string        // OAuth app credentials for the refresh exchange
	ClientSecret string        //
	ProbeUserID  int           // user fetched to validate caller tokens
	Campuses     []int         // campus ids covered by every sync run, in order
	LeaseTTL     time.Duration // sync guard lease
	SyncInterval time.Duration // 0 disables the scheduled service-token sync
}

// Server owns the router, the database connection and the background
// sync plumbing. The DB is closed during graceful shutdown.
type Server struct {
	router    *chi.Mux
	config    Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	syncSvc   *sync.Service
	refresher *intra.Refresher
}

// New creates a Server with the whole dependency chain wired:
// sqlite.DB → intra.Client/Refresher → sync.Service → handlers → routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetLeaseTTL(cfg.LeaseTTL)

	client := intra.NewClient(cfg.IntraBaseURL, cfg.ProbeUserID, logger)
	refresher := intra.NewRefresher(db, client, cfg.ClientID, cfg.ClientSecret, logger)
	syncSvc := sync.NewService(client, db, db, cfg.Campuses, logger)

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		syncSvc:   syncSvc,
		refresher: refresher,
	}

	s.setupRoutes(client)

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /healthz             → liveness probe
// GET  /metrics             → prometheus metrics
// GET  /api/users           → cohort ranking + async sync trigger (Bearer, wildcard CORS)
// GET  /api/user            → single user lookup (Bearer, wildcard CORS)
// GET  /api/check-update    → latest extension update notice (intra-origin CORS)
//
// The OPTIONS routes exist so preflights match a pattern and reach the
// CORS middleware, which answers them without calling the handler.
func (s *Server) setupRoutes(client *intra.Client) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	userHandler := handler.NewUserHandler(s.db, s.db, s.syncSvc, s.logger)
	updateHandler := handler.NewUpdateHandler(s.db, s.logger)

	noop := func(http.ResponseWriter, *http.Request) {}

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.CORSWildcard)
			r.Options("/users", noop)
			r.Options("/user", noop)

			r.Group(func(r chi.Router) {
				r.Use(handler.RequireBearer(client.Validate))
				r.Get("/users", userHandler.HandleCohort)
				r.Get("/user", userHandler.HandleLookup)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.CORSIntraOnly)
			r.Options("/check-update", noop)
			r.Get("/check-update", updateHandler.HandleCheck)
		})
	})
}

// Start starts the HTTP server, the optional scheduled sync, and handles
// graceful shutdown: stop accepting connections, drain in-flight requests
// for up to 30 seconds, then close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("intra", s.config.IntraBaseURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	stopScheduled := make(chan struct{})
	if s.config.SyncInterval > 0 {
		go s.runScheduledSync(stopScheduled)
	}

	select {
	case err := <-serverErrors:
		close(stopScheduled)
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		close(stopScheduled)
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// runScheduledSync periodically refreshes the service token and triggers
// a sync run with it — the path that keeps the mirror warm even when no
// extension user has loaded a page in a while.
//
// EnsureValid fails closed: on any token problem the tick is skipped and
// the next one tries again. The guard inside Trigger makes overlapping
// with a request-triggered run impossible.
func (s *Server) runScheduledSync(stop <-chan struct{}) {
	ticker := time.NewTicker(s.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			token, err := s.refresher.EnsureValid(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("scheduled sync skipped: no valid service token",
					slog.String("error", err.Error()),
				)
				continue
			}
			s.syncSvc.Trigger(context.Background(), token)
		}
	}
}
