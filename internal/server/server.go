// Package server exposes the task board, the chat assistant and ingestion
// over a JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/agent"
	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/chat"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/prompt"
	"github.com/imkarma/logiri/internal/store"
)

// Chatter runs one assistant turn.
type Chatter interface {
	Ask(ctx context.Context, user prompt.User, history []agent.Message) (*chat.Reply, error)
}

// Ingester runs the ingestion pipeline for one source.
type Ingester interface {
	Run(ctx context.Context, src store.Source) (*store.IngestRun, error)
}

// Server holds the API dependencies. chat may be nil when no assistant is
// configured; the chat route then answers 503.
type Server struct {
	cfg    *config.Config
	store  *store.Store
	board  *board.Service
	chat   Chatter
	ingest Ingester
	log    zerolog.Logger
}

// New creates an API server.
func New(cfg *config.Config, s *store.Store, b *board.Service, c Chatter, in Ingester, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, store: s, board: b, chat: c, ingest: in, log: log}
}

// Handler returns the router with middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the API routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Post("/", s.handleCreateTask)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Post("/status", s.handleStatus)
			r.Post("/assign", s.handleAssign)
			r.Post("/log-time", s.handleLogTime)
			r.Post("/complete", s.handleComplete)
			r.Post("/verify", s.handleVerify)
			r.Get("/events", s.handleEvents)
		})
	})

	r.Get("/api/rechecks", s.handleRechecks)
	r.Get("/api/rechecks/due", s.handleRechecksDue)
	r.Get("/api/workload", s.handleWorkload)
	r.Get("/api/dashboard", s.handleDashboard)

	r.Post("/api/chat", s.handleChat)

	r.Post("/api/ingest/{source}", s.handleIngest)
	r.Get("/api/ingest/runs", s.handleIngestRuns)
	r.Get("/api/snapshots", s.handleInventory)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
