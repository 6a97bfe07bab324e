// Package server exposes a remote.Backend over a JSON REST API and serves the
// board's static front end.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/remote"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	backend   remote.Backend
	adapter   *remote.Adapter
	staticDir string
	logger    *zap.Logger
	router    *mux.Router
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStaticDir serves the files under dir at /. Empty disables static
// serving.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

func New(backend remote.Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.adapter = remote.NewAdapter(backend, remote.WithLogger(s.logger))
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/board", s.handleBoard).Methods(http.MethodGet)
	api.HandleFunc("/lists", s.handleLists).Methods(http.MethodGet)
	api.HandleFunc("/lists", s.handleCreateList).Methods(http.MethodPost)
	api.HandleFunc("/cards", s.handleCards).Methods(http.MethodGet)
	api.HandleFunc("/cards", s.handleCreateCard).Methods(http.MethodPost)
	api.HandleFunc("/cards/{id}", s.handleUpdateCard).Methods(http.MethodPatch)
	api.HandleFunc("/cards/{id}", s.handleDeleteCard).Methods(http.MethodDelete)
	api.HandleFunc("/cards/{id}/position", s.handleMoveCard).Methods(http.MethodPut)

	if s.staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Kanban server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("Kanban server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("["+r.Method+"] "+r.URL.Path,
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
