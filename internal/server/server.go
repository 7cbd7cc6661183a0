// Package server exposes the expense workflow as a JSON HTTP API.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/tripwallet/internal/rates"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves the API.
type Server struct {
	workflow *workflow.Workflow
	fetcher  rates.Fetcher
	logger   *slog.Logger
}

// New creates a Server. The workflow's store should be wrapped in
// ledger.Serialized since handlers run concurrently.
func New(wf *workflow.Workflow, fetcher rates.Fetcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{workflow: wf, fetcher: fetcher, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/rates/{code}", s.handleRate)
		r.Post("/convert", s.handleConvert)

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleRecord)
			r.Delete("/", s.handleReset)
			r.Delete("/last", s.handleUndoLast)
			r.Delete("/{id}", s.handleRemove)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// ListenAndServe serves on addr until ctx is canceled. A non-nil tlsConfig
// switches to HTTPS.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		TLSConfig:    tlsConfig,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if tlsConfig != nil {
			s.logger.Info("starting tripwallet API", "addr", "https://"+addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		s.logger.Info("starting tripwallet API", "addr", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
