// Package server exposes the job table over HTTP: read-only reporting
// endpoints plus job submission and redo.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse"
)

// Options configures the HTTP server
type Options struct {
	Addr           string
	AllowedOrigins []string
	Clock          func() time.Time // default time.Now; used for the default date
}

// Server serves the reporting API for one scheduler
type Server struct {
	scheduler *pulse.Scheduler
	opts      Options
	logger    *zap.SugaredLogger
	handler   http.Handler
}

// New creates a Server
func New(s *pulse.Scheduler, opts Options, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	srv := &Server{
		scheduler: s,
		opts:      opts,
		logger:    log.Named("server"),
	}
	srv.handler = srv.routes()
	return srv
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("HTTP server listening", logger.FieldAddress, s.opts.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "listen on %s", s.opts.Addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown HTTP server")
	}
	s.logger.Infow("HTTP server stopped")
	return nil
}

// requestLog returns the logger annotated with the request's ID.
func (s *Server) requestLog(r *http.Request) *zap.SugaredLogger {
	return logger.FromContext(r.Context(), s.logger)
}
