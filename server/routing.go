package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/teranos/tempo/logger"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-Id"

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Post("/", s.handleSubmitJob)
		r.Get("/{id}", s.handleGetJob)
		r.Get("/{id}/status", s.handleJobStatus)
		r.Post("/{id}/redo", s.handleRedoJob)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"http://localhost", "http://127.0.0.1"}
	}
	return s.opts.AllowedOrigins
}

// requestID reuses the caller's X-Request-Id or assigns a UUID, echoes it
// back and attaches it to the request context for logging.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.requestLog(r).Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"elapsed", time.Since(start))
	})
}
