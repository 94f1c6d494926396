package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/identity"
)

type loggerKey struct{}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logRequests tags every request with an id and logs its outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		logger := s.log.With("request_id", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger)))

		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// requestLogger returns the logger for r, including the user once known.
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	logger, ok := r.Context().Value(loggerKey{}).(*slog.Logger)
	if !ok {
		logger = s.log
	}
	if id, ok := identity.FromContext(r.Context()); ok {
		logger = logger.With("user_id", id.UID)
	}
	return logger
}

// authed requires an identity and mirrors the user's profile into storage.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		if err := s.db.UpsertUser(r.Context(), domain.User{ID: id.UID, DisplayName: id.Name, Email: id.Email}); err != nil {
			s.writeError(w, r, err)
			return
		}
		h(w, r)
	}))
}

// uid returns the caller's user id. Only valid behind authed.
func uid(r *http.Request) string {
	id, _ := identity.FromContext(r.Context())
	return id.UID
}
