// Package web serves the study set JSON API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/cors"
	"github.com/yuin/goldmark"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/genai"
	"github.com/conorfennell/studyset/internal/grading"
	"github.com/conorfennell/studyset/internal/identity"
	"github.com/conorfennell/studyset/internal/quiz"
	"github.com/conorfennell/studyset/internal/srs"
	"github.com/conorfennell/studyset/internal/storage"
	"github.com/conorfennell/studyset/internal/sync"
)

// Generator produces study sets from material and grades open-ended answers.
// *genai.Client satisfies it.
type Generator interface {
	ProcessSourceMaterial(ctx context.Context, m genai.Material) (*domain.GeneratedPayload, error)
	grading.RubricGrader
}

// Options configures a Server.
type Options struct {
	AllowedOrigins    []string
	MaxUploadBytes    int64
	GeneratePerMinute float64
	GenerateBurst     int
	SessionTTL        time.Duration
	// LocalRoot is the directory local sources must live in. Empty disables
	// local sources over HTTP.
	LocalRoot string
	Sync      sync.Options
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db      *storage.DB
	gen     Generator
	grader  *grading.Dispatcher
	auth    *identity.Authenticator
	router  *http.ServeMux
	log     *slog.Logger
	opts    Options
	limiter *rateLimiter
	reviews *registry[*srs.Session]
	quizzes *registry[*quiz.Session]
	md      goldmark.Markdown
	clock   func() time.Time
	handler http.Handler
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, gen Generator, auth *identity.Authenticator, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}
	if opts.LocalRoot != "" {
		if abs, err := filepath.Abs(opts.LocalRoot); err == nil {
			opts.LocalRoot = abs
		}
	}

	s := &Server{
		db:      db,
		gen:     gen,
		grader:  grading.NewDispatcher(gen),
		auth:    auth,
		router:  http.NewServeMux(),
		log:     logger.With("component", "web"),
		opts:    opts,
		limiter: newRateLimiter(opts.GeneratePerMinute, opts.GenerateBurst),
		md:      goldmark.New(),
		clock:   time.Now,
	}
	s.reviews = newRegistry[*srs.Session](opts.SessionTTL, s.now)
	s.quizzes = newRegistry[*quiz.Session](opts.SessionTTL, s.now)
	s.routes()
	s.handler = s.logRequests(s.corsPolicy().Handler(s.router))
	return s
}

func (s *Server) now() time.Time {
	return s.clock()
}

func (s *Server) corsPolicy() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	})
}

// ServeHTTP implements the http.Handler interface. Requests pass through
// request logging and CORS before reaching the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /api/healthz", s.handleHealth)
	s.router.Handle("GET /api/me", s.authed(s.handleMe))

	// Study sets
	s.router.Handle("GET /api/studysets", s.authed(s.handleListStudySets))
	s.router.Handle("POST /api/studysets", s.authed(s.handleCreateStudySet))
	s.router.Handle("GET /api/studysets/{id}", s.authed(s.handleGetStudySet))
	s.router.Handle("DELETE /api/studysets/{id}", s.authed(s.handleDeleteStudySet))
	s.router.Handle("PUT /api/studysets/{id}/summary", s.authed(s.handleUpdateSummary))
	s.router.Handle("PUT /api/studysets/{id}/keywords/{kid}/score", s.authed(s.handleScoreKeyword))
	s.router.Handle("PUT /api/studysets/{id}/flashcards/{fid}", s.authed(s.handleEditFlashcard))
	s.router.Handle("GET /api/studysets/{id}/deck", s.authed(s.handleDeck))

	// Reviews
	s.router.Handle("POST /api/studysets/{id}/reviews", s.authed(s.handleStartReview))
	s.router.Handle("GET /api/reviews/{sid}", s.authed(s.handleGetReview))
	s.router.Handle("POST /api/reviews/{sid}/rate", s.authed(s.handleRate))

	// Quizzes
	s.router.Handle("POST /api/studysets/{id}/quizzes", s.authed(s.handleStartQuiz))
	s.router.Handle("GET /api/quizzes/{sid}", s.authed(s.handleGetQuiz))
	s.router.Handle("POST /api/quizzes/{sid}/answer", s.authed(s.handleAnswer))
	s.router.Handle("POST /api/quizzes/{sid}/next", s.authed(s.handleNextQuestion))
	s.router.Handle("POST /api/quizzes/{sid}/restart", s.authed(s.handleRestartQuiz))

	// Sources
	s.router.Handle("GET /api/sources", s.authed(s.handleListSources))
	s.router.Handle("POST /api/sources", s.authed(s.handleAddSource))
	s.router.Handle("DELETE /api/sources/{id}", s.authed(s.handleDeleteSource))
	s.router.Handle("POST /api/sync", s.authed(s.handleSync))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}
