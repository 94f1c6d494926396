package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/genai"
	"github.com/conorfennell/studyset/internal/grading"
	"github.com/conorfennell/studyset/internal/quiz"
	"github.com/conorfennell/studyset/internal/srs"
	"github.com/conorfennell/studyset/internal/storage"
)

var (
	errBadRequest  = errors.New("bad request")
	errForbidden   = errors.New("only the owner may change this study set")
	errNoSession   = errors.New("session not found")
	errRateLimited = errors.New("too many generation requests")
)

// apiError is the body of every error response.
type apiError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
	Listing   string `json:"listing,omitempty"`
}

// classify maps an error to a status and error code.
func classify(err error) (int, string, bool) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, errNoSession):
		return http.StatusNotFound, "not_found", false
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden", false
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "rate_limited", true
	case errors.Is(err, errBadRequest),
		errors.Is(err, storage.ErrInvalidScore),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, srs.ErrInvalidRating):
		return http.StatusBadRequest, "invalid", false
	case errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, quiz.ErrAlreadyAnswered),
		errors.Is(err, quiz.ErrNotAnswered),
		errors.Is(err, quiz.ErrNotActive),
		errors.Is(err, quiz.ErrNotFinished),
		errors.Is(err, quiz.ErrAlreadyStarted),
		errors.Is(err, srs.ErrSessionNotActive):
		return http.StatusConflict, "conflict", false
	}

	// Grader failures wrap the genai error; the question stays open for retry.
	if errors.Is(err, grading.ErrGraderUnavailable) {
		return http.StatusBadGateway, "grader_unavailable", true
	}
	if kind, ok := genai.KindOf(err); ok {
		switch kind {
		case genai.KindQuota:
			return http.StatusTooManyRequests, string(kind), true
		case genai.KindUnsupported:
			return http.StatusUnsupportedMediaType, string(kind), false
		case genai.KindRejected:
			return http.StatusUnprocessableEntity, string(kind), false
		case genai.KindTimeout:
			return http.StatusGatewayTimeout, string(kind), true
		default:
			return http.StatusBadGateway, string(kind), true
		}
	}
	return http.StatusInternalServerError, "internal", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// writeError reports err to the client. Internal errors are logged and
// their details withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, retryable := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.requestLogger(r).Error("request failed", "error", err)
		msg = "internal server error"
	} else {
		s.requestLogger(r).Info("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, apiError{Error: msg, Code: code, Retryable: retryable})
}
