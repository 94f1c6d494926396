package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/genai"
	"github.com/conorfennell/studyset/internal/knol"
	"github.com/conorfennell/studyset/internal/srs"
	"github.com/conorfennell/studyset/internal/storage"
)

const maxJSONBody = 1 << 20

// studySetView is a study set as returned to clients, with the summary
// also rendered from markdown.
type studySetView struct {
	*domain.Details
	SummaryHTML string `json:"summary_html"`
}

func (s *Server) view(d *domain.Details) studySetView {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(d.StudySet.Summary), &buf); err != nil {
		s.log.Warn("failed to render summary", "study_set_id", d.StudySet.ID, "error", err)
	}
	return studySetView{Details: d, SummaryHTML: buf.String()}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// notFoundSet reports a missing study set and points the client at the listing.
func (s *Server) notFoundSet(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, apiError{
		Error:   "study set not found",
		Code:    "not_found",
		Listing: "/api/studysets",
	})
}

// requireOwner checks that the caller owns the study set.
func (s *Server) requireOwner(r *http.Request, setID string) error {
	owner, err := s.db.GetStudySetOwner(r.Context(), setID)
	if err != nil {
		return err
	}
	if owner != uid(r) {
		return errForbidden
	}
	return nil
}

// writeSetError writes err, using the study set 404 body for missing sets.
func (s *Server) writeSetError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.notFoundSet(w)
		return
	}
	s.writeError(w, r, err)
}

func (s *Server) handleListStudySets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.db.GetStudySetsForUser(r.Context(), uid(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"study_sets": sets})
}

// handleCreateStudySet generates a study set from an uploaded file or a link.
func (s *Server) handleCreateStudySet(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(uid(r)) {
		w.Header().Set("Retry-After", "60")
		s.writeError(w, r, errRateLimited)
		return
	}

	m, hash, err := s.readMaterial(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload, err := s.gen.ProcessSourceMaterial(r.Context(), m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.db.AddStudySet(r.Context(), uid(r), payload, hash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.db.GetStudySetDetails(r.Context(), id)
	if err == nil && d == nil {
		err = storage.ErrNotFound
	}
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to reload study set %s: %w", id, err))
		return
	}
	s.requestLogger(r).Info("study set created", "study_set_id", id, "title", d.StudySet.Title)

	w.Header().Set("Location", "/api/studysets/"+id)
	writeJSON(w, http.StatusCreated, s.view(d))
}

// readMaterial accepts a multipart "file" upload, or a "url" as JSON or a form field.
func (s *Server) readMaterial(w http.ResponseWriter, r *http.Request) (genai.Material, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var link string
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+maxJSONBody)
		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
			link = r.FormValue("url")
		case err != nil:
			return genai.Material{}, "", fmt.Errorf("%w: %v", errBadRequest, err)
		default:
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
			if err != nil {
				return genai.Material{}, "", fmt.Errorf("%w: %v", errBadRequest, err)
			}
			if int64(len(data)) > s.opts.MaxUploadBytes {
				return genai.Material{}, "", fmt.Errorf("%w: file exceeds %d bytes", errBadRequest, s.opts.MaxUploadBytes)
			}
			if len(data) == 0 {
				return genai.Material{}, "", fmt.Errorf("%w: file is empty", errBadRequest)
			}
			return genai.FileMaterial(header.Filename, data), knol.Hash(data), nil
		}
	case "application/json":
		var body struct {
			URL string `json:"url"`
		}
		if err := decodeJSON(r, &body); err != nil {
			return genai.Material{}, "", err
		}
		link = body.URL
	default:
		link = r.PostFormValue("url")
	}

	if strings.TrimSpace(link) == "" {
		return genai.Material{}, "", fmt.Errorf("%w: a file or url is required", errBadRequest)
	}
	m, err := genai.LinkMaterial(link)
	if err != nil {
		return genai.Material{}, "", err
	}
	return m, knol.Hash([]byte(m.URL)), nil
}

func (s *Server) handleGetStudySet(w http.ResponseWriter, r *http.Request) {
	d, err := s.db.GetStudySetDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if d == nil {
		s.notFoundSet(w)
		return
	}
	writeJSON(w, http.StatusOK, s.view(d))
}

func (s *Server) handleDeleteStudySet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.requireOwner(r, id); err != nil {
		s.writeSetError(w, r, err)
		return
	}
	if err := s.db.DeleteStudySet(r.Context(), id, uid(r)); err != nil {
		s.writeSetError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Summary string `json:"summary"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Summary) == "" {
		s.writeError(w, r, fmt.Errorf("%w: summary must not be empty", errBadRequest))
		return
	}
	if err := s.requireOwner(r, id); err != nil {
		s.writeSetError(w, r, err)
		return
	}
	if err := s.db.UpdateSummaryText(r.Context(), id, body.Summary); err != nil {
		s.writeSetError(w, r, err)
		return
	}
	s.handleGetStudySet(w, r)
}

// handleScoreKeyword records the caller's own importance score for a keyword.
// Any signed-in user who can see the study set may score it.
func (s *Server) handleScoreKeyword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Score int `json:"score"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := s.db.UpdateKeywordScore(r.Context(), r.PathValue("id"), r.PathValue("kid"), uid(r), body.Score)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keyword_id": r.PathValue("kid"), "score": body.Score})
}

func (s *Server) handleEditFlashcard(w http.ResponseWriter, r *http.Request) {
	id, cardID := r.PathValue("id"), r.PathValue("fid")
	var body struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Front) == "" || strings.TrimSpace(body.Back) == "" {
		s.writeError(w, r, fmt.Errorf("%w: front and back are required", errBadRequest))
		return
	}
	if err := s.requireOwner(r, id); err != nil {
		s.writeSetError(w, r, err)
		return
	}
	if err := s.db.UpdateFlashcardContent(r.Context(), id, cardID, body.Front, body.Back); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": cardID, "front": body.Front, "back": body.Back})
}

// handleDeck lists the flashcards in review order; ?due=1 keeps only due cards.
func (s *Server) handleDeck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.GetStudySetOwner(r.Context(), id); err != nil {
		s.writeSetError(w, r, err)
		return
	}
	cards, err := s.db.GetFlashcards(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	now := s.now()
	due := srs.Due(cards, now)
	deck := srs.SortDeck(cards)
	if r.URL.Query().Get("due") == "1" {
		deck = due
	}
	if deck == nil {
		deck = []domain.Flashcard{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"flashcards": deck, "due": len(due), "total": len(cards)})
}
