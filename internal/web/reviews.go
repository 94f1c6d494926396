package web

import (
	"net/http"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/srs"
)

type reviewView struct {
	ID         string            `json:"id"`
	StudySetID string            `json:"study_set_id"`
	State      srs.State         `json:"state"`
	Card       *domain.Flashcard `json:"card,omitempty"`
	Reviewed   int               `json:"reviewed"`
	Remaining  int               `json:"remaining"`
	Total      int               `json:"total"`
}

func newReviewView(e *sessionEntry[*srs.Session]) reviewView {
	v := reviewView{
		ID:         e.id,
		StudySetID: e.setID,
		State:      e.session.State(),
		Reviewed:   e.session.Reviewed(),
		Remaining:  e.session.Remaining(),
		Total:      e.session.Total(),
	}
	if card, ok := e.session.Current(); ok {
		v.Card = &card
	}
	return v
}

// handleStartReview starts reviewing the owner's deck; ?due=1 reviews only
// the cards that are due.
func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.requireOwner(r, id); err != nil {
		s.writeSetError(w, r, err)
		return
	}
	cards, err := s.db.GetFlashcards(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("due") == "1" {
		cards = srs.Due(cards, s.now())
	}

	session := srs.NewSession()
	session.Start(cards)
	e := s.reviews.add(uid(r), id, session)
	defer e.mu.Unlock()

	w.Header().Set("Location", "/api/reviews/"+e.id)
	writeJSON(w, http.StatusCreated, newReviewView(e))
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	e, ok := s.reviews.get(r.PathValue("sid"), uid(r))
	if !ok {
		s.writeError(w, r, errNoSession)
		return
	}
	defer e.mu.Unlock()
	writeJSON(w, http.StatusOK, newReviewView(e))
}

// handleRate applies a rating to the current card, stores the new schedule
// and moves to the next card. If storing fails the card stays current.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating srs.Rating `json:"rating"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	e, ok := s.reviews.get(r.PathValue("sid"), uid(r))
	if !ok {
		s.writeError(w, r, errNoSession)
		return
	}
	defer e.mu.Unlock()

	card, ok := e.session.Current()
	if !ok {
		s.writeError(w, r, srs.ErrSessionNotActive)
		return
	}
	now := s.now()
	next, err := srs.NextState(card.SRS, body.Rating, now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.db.UpdateFlashcardSRS(r.Context(), e.setID, card.ID, next); err != nil {
		s.writeError(w, r, err)
		return
	}
	reviewed, err := e.session.Review(body.Rating, now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reviewed": reviewed,
		"session":  newReviewView(e),
	})
}
