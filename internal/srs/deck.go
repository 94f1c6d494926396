package srs

import (
	"errors"
	"slices"
	"time"

	"github.com/conorfennell/studyset/internal/domain"
)

var (
	ErrSessionNotActive = errors.New("srs: review session is not active")
)

// SortDeck returns the cards in deck order: soonest NextReviewDate first.
// Cards due at the same instant keep their relative order.
func SortDeck(cards []domain.Flashcard) []domain.Flashcard {
	deck := slices.Clone(cards)
	slices.SortStableFunc(deck, func(a, b domain.Flashcard) int {
		return a.SRS.NextReviewDate.Compare(b.SRS.NextReviewDate)
	})
	return deck
}

// Due returns the cards whose review date has passed, in deck order.
func Due(cards []domain.Flashcard, now time.Time) []domain.Flashcard {
	var due []domain.Flashcard
	for _, c := range SortDeck(cards) {
		if !c.SRS.NextReviewDate.After(now) {
			due = append(due, c)
		}
	}
	return due
}

// State is the lifecycle of a review session.
type State int

const (
	Idle State = iota
	Active
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Finished:
		return "finished"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session walks a deck once, card by card. It holds its own copy of the deck;
// persisting each reviewed card is up to the caller.
type Session struct {
	state    State
	deck     []domain.Flashcard
	index    int
	reviewed int
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{}
}

// Start loads the deck in deck order. An empty deck finishes immediately.
func (s *Session) Start(cards []domain.Flashcard) {
	s.deck = SortDeck(cards)
	s.index = 0
	s.reviewed = 0
	s.state = Active
	if len(s.deck) == 0 {
		s.state = Finished
	}
}

func (s *Session) State() State {
	return s.state
}

// Current returns the card under review.
func (s *Session) Current() (domain.Flashcard, bool) {
	if s.state != Active {
		return domain.Flashcard{}, false
	}
	return s.deck[s.index], true
}

// Review applies the rating to the current card, returns the card with its new
// schedule and moves on. Reviewing the last card finishes the session.
func (s *Session) Review(rating Rating, now time.Time) (domain.Flashcard, error) {
	if s.state != Active {
		return domain.Flashcard{}, ErrSessionNotActive
	}
	card := s.deck[s.index]
	next, err := NextState(card.SRS, rating, now)
	if err != nil {
		return domain.Flashcard{}, err
	}
	card.SRS = next
	s.deck[s.index] = card
	s.reviewed++
	s.index++
	if s.index >= len(s.deck) {
		s.state = Finished
	}
	return card, nil
}

// Reviewed is the number of cards rated so far.
func (s *Session) Reviewed() int {
	return s.reviewed
}

// Remaining is the number of cards still to review.
func (s *Session) Remaining() int {
	if s.state != Active {
		return 0
	}
	return len(s.deck) - s.index
}

// Total is the size of the loaded deck.
func (s *Session) Total() int {
	return len(s.deck)
}
