package srs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studyset/internal/domain"
)

func card(id string, dueInDays int) domain.Flashcard {
	return domain.Flashcard{
		ID:  id,
		SRS: domain.SRSData{Interval: 1, EaseFactor: 2.5, NextReviewDate: now.AddDate(0, 0, dueInDays)},
	}
}

func ids(cards []domain.Flashcard) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestSortDeck(t *testing.T) {
	cards := []domain.Flashcard{card("c", 3), card("a", -2), card("b", 0), card("b2", 0)}

	deck := SortDeck(cards)

	assert.Equal(t, []string{"a", "b", "b2", "c"}, ids(deck))
	assert.Equal(t, "c", cards[0].ID, "input must keep its order")
}

func TestDue(t *testing.T) {
	cards := []domain.Flashcard{card("later", 1), card("overdue", -1), card("today", 0)}
	assert.Equal(t, []string{"overdue", "today"}, ids(Due(cards, now)))
}

func TestSession(t *testing.T) {
	s := NewSession()
	assert.Equal(t, Idle, s.State())

	s.Start([]domain.Flashcard{card("second", 2), card("first", 0)})
	require.Equal(t, Active, s.State())
	assert.Equal(t, 2, s.Remaining())

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "first", current.ID)

	reviewed, err := s.Review(Good, now)
	require.NoError(t, err)
	assert.Equal(t, "first", reviewed.ID)
	assert.InDelta(t, 2.5, reviewed.SRS.Interval, 1e-9)
	assert.Equal(t, Active, s.State())

	reviewed, err = s.Review(Again, now)
	require.NoError(t, err)
	assert.Equal(t, "second", reviewed.ID)
	assert.Equal(t, Finished, s.State())
	assert.Equal(t, 2, s.Reviewed())
	assert.Equal(t, 0, s.Remaining())

	_, ok = s.Current()
	assert.False(t, ok)
	_, err = s.Review(Good, now)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestSessionEmptyDeckFinishes(t *testing.T) {
	s := NewSession()
	s.Start(nil)
	assert.Equal(t, Finished, s.State())
}

func TestSessionInvalidRatingKeepsCard(t *testing.T) {
	s := NewSession()
	s.Start([]domain.Flashcard{card("only", 0)})

	_, err := s.Review(Rating(0), now)
	assert.ErrorIs(t, err, ErrInvalidRating)
	assert.Equal(t, Active, s.State())
	assert.Equal(t, 0, s.Reviewed())
}
