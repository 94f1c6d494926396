package srs

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studyset/internal/domain"
)

var now = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func TestNextState(t *testing.T) {
	testCases := []struct {
		name         string
		current      domain.SRSData
		rating       Rating
		wantInterval float64
		wantEase     float64
	}{
		{name: "good from new card", current: domain.SRSData{Interval: 1, EaseFactor: 2.5}, rating: Good, wantInterval: 2.5, wantEase: 2.5},
		{name: "easy after good", current: domain.SRSData{Interval: 2.5, EaseFactor: 2.5}, rating: Easy, wantInterval: 8.125, wantEase: 2.65},
		{name: "again resets interval", current: domain.SRSData{Interval: 30, EaseFactor: 2.5}, rating: Again, wantInterval: 1, wantEase: 2.3},
		{name: "again at ease floor", current: domain.SRSData{Interval: 4, EaseFactor: 1.4}, rating: Again, wantInterval: 1, wantEase: 1.3},
		{name: "hard shrinks interval", current: domain.SRSData{Interval: 10, EaseFactor: 2.5}, rating: Hard, wantInterval: 8, wantEase: 2.35},
		{name: "hard never below one day", current: domain.SRSData{Interval: 1, EaseFactor: 1.35}, rating: Hard, wantInterval: 1, wantEase: 1.3},
		{name: "easy is unbounded", current: domain.SRSData{Interval: 4000, EaseFactor: 5}, rating: Easy, wantInterval: 26000, wantEase: 5.15},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := NextState(tc.current, tc.rating, now)
			require.NoError(t, err)
			assert.InDelta(t, tc.wantInterval, next.Interval, 1e-9)
			assert.InDelta(t, tc.wantEase, next.EaseFactor, 1e-9)
			assert.Equal(t, now.AddDate(0, 0, int(math.Round(tc.wantInterval))), next.NextReviewDate)
		})
	}
}

func TestNextStateDoesNotMutateInput(t *testing.T) {
	current := domain.SRSData{Interval: 3, EaseFactor: 2.1, NextReviewDate: now}
	before := current

	_, err := NextState(current, Easy, now)
	require.NoError(t, err)
	assert.Equal(t, before, current)
}

func TestNextStateInvariants(t *testing.T) {
	intervals := []float64{0, 0.5, 1, 1.7, 6, 45.3, 365}
	eases := []float64{1, 1.3, 1.31, 1.5, 2.5, 3.9}

	for _, interval := range intervals {
		for _, ease := range eases {
			for r := Again; r <= Easy; r++ {
				next, err := NextState(domain.SRSData{Interval: interval, EaseFactor: ease}, r, now)
				require.NoError(t, err)
				if next.EaseFactor < MinEaseFactor {
					t.Errorf("%s on {%v, %v}: ease factor %v below floor", r, interval, ease, next.EaseFactor)
				}
				if next.Interval < MinInterval {
					t.Errorf("%s on {%v, %v}: interval %v below one day", r, interval, ease, next.Interval)
				}
			}
		}
	}
}

func TestAgainProperty(t *testing.T) {
	for _, ease := range []float64{1.3, 1.45, 1.5, 2.5, 4} {
		next, err := NextState(domain.SRSData{Interval: 12, EaseFactor: ease}, Again, now)
		require.NoError(t, err)
		assert.Equal(t, 1.0, next.Interval)
		assert.InDelta(t, math.Max(1.3, ease-0.2), next.EaseFactor, 1e-9)
	}
}

func TestNextStateRejectsInvalidRating(t *testing.T) {
	_, err := NextState(domain.SRSData{Interval: 1, EaseFactor: 2.5}, Rating(9), now)
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestNextDueDate(t *testing.T) {
	// 15.5 rounds half away from zero.
	assert.Equal(t, now.AddDate(0, 0, 16), NextDueDate(now, 15.5))
	assert.Equal(t, now.AddDate(0, 0, 2), NextDueDate(now, 2.4))
}

func TestNextDueDateSaturates(t *testing.T) {
	testCases := []struct {
		name     string
		interval float64
	}{
		{name: "past year 9999", interval: 6_795_440},
		{name: "year 10020", interval: 2_920_000},
		{name: "beyond int range", interval: 1e300},
		{name: "largest float", interval: math.MaxFloat64},
		{name: "not a number", interval: math.NaN()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, MaxDueDate, NextDueDate(now, tc.interval))
		})
	}
}

func TestEasyStreakStaysRepresentable(t *testing.T) {
	state := InitialState(now)
	for i := 0; i < 400; i++ {
		next, err := NextState(state, Easy, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, next.Interval, state.Interval)
		assert.False(t, math.IsInf(next.Interval, 0), "review %d", i)
		assert.False(t, next.NextReviewDate.After(MaxDueDate), "review %d", i)
		state = next
	}
	assert.Equal(t, MaxDueDate, state.NextReviewDate)

	_, err := json.Marshal(state)
	assert.NoError(t, err)
}

func TestRatingText(t *testing.T) {
	var body struct {
		Rating Rating `json:"rating"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"rating":"Easy"}`), &body))
	assert.Equal(t, Easy, body.Rating)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rating":"easy"}`, string(out))

	err = json.Unmarshal([]byte(`{"rating":"meh"}`), &body)
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestInitialState(t *testing.T) {
	s := InitialState(now)
	assert.Equal(t, domain.SRSData{Interval: 1, EaseFactor: 2.5, NextReviewDate: now}, s)
}
