package srs

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/conorfennell/studyset/internal/domain"
)

// ErrInvalidRating is returned for a rating outside Again..Easy.
var ErrInvalidRating = errors.New("srs: invalid rating")

// Rating is the user's response to a card review.
type Rating int

// Ratings, from forgotten to effortless recall.
const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

const (
	// InitialInterval and InitialEaseFactor seed a freshly generated card.
	InitialInterval   = 1.0
	InitialEaseFactor = 2.5

	// MinEaseFactor stops intervals from shrinking without bound.
	MinEaseFactor = 1.3
	// MinInterval is the shortest interval any review can produce, in days.
	MinInterval = 1.0

	// maxScheduleDays is past MaxDueDate from any current date.
	maxScheduleDays = 4_000_000
)

// MaxDueDate is the latest due date a card can have. Intervals keep growing
// past it but the date saturates, since later years cannot be stored or
// encoded as RFC 3339.
var MaxDueDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

var (
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

var ratingNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating accepts a rating name in any case.
func ParseRating(s string) (Rating, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for r := Again; r <= Easy; r++ {
		if ratingNames[r] == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// InitialState is the schedule of a card that has never been reviewed: due now.
func InitialState(now time.Time) domain.SRSData {
	return domain.SRSData{
		Interval:       InitialInterval,
		EaseFactor:     InitialEaseFactor,
		NextReviewDate: now,
	}
}

// NextState calculates the schedule that follows a review. The input is not
// modified. Neither interval nor ease factor has an upper bound below the
// largest finite float.
func NextState(current domain.SRSData, rating Rating, now time.Time) (domain.SRSData, error) {
	if !rating.IsValid() {
		return current, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}

	next := current
	interval := math.Max(MinInterval, current.Interval)
	ease := math.Max(MinEaseFactor, current.EaseFactor)

	switch rating {
	case Again:
		next.Interval = MinInterval
		next.EaseFactor = math.Max(MinEaseFactor, ease-0.2)
	case Hard:
		next.Interval = math.Max(MinInterval, interval*0.8)
		next.EaseFactor = math.Max(MinEaseFactor, ease-0.15)
	case Good:
		next.Interval = interval * ease
		next.EaseFactor = ease
	case Easy:
		next.Interval = interval * ease * 1.3
		next.EaseFactor = ease + 0.15
	}

	if math.IsInf(next.Interval, 1) {
		next.Interval = math.MaxFloat64
	}
	next.NextReviewDate = NextDueDate(now, next.Interval)
	return next, nil
}

// NextDueDate schedules the next review round(interval) days after now,
// saturating at MaxDueDate.
func NextDueDate(now time.Time, interval float64) time.Time {
	if math.IsNaN(interval) || interval >= maxScheduleDays {
		return MaxDueDate
	}
	due := now.AddDate(0, 0, int(math.Round(interval)))
	if due.After(MaxDueDate) {
		return MaxDueDate
	}
	return due
}
