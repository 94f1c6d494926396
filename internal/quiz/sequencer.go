// Package quiz orders practice questions and runs a linear quiz over them.
package quiz

import (
	"slices"

	"github.com/conorfennell/studyset/internal/domain"
)

// Order returns the questions sorted by bloom rank, Remember first. Questions on
// the same level keep their input order. The input slice is left untouched.
func Order(questions []domain.PracticeQuestion) []domain.PracticeQuestion {
	ordered := slices.Clone(questions)
	slices.SortStableFunc(ordered, func(a, b domain.PracticeQuestion) int {
		return a.Level.Rank() - b.Level.Rank()
	})
	return ordered
}
