// Package grading decides whether an answer to a practice question is correct.
package grading

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/conorfennell/studyset/internal/domain"
)

var (
	ErrUnknownKind       = errors.New("grading: unknown question kind")
	ErrGraderUnavailable = errors.New("grading: rubric grader unavailable")
)

// Result is the verdict on one answer.
type Result struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}

// RubricGrader grades open-ended answers against a rubric. genai.Client satisfies it.
type RubricGrader interface {
	GradeOpenEndedQuestion(ctx context.Context, question, rubric, answer string) (bool, string, error)
}

// Dispatcher routes multiple-choice answers to exact matching and open-ended
// answers to the rubric grader.
type Dispatcher struct {
	grader RubricGrader
}

func NewDispatcher(grader RubricGrader) *Dispatcher {
	return &Dispatcher{grader: grader}
}

// Evaluate grades answer against q. A grader failure is returned as an error
// wrapping ErrGraderUnavailable and never as an incorrect verdict.
func (d *Dispatcher) Evaluate(ctx context.Context, q domain.PracticeQuestion, answer string) (Result, error) {
	switch q.Kind {
	case domain.MultipleChoice:
		return evaluateClosed(q, answer), nil
	case domain.OpenEnded:
		if d.grader == nil {
			return Result{}, ErrGraderUnavailable
		}
		correct, feedback, err := d.grader.GradeOpenEndedQuestion(ctx, q.Question, q.Rubric, answer)
		if err != nil {
			return Result{}, &GraderError{Cause: err}
		}
		return Result{Correct: correct, Feedback: feedback}, nil
	default:
		return Result{}, errors.Wrapf(ErrUnknownKind, "question %s has kind %q", q.ID, q.Kind)
	}
}

func evaluateClosed(q domain.PracticeQuestion, answer string) Result {
	if answer == q.CorrectAnswer {
		return Result{Correct: true, Feedback: "Correct!"}
	}
	return Result{
		Correct:  false,
		Feedback: fmt.Sprintf("Not quite. The correct answer is: %s", q.CorrectAnswer),
	}
}

// GraderError carries the collaborator's failure. It matches ErrGraderUnavailable
// under errors.Is and unwraps to the original cause.
type GraderError struct {
	Cause error
}

func (e *GraderError) Error() string {
	return fmt.Sprintf("%v: %v", ErrGraderUnavailable, e.Cause)
}

func (e *GraderError) Is(target error) bool {
	return target == ErrGraderUnavailable
}

func (e *GraderError) Unwrap() error {
	return e.Cause
}
