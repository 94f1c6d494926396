package quiz

import (
	"context"
	"errors"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/grading"
)

var (
	ErrNotActive       = errors.New("quiz: session is not active")
	ErrNotFinished     = errors.New("quiz: session is not finished")
	ErrAlreadyStarted  = errors.New("quiz: session already active")
	ErrAlreadyAnswered = errors.New("quiz: question already answered")
	ErrNotAnswered     = errors.New("quiz: question not answered yet")
)

// Evaluator grades one answer. *grading.Dispatcher satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, q domain.PracticeQuestion, answer string) (grading.Result, error)
}

// State is the phase of a quiz session.
type State int

// Session states. A session is Idle until started and Finished after the
// last question.
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

// Result is the outcome of a finished quiz.
type Result struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Score   float64 `json:"score"`
}

// Session walks an ordered question set once. While feedback for the current
// question is shown, no further answer is accepted until Next.
type Session struct {
	eval      Evaluator
	questions []domain.PracticeQuestion
	state     State
	index     int
	correct   int
	feedback  *grading.Result
}

func NewSession(eval Evaluator) *Session {
	return &Session{eval: eval}
}

// Start orders the questions and begins from the first one. It is allowed from
// idle and, as a restart, from finished.
func (s *Session) Start(questions []domain.PracticeQuestion) error {
	if s.state == Active {
		return ErrAlreadyStarted
	}
	s.questions = Order(questions)
	s.index = 0
	s.correct = 0
	s.feedback = nil
	s.state = Active
	if len(s.questions) == 0 {
		s.state = Finished
	}
	return nil
}

// Restart begins the same question set again.
func (s *Session) Restart() error {
	if s.state != Finished {
		return ErrNotFinished
	}
	return s.Start(s.questions)
}

func (s *Session) State() State {
	return s.state
}

// Current returns the question being asked and its position.
func (s *Session) Current() (domain.PracticeQuestion, int, bool) {
	if s.state != Active {
		return domain.PracticeQuestion{}, 0, false
	}
	return s.questions[s.index], s.index, true
}

// Feedback returns the verdict shown for the current question, if any.
func (s *Session) Feedback() (grading.Result, bool) {
	if s.feedback == nil {
		return grading.Result{}, false
	}
	return *s.feedback, true
}

// Submit grades answer for the current question. If the evaluator fails the
// question stays unanswered so the answer can be submitted again.
func (s *Session) Submit(ctx context.Context, answer string) (grading.Result, error) {
	if s.state != Active {
		return grading.Result{}, ErrNotActive
	}
	if s.feedback != nil {
		return grading.Result{}, ErrAlreadyAnswered
	}
	res, err := s.eval.Evaluate(ctx, s.questions[s.index], answer)
	if err != nil {
		return grading.Result{}, err
	}
	if res.Correct {
		s.correct++
	}
	s.feedback = &res
	return res, nil
}

// Next moves past an answered question. Moving past the last one finishes the quiz.
func (s *Session) Next() error {
	if s.state != Active {
		return ErrNotActive
	}
	if s.feedback == nil {
		return ErrNotAnswered
	}
	s.feedback = nil
	s.index++
	if s.index >= len(s.questions) {
		s.state = Finished
	}
	return nil
}

// Correct is the running count of correct answers.
func (s *Session) Correct() int {
	return s.correct
}

func (s *Session) Total() int {
	return len(s.questions)
}

// Result reports the final score: correct answers over total questions.
func (s *Session) Result() (Result, error) {
	if s.state != Finished {
		return Result{}, ErrNotFinished
	}
	r := Result{Correct: s.correct, Total: len(s.questions)}
	if r.Total > 0 {
		r.Score = float64(r.Correct) / float64(r.Total)
	}
	return r, nil
}
