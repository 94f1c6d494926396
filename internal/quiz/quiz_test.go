package quiz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/grading"
)

func mc(id string, level domain.BloomLevel, correct string) domain.PracticeQuestion {
	return domain.PracticeQuestion{
		ID:            id,
		Level:         level,
		Kind:          domain.MultipleChoice,
		Question:      "Question " + id,
		Options:       []string{correct, "wrong"},
		CorrectAnswer: correct,
	}
}

func levels(qs []domain.PracticeQuestion) []domain.BloomLevel {
	out := make([]domain.BloomLevel, len(qs))
	for i, q := range qs {
		out[i] = q.Level
	}
	return out
}

func TestOrder(t *testing.T) {
	in := []domain.PracticeQuestion{
		mc("a", domain.Apply, "x"),
		mc("b", domain.Remember, "x"),
		mc("c", domain.Analyze, "x"),
	}

	out := Order(in)

	assert.Equal(t, []domain.BloomLevel{domain.Remember, domain.Apply, domain.Analyze}, levels(out))
	assert.Equal(t, "a", in[0].ID, "input must not be reordered")
}

func TestOrderIsStableAndDeterministic(t *testing.T) {
	in := []domain.PracticeQuestion{
		mc("create-1", domain.Create, "x"),
		mc("remember-1", domain.Remember, "x"),
		mc("create-2", domain.Create, "x"),
		mc("remember-2", domain.Remember, "x"),
		mc("understand", domain.Understand, "x"),
		mc("remember-3", domain.Remember, "x"),
	}

	first := Order(in)
	var gotIDs []string
	for _, q := range first {
		gotIDs = append(gotIDs, q.ID)
	}
	assert.Equal(t, []string{"remember-1", "remember-2", "remember-3", "understand", "create-1", "create-2"}, gotIDs)

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Order(in))
	}
}

func TestSessionScenario(t *testing.T) {
	s := NewSession(grading.NewDispatcher(nil))
	assert.Equal(t, Idle, s.State())

	require.NoError(t, s.Start([]domain.PracticeQuestion{
		mc("apply", domain.Apply, "A"),
		mc("remember", domain.Remember, "R"),
		mc("analyze", domain.Analyze, "N"),
	}))
	require.Equal(t, Active, s.State())

	answers := map[string]string{"remember": "R", "apply": "wrong", "analyze": "N"}
	var order []string
	for s.State() == Active {
		q, _, ok := s.Current()
		require.True(t, ok)
		order = append(order, q.ID)

		_, err := s.Submit(context.Background(), answers[q.ID])
		require.NoError(t, err)

		_, err = s.Submit(context.Background(), answers[q.ID])
		assert.ErrorIs(t, err, ErrAlreadyAnswered)

		require.NoError(t, s.Next())
	}

	assert.Equal(t, []string{"remember", "apply", "analyze"}, order)
	assert.Equal(t, Finished, s.State())

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Correct)
	assert.Equal(t, 3, res.Total)
	assert.InDelta(t, 2.0/3.0, res.Score, 1e-9)
}

func TestSessionNextRequiresAnswer(t *testing.T) {
	s := NewSession(grading.NewDispatcher(nil))
	require.NoError(t, s.Start([]domain.PracticeQuestion{mc("q", domain.Remember, "x")}))

	assert.ErrorIs(t, s.Next(), ErrNotAnswered)
	_, err := s.Result()
	assert.ErrorIs(t, err, ErrNotFinished)
}

func TestSessionRestart(t *testing.T) {
	s := NewSession(grading.NewDispatcher(nil))
	require.NoError(t, s.Start([]domain.PracticeQuestion{mc("q", domain.Remember, "x")}))
	assert.ErrorIs(t, s.Start(nil), ErrAlreadyStarted)
	assert.ErrorIs(t, s.Restart(), ErrNotFinished)

	_, err := s.Submit(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, s.Next())
	require.Equal(t, Finished, s.State())

	require.NoError(t, s.Restart())
	assert.Equal(t, Active, s.State())
	assert.Equal(t, 0, s.Correct())
	_, shown := s.Feedback()
	assert.False(t, shown)
	_, idx, _ := s.Current()
	assert.Equal(t, 0, idx)
}

func TestSessionEmptyQuiz(t *testing.T) {
	s := NewSession(grading.NewDispatcher(nil))
	require.NoError(t, s.Start(nil))
	assert.Equal(t, Finished, s.State())

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

type failingGrader struct{ calls int }

func (f *failingGrader) GradeOpenEndedQuestion(context.Context, string, string, string) (bool, string, error) {
	f.calls++
	if f.calls == 1 {
		return false, "", errors.New("model overloaded")
	}
	return true, "Good reasoning.", nil
}

func TestSessionGraderFailureAllowsResubmit(t *testing.T) {
	g := &failingGrader{}
	s := NewSession(grading.NewDispatcher(g))
	require.NoError(t, s.Start([]domain.PracticeQuestion{{
		ID: "open", Level: domain.Evaluate, Kind: domain.OpenEnded, Question: "Why?", Rubric: "Because.",
	}}))

	_, err := s.Submit(context.Background(), "my answer")
	require.ErrorIs(t, err, grading.ErrGraderUnavailable)
	_, shown := s.Feedback()
	assert.False(t, shown)
	assert.Equal(t, 0, s.Correct())

	res, err := s.Submit(context.Background(), "my answer")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, "Good reasoning.", res.Feedback)
	assert.Equal(t, 1, s.Correct())
}
