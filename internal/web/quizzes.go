package web

import (
	"net/http"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/grading"
	"github.com/conorfennell/studyset/internal/quiz"
)

// questionView hides the answer and rubric of the question being asked.
type questionView struct {
	ID      string              `json:"id"`
	Level   domain.BloomLevel   `json:"bloom_level"`
	Kind    domain.QuestionKind `json:"question_type"`
	Text    string              `json:"question"`
	Options []string            `json:"options,omitempty"`
}

type quizView struct {
	ID         string          `json:"id"`
	StudySetID string          `json:"study_set_id"`
	State      quiz.State      `json:"state"`
	Index      int             `json:"index"`
	Total      int             `json:"total"`
	Correct    int             `json:"correct"`
	Question   *questionView   `json:"question,omitempty"`
	Feedback   *grading.Result `json:"feedback,omitempty"`
	Result     *quiz.Result    `json:"result,omitempty"`
}

func newQuizView(e *sessionEntry[*quiz.Session]) quizView {
	q := e.session
	v := quizView{
		ID:         e.id,
		StudySetID: e.setID,
		State:      q.State(),
		Total:      q.Total(),
		Correct:    q.Correct(),
	}
	if cur, idx, ok := q.Current(); ok {
		v.Index = idx
		v.Question = &questionView{
			ID:      cur.ID,
			Level:   cur.Level,
			Kind:    cur.Kind,
			Text:    cur.Question,
			Options: cur.Options,
		}
	}
	if fb, ok := q.Feedback(); ok {
		v.Feedback = &fb
	}
	if res, err := q.Result(); err == nil {
		v.Index = v.Total
		v.Result = &res
	}
	return v
}

// handleStartQuiz starts a quiz over the study set's questions in Bloom order.
func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.GetStudySetOwner(r.Context(), id); err != nil {
		s.writeSetError(w, r, err)
		return
	}
	questions, err := s.db.GetQuestions(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	session := quiz.NewSession(s.grader)
	if err := session.Start(questions); err != nil {
		s.writeError(w, r, err)
		return
	}
	e := s.quizzes.add(uid(r), id, session)
	defer e.mu.Unlock()

	w.Header().Set("Location", "/api/quizzes/"+e.id)
	writeJSON(w, http.StatusCreated, newQuizView(e))
}

// withQuiz runs fn on the caller's quiz session and responds with its state.
func (s *Server) withQuiz(w http.ResponseWriter, r *http.Request, fn func(*quiz.Session) error) {
	e, ok := s.quizzes.get(r.PathValue("sid"), uid(r))
	if !ok {
		s.writeError(w, r, errNoSession)
		return
	}
	defer e.mu.Unlock()

	if fn != nil {
		if err := fn(e.session); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, newQuizView(e))
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	s.withQuiz(w, r, nil)
}

// handleAnswer grades the answer to the current question. A grader failure
// leaves the question unanswered so the same answer can be sent again.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withQuiz(w, r, func(q *quiz.Session) error {
		_, err := q.Submit(r.Context(), body.Answer)
		return err
	})
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	s.withQuiz(w, r, (*quiz.Session).Next)
}

func (s *Server) handleRestartQuiz(w http.ResponseWriter, r *http.Request) {
	s.withQuiz(w, r, (*quiz.Session).Restart)
}
