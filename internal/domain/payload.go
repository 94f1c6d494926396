package domain

import "strings"

// GeneratedPayload is the study set produced by the generation collaborator,
// before it has identities or schedules.
type GeneratedPayload struct {
	Title             string               `json:"title" validate:"required"`
	SummaryText       string               `json:"summary_text" validate:"required"`
	Outline           []OutlineNode        `json:"hierarchical_outline" validate:"dive"`
	Keywords          []GeneratedKeyword   `json:"keywords" validate:"dive"`
	Flashcards        []GeneratedFlashcard `json:"flashcards" validate:"dive"`
	PracticeQuestions []GeneratedQuestion  `json:"practice_questions" validate:"dive"`
}

type GeneratedKeyword struct {
	Term            string `json:"term" validate:"required"`
	Definition      string `json:"definition" validate:"required"`
	SourceSentence  string `json:"source_sentence"`
	ImportanceScore int    `json:"importance_score" validate:"min=1,max=5"`
}

type GeneratedFlashcard struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

type GeneratedQuestion struct {
	Level         BloomLevel   `json:"bloom_level"`
	Kind          QuestionKind `json:"question_type"`
	Question      string       `json:"question" validate:"required"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	Rubric        string       `json:"rubric"`
}

// Normalize trims generator noise in place: surrounding whitespace on every
// answer-bearing string and importance scores outside 1..5.
func (p *GeneratedPayload) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.SummaryText = strings.TrimSpace(p.SummaryText)
	for i := range p.Keywords {
		k := &p.Keywords[i]
		k.Term = strings.TrimSpace(k.Term)
		k.ImportanceScore = min(max(k.ImportanceScore, 1), 5)
	}
	for i := range p.PracticeQuestions {
		q := &p.PracticeQuestions[i]
		q.Question = strings.TrimSpace(q.Question)
		q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
		for j := range q.Options {
			q.Options[j] = strings.TrimSpace(q.Options[j])
		}
	}
}
