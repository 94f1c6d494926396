package domain

import "time"

// StudySet is the root of everything generated from one piece of source material.
type StudySet struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	Title      string        `json:"title"`
	Summary    string        `json:"summary"`
	Outline    []OutlineNode `json:"outline"`
	SourceHash string        `json:"source_hash,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// OutlineNode is one topic of the hierarchical outline. Each node owns its children.
type OutlineNode struct {
	Topic    string        `json:"topic" validate:"required"`
	Details  []string      `json:"details"`
	Children []OutlineNode `json:"subtopics,omitempty" validate:"dive"`
}

// Keyword is a term extracted from the material, scored for importance by the
// generator and optionally by each user.
type Keyword struct {
	ID             string         `json:"id"`
	StudySetID     string         `json:"study_set_id"`
	Term           string         `json:"term"`
	Definition     string         `json:"definition"`
	SourceSentence string         `json:"source_sentence"`
	AIScore        int            `json:"ai_score"`
	UserScores     map[string]int `json:"user_scores"`
}

// SRSData is the spaced-repetition state of a flashcard.
type SRSData struct {
	Interval       float64   `json:"interval"`
	EaseFactor     float64   `json:"ease_factor"`
	NextReviewDate time.Time `json:"next_review_date"`
}

// Flashcard is a front/back pair with its review schedule.
type Flashcard struct {
	ID         string  `json:"id"`
	StudySetID string  `json:"study_set_id"`
	Front      string  `json:"front"`
	Back       string  `json:"back"`
	Edited     bool    `json:"edited"`
	SRS        SRSData `json:"srs"`
	Position   int     `json:"position"`
}

// PracticeQuestion is a quiz item, either multiple choice or open ended.
type PracticeQuestion struct {
	ID            string       `json:"id"`
	StudySetID    string       `json:"study_set_id"`
	Position      int          `json:"position"`
	Level         BloomLevel   `json:"bloom_level"`
	Kind          QuestionKind `json:"question_type"`
	Question      string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Rubric        string       `json:"rubric,omitempty"`
}

// User is owned by the identity provider; the service only mirrors it.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Details is a study set together with all of its children.
type Details struct {
	StudySet   StudySet           `json:"study_set"`
	Keywords   []Keyword          `json:"keywords"`
	Flashcards []Flashcard        `json:"flashcards"`
	Questions  []PracticeQuestion `json:"questions"`
}
