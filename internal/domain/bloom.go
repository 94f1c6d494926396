package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidBloomLevel   = errors.New("domain: invalid bloom level")
	ErrInvalidQuestionKind = errors.New("domain: invalid question kind")
)

// BloomLevel is a cognitive-skill rank. The zero value is invalid.
type BloomLevel int

const (
	Remember BloomLevel = iota + 1
	Understand
	Apply
	Analyze
	Evaluate
	Create
)

var bloomNames = [...]string{
	Remember:   "Remember",
	Understand: "Understand",
	Apply:      "Apply",
	Analyze:    "Analyze",
	Evaluate:   "Evaluate",
	Create:     "Create",
}

// BloomLevels lists every level in rank order.
func BloomLevels() []BloomLevel {
	return []BloomLevel{Remember, Understand, Apply, Analyze, Evaluate, Create}
}

// IsValid reports whether l is one of the six levels.
func (l BloomLevel) IsValid() bool {
	return l >= Remember && l <= Create
}

// Rank is the sort key of the level; lower ranks come first in a quiz.
func (l BloomLevel) Rank() int {
	return int(l)
}

func (l BloomLevel) String() string {
	if l.IsValid() {
		return bloomNames[l]
	}
	return fmt.Sprintf("BloomLevel(%d)", int(l))
}

// ParseBloomLevel resolves a level name, ignoring case and surrounding space.
func ParseBloomLevel(s string) (BloomLevel, error) {
	name := strings.TrimSpace(s)
	for _, l := range BloomLevels() {
		if strings.EqualFold(name, bloomNames[l]) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidBloomLevel, s)
}

func (l BloomLevel) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBloomLevel, int(l))
	}
	return []byte(bloomNames[l]), nil
}

func (l *BloomLevel) UnmarshalText(text []byte) error {
	v, err := ParseBloomLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// QuestionKind tells the grader how to evaluate an answer.
type QuestionKind string

const (
	MultipleChoice QuestionKind = "multiple_choice"
	OpenEnded      QuestionKind = "open_ended"
)

// IsClosed reports whether answers are checked by exact match.
func (k QuestionKind) IsClosed() bool {
	return k == MultipleChoice
}

func (k QuestionKind) IsValid() bool {
	return k == MultipleChoice || k == OpenEnded
}

func (k *QuestionKind) UnmarshalText(text []byte) error {
	switch v := QuestionKind(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case MultipleChoice, OpenEnded:
		*k = v
		return nil
	case "multiple-choice", "multiplechoice", "mcq":
		*k = MultipleChoice
		return nil
	case "open-ended", "openended", "short_answer", "open":
		*k = OpenEnded
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidQuestionKind, text)
}
