// Package parser turns raw model output into validated domain values.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/conorfennell/studyset/internal/domain"
)

var ErrMalformed = errors.New("parser: malformed model output")

var fence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*)```$")

// Unfence strips an outer markdown code fence and any prose around the
// outermost JSON object. Fences inside JSON string values are kept. Input
// without a JSON object is returned trimmed.
func Unfence(s string) string {
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) {
		return s
	}
	if m := fence.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
		if json.Valid([]byte(s)) {
			return s
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// ParsePayload decodes and validates a generated study set.
func ParsePayload(raw string) (*domain.GeneratedPayload, error) {
	body := Unfence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	var p domain.GeneratedPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	p.Normalize()
	if err := domain.ValidatePayload(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &p, nil
}

// Grade is the rubric grader's verdict.
type Grade struct {
	IsCorrect    *bool  `json:"is_correct"`
	FeedbackText string `json:"feedback_text"`
}

// ParseGrade decodes a grading verdict. Both fields must be present.
func ParseGrade(raw string) (correct bool, feedback string, err error) {
	body := Unfence(raw)

	var g Grade
	if err := json.Unmarshal([]byte(body), &g); err != nil {
		return false, "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if g.IsCorrect == nil {
		return false, "", fmt.Errorf("%w: missing is_correct", ErrMalformed)
	}
	if strings.TrimSpace(g.FeedbackText) == "" {
		return false, "", fmt.Errorf("%w: missing feedback_text", ErrMalformed)
	}
	return *g.IsCorrect, g.FeedbackText, nil
}
