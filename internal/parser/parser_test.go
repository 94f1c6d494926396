package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studyset/internal/domain"
)

const payload = `{
  "title": "The Water Cycle",
  "summary_text": "Water moves between sea, sky and land.",
  "hierarchical_outline": [{"topic": "Evaporation", "details": ["Sun heats water"], "subtopics": []}],
  "keywords": [{"term": "Condensation", "definition": "Vapour to liquid", "source_sentence": "Clouds form by condensation.", "importance_score": 4}],
  "flashcards": [{"front": "What drives evaporation?", "back": "Solar energy"}],
  "practice_questions": [
    {"bloom_level": "Understand", "question_type": "multiple_choice", "question": "Clouds are made of?", "options": ["Droplets", "Smoke"], "correct_answer": "Droplets"}
  ]
}`

func TestUnfence(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare object", input: `{"a":1}`, expected: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "plain fence", input: "```\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "prose around fence", input: "Here you go:\n```json\n{\"a\":1}\n```\nEnjoy!", expected: `{"a":1}`},
		{name: "prose around object", input: "Sure! {\"a\":{\"b\":2}} Hope that helps.", expected: `{"a":{"b":2}}`},
		{name: "no object", input: "  nothing here ", expected: "nothing here"},
		{name: "fence inside string", input: "{\"s\":\"a\\n```go\\nx\\n```\"}", expected: "{\"s\":\"a\\n```go\\nx\\n```\"}"},
		{name: "fence inside fenced string", input: "```json\n{\"s\":\"```go\\nx\\n```\"}\n```", expected: "{\"s\":\"```go\\nx\\n```\"}"},
		{name: "prose around fence with inner fence", input: "Here:\n```json\n{\"s\":\"```x```\"}\n```\nBye", expected: "{\"s\":\"```x```\"}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Unfence(tc.input))
		})
	}
}

func TestParsePayload(t *testing.T) {
	for name, raw := range map[string]string{
		"bare":   payload,
		"fenced": "```json\n" + payload + "\n```",
	} {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePayload(raw)
			require.NoError(t, err)
			assert.Equal(t, "The Water Cycle", p.Title)
			require.Len(t, p.PracticeQuestions, 1)
			assert.Equal(t, domain.Understand, p.PracticeQuestions[0].Level)
			assert.Equal(t, domain.MultipleChoice, p.PracticeQuestions[0].Kind)
		})
	}
}

func TestParsePayloadCodeInSummary(t *testing.T) {
	withCode := strings.Replace(payload,
		`"summary_text": "Water moves between sea, sky and land."`,
		"\"summary_text\": \"Example:\\n```go\\nfmt.Println(1)\\n```\\nDone.\"", 1)
	require.NotEqual(t, payload, withCode)

	for name, raw := range map[string]string{
		"bare":   withCode,
		"fenced": "```json\n" + withCode + "\n```",
	} {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePayload(raw)
			require.NoError(t, err)
			assert.Equal(t, "Example:\n```go\nfmt.Println(1)\n```\nDone.", p.SummaryText)
			assert.Len(t, p.Flashcards, 1)
		})
	}
}

func TestParsePayloadFailures(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "not json", input: "I cannot help with that."},
		{name: "truncated", input: `{"title": "x", "summary_text": `},
		{name: "missing summary", input: `{"title": "x"}`},
		{name: "bad bloom level", input: `{"title": "x", "summary_text": "y", "practice_questions": [{"bloom_level": "Recall", "question_type": "open_ended", "question": "q", "rubric": "r"}]}`},
		{name: "answer outside options", input: `{"title": "x", "summary_text": "y", "practice_questions": [{"bloom_level": "Apply", "question_type": "multiple_choice", "question": "q", "options": ["a"], "correct_answer": "b"}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePayload(tc.input)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseGrade(t *testing.T) {
	correct, feedback, err := ParseGrade("```json\n{\"is_correct\": true, \"feedback_text\": \"Well argued.\"}\n```")
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, "Well argued.", feedback)

	correct, _, err = ParseGrade(`{"is_correct": false, "feedback_text": "Off topic."}`)
	require.NoError(t, err)
	assert.False(t, correct)

	_, _, err = ParseGrade(`{"feedback_text": "no verdict"}`)
	assert.ErrorIs(t, err, ErrMalformed)

	_, _, err = ParseGrade(`{"is_correct": true}`)
	assert.ErrorIs(t, err, ErrMalformed)

	_, _, err = ParseGrade(`maybe`)
	assert.ErrorIs(t, err, ErrMalformed)
}
