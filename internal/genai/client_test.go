package genai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studyset/internal/domain"
)

const studySetJSON = `{"title": "Tides", "summary_text": "The moon pulls the sea.", "hierarchical_outline": [{"topic": "Gravity", "details": ["Moon"]}], "keywords": [{"term": "Spring tide", "definition": "Largest range", "source_sentence": "", "importance_score": 3}], "flashcards": [{"front": "Cause of tides?", "back": "The moon"}], "practice_questions": [{"bloom_level": "Remember", "question_type": "multiple_choice", "question": "What pulls the sea?", "options": ["Moon", "Wind"], "correct_answer": "Moon"}]}`

// fakeModel is an OpenAI-compatible endpoint that answers every chat request
// with reply and records what it was asked.
type fakeModel struct {
	t      *testing.T
	mu     sync.Mutex
	status int
	reply  string
	// transcript is returned by the transcription endpoint.
	transcript string

	requests    []map[string]any
	transcribed bool
}

func (f *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		io.WriteString(w, `{"error": {"message": "slow down", "type": "requests", "code": "rate_limit_exceeded"}}`)
		return
	}

	switch r.URL.Path {
	case "/v1/audio/transcriptions":
		f.transcribed = true
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": f.transcript})
	case "/v1/chat/completions":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("decode chat request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.requests = append(f.requests, body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": f.reply},
			}},
			"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeModel) lastUserMessage() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.requests[len(f.requests)-1]["messages"].([]any)
	return msgs[len(msgs)-1].(map[string]any)
}

func newTestClient(t *testing.T, model *fakeModel) *Client {
	model.t = t
	srv := httptest.NewServer(model)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/v1", APIKey: "test", ChatModel: "test-model"}, nil)
}

func TestProcessSourceMaterialText(t *testing.T) {
	model := &fakeModel{reply: "```json\n" + studySetJSON + "\n```"}
	c := newTestClient(t, model)

	p, err := c.ProcessSourceMaterial(t.Context(), FileMaterial("tides.md", []byte("# Tides\nThe moon pulls the sea.")))
	require.NoError(t, err)

	assert.Equal(t, "Tides", p.Title)
	assert.Equal(t, domain.Remember, p.PracticeQuestions[0].Level)
	assert.Contains(t, model.lastUserMessage()["content"], "The moon pulls the sea.")
	assert.Equal(t, "json_object", model.requests[0]["response_format"].(map[string]any)["type"])
}

func TestProcessSourceMaterialLink(t *testing.T) {
	model := &fakeModel{reply: studySetJSON}
	c := newTestClient(t, model)

	m, err := LinkMaterial("https://video.example.com/watch?v=abc")
	require.NoError(t, err)

	_, err = c.ProcessSourceMaterial(t.Context(), m)
	require.NoError(t, err)
	assert.Contains(t, model.lastUserMessage()["content"], "https://video.example.com/watch?v=abc")
}

func TestProcessSourceMaterialImage(t *testing.T) {
	model := &fakeModel{reply: studySetJSON}
	c := newTestClient(t, model)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	_, err := c.ProcessSourceMaterial(t.Context(), FileMaterial("diagram.png", png))
	require.NoError(t, err)

	parts := model.lastUserMessage()["content"].([]any)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(image["url"].(string), "data:image/png;base64,"))
}

func TestProcessSourceMaterialAudioIsTranscribed(t *testing.T) {
	model := &fakeModel{reply: studySetJSON, transcript: "Today we talk about tides."}
	c := newTestClient(t, model)

	mp3 := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)
	_, err := c.ProcessSourceMaterial(t.Context(), FileMaterial("lecture.mp3", mp3))
	require.NoError(t, err)

	assert.True(t, model.transcribed)
	assert.Contains(t, model.lastUserMessage()["content"], "Today we talk about tides.")
}

func TestProcessSourceMaterialUnsupported(t *testing.T) {
	c := newTestClient(t, &fakeModel{reply: studySetJSON})

	_, err := c.ProcessSourceMaterial(t.Context(), FileMaterial("paper.pdf", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")))
	kind, ok := KindOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, KindUnsupported, kind)
}

func TestProcessSourceMaterialMalformed(t *testing.T) {
	c := newTestClient(t, &fakeModel{reply: "Sorry, I can't do that."})

	_, err := c.ProcessSourceMaterial(t.Context(), FileMaterial("notes.txt", []byte("notes")))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformed, kind)
}

func TestProcessSourceMaterialQuota(t *testing.T) {
	c := newTestClient(t, &fakeModel{status: http.StatusTooManyRequests})

	_, err := c.ProcessSourceMaterial(t.Context(), FileMaterial("notes.txt", []byte("notes")))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindQuota, kind)
}

func TestGradeOpenEndedQuestion(t *testing.T) {
	model := &fakeModel{reply: `{"is_correct": false, "feedback_text": "You did not mention the moon."}`}
	c := newTestClient(t, model)

	correct, feedback, err := c.GradeOpenEndedQuestion(t.Context(), "Why are there tides?", "Mentions the moon.", "Wind.")
	require.NoError(t, err)
	assert.False(t, correct)
	assert.Equal(t, "You did not mention the moon.", feedback)

	content := model.lastUserMessage()["content"].(string)
	assert.Contains(t, content, "Why are there tides?")
	assert.Contains(t, content, "Mentions the moon.")
	assert.Contains(t, content, "Wind.")
}

func TestGradeOpenEndedQuestionUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := New(Config{BaseURL: srv.URL + "/v1", APIKey: "test"}, nil)
	srv.Close()

	_, _, err := c.GradeOpenEndedQuestion(t.Context(), "q", "r", "a")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnavailable, kind)
}

func TestLinkMaterialRejectsNonHTTP(t *testing.T) {
	_, err := LinkMaterial("ftp://example.com/file")
	kind, _ := KindOf(err)
	assert.Equal(t, KindUnsupported, kind)

	_, err = LinkMaterial("not a url")
	kind, _ = KindOf(err)
	assert.Equal(t, KindUnsupported, kind)
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindQuota, kindForStatus(429))
	assert.Equal(t, KindRejected, kindForStatus(400))
	assert.Equal(t, KindUnavailable, kindForStatus(401))
	assert.Equal(t, KindUnavailable, kindForStatus(503))
	assert.Equal(t, KindTimeout, kindForStatus(504))
}
