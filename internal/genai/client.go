// Package genai talks to an OpenAI-compatible model to generate study sets and
// grade open-ended answers. Calls are made once; failures are returned to the
// caller as *Error and never retried here.
package genai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/parser"
)

// Config holds the model endpoint settings.
type Config struct {
	BaseURL            string
	APIKey             string
	ChatModel          string
	TranscriptionModel string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://api.openai.com/v1",
		ChatModel:          "gpt-4o-mini",
		TranscriptionModel: openai.Whisper1,
	}
}

// Client generates study sets and grades answers.
type Client struct {
	api    *openai.Client
	config Config
	logger *slog.Logger
}

// New creates a Client. Unset fields fall back to DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = def.TranscriptionModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	return &Client{
		api:    openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logger.With("component", "genai"),
	}
}

// ProcessSourceMaterial turns material into a validated study set payload.
func (c *Client) ProcessSourceMaterial(ctx context.Context, m Material) (*domain.GeneratedPayload, error) {
	user, err := c.materialMessage(ctx, m)
	if err != nil {
		return nil, err
	}

	content, err := c.complete(ctx, "generate", studySetPrompt, user)
	if err != nil {
		return nil, err
	}

	payload, err := parser.ParsePayload(content)
	if err != nil {
		c.logger.Warn("generated study set rejected", "error", err, "response_length", len(content))
		return nil, newError(KindMalformed, "study set response could not be parsed", err)
	}
	return payload, nil
}

// GradeOpenEndedQuestion asks the model for a verdict on answer. The verdict and
// feedback are returned as the model gave them.
func (c *Client) GradeOpenEndedQuestion(ctx context.Context, question, rubric, answer string) (bool, string, error) {
	user := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf(gradingRequest, question, rubric, answer),
	}

	content, err := c.complete(ctx, "grade", gradingPrompt, user)
	if err != nil {
		return false, "", err
	}

	correct, feedback, err := parser.ParseGrade(content)
	if err != nil {
		return false, "", newError(KindMalformed, "grading response could not be parsed", err)
	}
	return correct, feedback, nil
}

// materialMessage builds the user turn for the material, transcribing media first.
func (c *Client) materialMessage(ctx context.Context, m Material) (openai.ChatCompletionMessage, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}

	class, mt := m.classify()
	switch class {
	case classLink:
		msg.Content = fmt.Sprintf(linkRequest, m.URL)
	case classText:
		if !utf8.Valid(m.Data) {
			return msg, newError(KindUnsupported, "text material is not valid UTF-8", nil)
		}
		msg.Content = fmt.Sprintf(textRequest, m.Name, m.Data)
	case classImage:
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: fmt.Sprintf(imageRequest, m.Name)},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(mt, m.Data),
				Detail: openai.ImageURLDetailAuto,
			}},
		}
	case classMedia:
		transcript, err := c.transcribe(ctx, m)
		if err != nil {
			return msg, err
		}
		msg.Content = fmt.Sprintf(transcriptRequest, m.Name, transcript)
	default:
		return msg, newError(KindUnsupported, fmt.Sprintf("material type %s is not supported", mt), nil)
	}
	return msg, nil
}

func (c *Client) transcribe(ctx context.Context, m Material) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.config.TranscriptionModel,
		FilePath: m.Name,
		Reader:   bytes.NewReader(m.Data),
	})
	if err != nil {
		c.logger.Error("transcription failed", "error", err, "latency_ms", time.Since(start).Milliseconds())
		return "", classify(err, "transcription failed")
	}
	if resp.Text == "" {
		return "", newError(KindMalformed, "transcription is empty", nil)
	}
	c.logger.Debug("transcription completed", "name", m.Name, "latency_ms", time.Since(start).Milliseconds())
	return resp.Text, nil
}

// complete runs one chat completion that must answer with a JSON object.
func (c *Client) complete(ctx context.Context, op, system string, user openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.config.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	latency := time.Since(start)
	if err != nil {
		c.logger.Error("chat completion failed", "op", op, "error", err, "latency_ms", latency.Milliseconds())
		return "", classify(err, op+" request failed")
	}
	if len(resp.Choices) == 0 {
		return "", newError(KindMalformed, op+" response has no choices", errors.New("empty response"))
	}

	c.logger.Debug("chat completion finished",
		"op", op,
		"latency_ms", latency.Milliseconds(),
		"tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
