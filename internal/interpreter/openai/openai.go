// Package openai implements the Interpreter interface using OpenAI's APIs.
//
// It uses the Audio Transcription API (Whisper) for speech-to-text, and the
// Chat Completions API in JSON mode for intent classification.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/intent"
	"github.com/nadzzz/saathi/internal/interpreter"
)

// Interpreter uses OpenAI APIs for transcription and classification.
type Interpreter struct {
	client             *goopenai.Client
	transcriptionModel string
	completionModel    string
	prompt             string
}

// New creates a new OpenAI interpreter from config. httpClient may be nil.
func New(cfg config.OpenAIConfig, prompt string, httpClient *http.Client) *Interpreter {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &Interpreter{
		client:             goopenai.NewClientWithConfig(clientCfg),
		transcriptionModel: cfg.TranscriptionModel,
		completionModel:    cfg.CompletionModel,
		prompt:             prompt,
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "openai" }

// Transcribe sends audio to the OpenAI Transcription API.
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	model := i.transcriptionModel
	if opts.Model != "" {
		model = opts.Model
	}

	resp, err := i.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    model,
		FilePath: "audio" + interpreter.ExtFromContentType(contentType),
		Reader:   bytes.NewReader(audio),
		Prompt:   opts.Prompt,
		Language: opts.Language,
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, wrapError("transcription", err)
	}

	lang := interpreter.NormalizeLanguage(resp.Language)
	slog.Debug("transcription complete", "text_length", len(resp.Text), "language", lang)
	return &interpreter.TranscribeResult{
		Text:       resp.Text,
		Language:   lang,
		Confidence: segmentConfidence(resp),
	}, nil
}

// segmentConfidence turns the mean segment log-probability into a 0..1
// score. It is 0 when no segments were returned.
func segmentConfidence(resp goopenai.AudioResponse) float64 {
	if len(resp.Segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range resp.Segments {
		sum += s.AvgLogprob
	}
	return math.Exp(sum / float64(len(resp.Segments)))
}

// Classify asks the chat model to pick an intent for text.
func (i *Interpreter) Classify(ctx context.Context, text string) (intent.Classification, error) {
	resp, err := i.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: i.completionModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: interpreter.SystemPrompt(i.prompt)},
			{Role: goopenai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return intent.Classification{}, wrapError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return intent.Classification{}, fmt.Errorf("no choices returned from chat API")
	}

	c, err := interpreter.ParseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("parsing classification: %w", err)
	}
	slog.Debug("classification complete", "intent", c.Intent, "confidence", c.Confidence)
	return c, nil
}

// Close is a no-op for the OpenAI interpreter.
func (i *Interpreter) Close() error { return nil }

// wrapError keeps HTTP status information from go-openai errors so callers
// can classify the failure.
func wrapError(op string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%s request: %w", op, &interpreter.StatusError{Op: op, Code: apiErr.HTTPStatusCode, Body: apiErr.Message})
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%s request: %w", op, &interpreter.StatusError{Op: op, Code: reqErr.HTTPStatusCode, Body: reqErr.Error()})
	}
	return fmt.Errorf("%s request: %w", op, err)
}
