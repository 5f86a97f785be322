// Package interpreter defines the backends that turn user input into
// something the assistant can act on: audio into text, and text into an
// intent with a confidence score.
//
// Saathi ships with three backends: OpenAI (cloud), Local (self-hosted
// whisper + Ollama) and Keyword (offline rules).
package interpreter

import (
	"context"
	"errors"
	"fmt"

	"github.com/nadzzz/saathi/internal/intent"
)

// ErrUnsupported is returned by backends that do not implement an operation.
var ErrUnsupported = errors.New("operation not supported by backend")

// TranscribeOpts controls transcription behavior.
type TranscribeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "hi") to guide transcription.
	Language string

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string

	// Model overrides the default transcription model.
	Model string
}

// TranscribeResult holds the output of a transcription.
type TranscribeResult struct {
	Text string

	// Language is the ISO-639-1 code reported by the backend, if any.
	Language string

	// Confidence is 0 when the backend does not report one.
	Confidence float64
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string, opts TranscribeOpts) (*TranscribeResult, error)
}

// Classifier maps baseline-language text to an intent.
type Classifier interface {
	Classify(ctx context.Context, text string) (intent.Classification, error)
}

// Interpreter is a complete backend.
type Interpreter interface {
	// Name returns the backend identifier (e.g., "openai", "local").
	Name() string

	Transcriber
	Classifier

	// Close releases any resources held by the interpreter.
	Close() error
}

// StatusError is a non-2xx response from a backend HTTP API.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.Code, e.Body)
}

// StatusCode returns the HTTP status of the failed call.
func (e *StatusError) StatusCode() int { return e.Code }
