// Package local implements the Interpreter interface using self-hosted models.
//
// It supports any Whisper-compatible transcription endpoint (e.g., whisper.cpp
// server, faster-whisper) and any Ollama or OpenAI-compatible chat endpoint
// (e.g., Ollama, vLLM, llama.cpp server) for classification.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/intent"
	"github.com/nadzzz/saathi/internal/interpreter"
)

// Interpreter uses self-hosted models for transcription and classification.
type Interpreter struct {
	whisperEndpoint string
	whisperType     string // "openai" or "asr"
	llmEndpoint     string
	llmModel        string
	vadFilter       bool
	defaultLanguage string
	prompt          string
	client          *http.Client
}

// New creates a new local interpreter from config. httpClient may be nil.
func New(cfg config.LocalConfig, prompt string, httpClient *http.Client) *Interpreter {
	wt := cfg.WhisperType
	if wt == "" {
		wt = "openai"
	}
	model := cfg.LLMModel
	if model == "" {
		model = "llama3"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Interpreter{
		whisperEndpoint: cfg.WhisperEndpoint,
		whisperType:     wt,
		llmEndpoint:     cfg.LLMEndpoint,
		llmModel:        model,
		vadFilter:       cfg.VADFilter,
		defaultLanguage: cfg.Language,
		prompt:          prompt,
		client:          httpClient,
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "local" }

// Transcribe sends audio to the local Whisper-compatible endpoint.
// Supports two flavors:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	lang := opts.Language
	if lang == "" {
		lang = i.defaultLanguage
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	field := "file"
	if i.whisperType == "asr" {
		field = "audio_file"
	}
	part, err := writer.CreateFormFile(field, "audio"+interpreter.ExtFromContentType(contentType))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}

	reqURL := i.whisperEndpoint
	if i.whisperType == "asr" {
		q := make(url.Values)
		q.Set("task", "transcribe")
		q.Set("output", "json")
		q.Set("encode", "true")
		if lang != "" {
			q.Set("language", lang)
		}
		if opts.Prompt != "" {
			q.Set("initial_prompt", opts.Prompt)
		}
		if i.vadFilter {
			q.Set("vad_filter", "true")
		}
		reqURL += "?" + q.Encode()
	} else {
		if opts.Model != "" {
			_ = writer.WriteField("model", opts.Model)
		}
		if lang != "" {
			_ = writer.WriteField("language", lang)
		}
		if opts.Prompt != "" {
			_ = writer.WriteField("prompt", opts.Prompt)
		}
		_ = writer.WriteField("response_format", "verbose_json")
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &interpreter.StatusError{Op: "local transcription", Code: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("local transcription complete", "flavor", i.whisperType, "text_length", len(result.Text), "language", result.Language)
	return &interpreter.TranscribeResult{
		Text:     strings.TrimSpace(result.Text),
		Language: interpreter.NormalizeLanguage(result.Language),
	}, nil
}

// Classify sends the text to the local LLM endpoint.
// Supports Ollama's /api/generate and OpenAI-compatible /v1/chat/completions.
func (i *Interpreter) Classify(ctx context.Context, text string) (intent.Classification, error) {
	systemPrompt := interpreter.SystemPrompt(i.prompt)

	var reqBody map[string]any
	if strings.HasSuffix(i.llmEndpoint, "/api/generate") {
		reqBody = map[string]any{
			"model":  i.llmModel,
			"system": systemPrompt,
			"prompt": text,
			"stream": false,
			"format": "json",
		}
	} else {
		reqBody = map[string]any{
			"model": i.llmModel,
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": text},
			},
			"temperature":     0.1,
			"stream":          false,
			"response_format": map[string]string{"type": "json_object"},
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.llmEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return intent.Classification{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("local LLM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return intent.Classification{}, &interpreter.StatusError{Op: "local LLM", Code: resp.StatusCode, Body: string(respBody)}
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("reading LLM response: %w", err)
	}

	content := extractContent(respData)
	if content == "" {
		return intent.Classification{}, fmt.Errorf("empty response from local LLM")
	}

	c, err := interpreter.ParseClassification(content)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("parsing classification: %w", err)
	}
	slog.Debug("local classification complete", "intent", c.Intent, "confidence", c.Confidence)
	return c, nil
}

// Close is a no-op for the local interpreter.
func (i *Interpreter) Close() error { return nil }

func extractContent(data []byte) string {
	// OpenAI-compatible format: {"choices": [{"message": {"content": "..."}}]}
	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chatResp); err == nil && len(chatResp.Choices) > 0 {
		return chatResp.Choices[0].Message.Content
	}

	// Ollama format: {"response": "..."}
	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &ollamaResp); err == nil && ollamaResp.Response != "" {
		return ollamaResp.Response
	}

	return string(data)
}
