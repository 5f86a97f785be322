package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Libre is a client for a LibreTranslate-compatible HTTP API.
//
//	GET  /languages  -> [{"code":"hi","name":"Hindi","targets":["en"]}]
//	POST /translate  -> {"translatedText":"..."}
type Libre struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger

	mu        sync.Mutex
	languages map[string][]string // source -> targets, nil until fetched
}

// NewLibre creates a client. httpClient may be nil.
func NewLibre(endpoint, apiKey string, httpClient *http.Client, logger *slog.Logger) *Libre {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Libre{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   httpClient,
		logger:   logger.With("component", "translate"),
	}
}

// EnsureModel checks that the service can translate from source. The
// language list is fetched once and reused.
func (l *Libre) EnsureModel(ctx context.Context, source string) error {
	langs, err := l.fetchLanguages(ctx)
	if err != nil {
		return err
	}
	if _, ok := langs[source]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, source)
	}
	return nil
}

func (l *Libre) fetchLanguages(ctx context.Context) (map[string][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.languages != nil {
		return l.languages, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/languages", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("languages request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("languages request: status %d: %s", resp.StatusCode, body)
	}

	var list []struct {
		Code    string   `json:"code"`
		Targets []string `json:"targets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding languages: %w", err)
	}

	langs := make(map[string][]string, len(list))
	for _, item := range list {
		langs[item.Code] = item.Targets
	}
	l.languages = langs
	l.logger.Info("translation languages loaded", "count", len(langs))
	return langs, nil
}

// Translate sends one translation request.
func (l *Libre) Translate(ctx context.Context, text, source, target string) (string, error) {
	payload := map[string]string{
		"q":      text,
		"source": source,
		"target": target,
		"format": "text",
	}
	if l.apiKey != "" {
		payload["api_key"] = l.apiKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		TranslatedText string `json:"translatedText"`
		Error          string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding translation (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate request: status %d: %s", resp.StatusCode, result.Error)
	}

	l.logger.Debug("translated", "source", source, "target", target, "text_length", len(text))
	return result.TranslatedText, nil
}
