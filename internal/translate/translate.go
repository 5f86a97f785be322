// Package translate wraps a machine translation service. Translators are
// bound to one language pair and make sure the service has the model for
// their source language before the first request.
package translate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"
)

// ErrUnsupportedLanguage is returned when the service has no model for a
// language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Backend is a translation service.
type Backend interface {
	// EnsureModel makes the model for source available. It is idempotent.
	EnsureModel(ctx context.Context, source string) error

	// Translate converts text from source to target.
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Translator translates between one fixed pair of languages.
type Translator struct {
	backend Backend
	breaker *gobreaker.CircuitBreaker
	source  string
	target  string

	mu    sync.Mutex
	ready bool
}

// NewTranslator binds backend to the source/target pair. cb may be nil.
func NewTranslator(backend Backend, source, target string, cb *gobreaker.CircuitBreaker) *Translator {
	return &Translator{backend: backend, breaker: cb, source: source, target: target}
}

// Source returns the language the translator reads.
func (t *Translator) Source() string { return t.source }

// Target returns the language the translator writes.
func (t *Translator) Target() string { return t.target }

// Translate ensures the source model once, then translates text. A failed
// model download is retried on the next call.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if err := t.ensure(ctx); err != nil {
		return "", err
	}
	out, err := t.execute(func() (any, error) {
		return t.backend.Translate(ctx, text, t.source, t.target)
	})
	if err != nil {
		return "", fmt.Errorf("translating %s->%s: %w", t.source, t.target, err)
	}
	return out.(string), nil
}

func (t *Translator) ensure(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		return nil
	}
	if _, err := t.execute(func() (any, error) {
		return nil, t.backend.EnsureModel(ctx, t.source)
	}); err != nil {
		return fmt.Errorf("ensuring model for %s: %w", t.source, err)
	}
	t.ready = true
	return nil
}

func (t *Translator) execute(fn func() (any, error)) (any, error) {
	if t.breaker == nil {
		return fn()
	}
	return t.breaker.Execute(fn)
}
