package language

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nadzzz/saathi/internal/langid"
	"github.com/nadzzz/saathi/internal/metrics"
	"github.com/nadzzz/saathi/internal/speech"
	"github.com/nadzzz/saathi/internal/translate"
)

// Transcript is a finished utterance. Baseline holds the text in the
// baseline language; it equals Original when no translation happened.
// Language is empty until the transcript is resolved.
type Transcript struct {
	ID         uuid.UUID
	Original   string
	Language   string
	Baseline   string
	Confidence float64
	Translated bool
}

// Event is one step of a coordinated capture session. Partial is set for
// partial events, Transcript for final events, Err for error events.
type Event struct {
	Kind       speech.EventKind
	Partial    string
	Transcript Transcript
	Err        speech.ErrorKind
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBreaker guards translation calls with cb.
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Coordinator) { c.breaker = cb }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator owns the capture session with the recognizer and produces
// baseline-language transcripts.
type Coordinator struct {
	recognizer speech.Recognizer
	identifier langid.Identifier
	backend    translate.Backend
	profiles   Profiles
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	tracer     trace.Tracer

	mu          sync.Mutex
	translators map[string]*translate.Translator // "src>dst"
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewCoordinator creates a Coordinator. identifier and backend may be nil,
// in which case every utterance is taken to be in the baseline language or
// left untranslated.
func NewCoordinator(rec speech.Recognizer, identifier langid.Identifier, backend translate.Backend, profiles Profiles, opts ...Option) *Coordinator {
	c := &Coordinator{
		recognizer:  rec,
		identifier:  identifier,
		backend:     backend,
		profiles:    profiles,
		logger:      slog.Default(),
		tracer:      otel.Tracer("github.com/nadzzz/saathi/internal/language"),
		translators: make(map[string]*translate.Translator),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("component", "language")
	return c
}

// Profiles returns the supported languages.
func (c *Coordinator) Profiles() Profiles { return c.profiles }

// Listen starts a capture session, stopping any previous one first. The
// returned channel delivers Ready, Start and Partial events, then exactly
// one Final or Error event, and is closed afterwards or when the session is
// stopped. The Final transcript is unresolved; pass it to Resolve.
func (c *Coordinator) Listen(ctx context.Context) (<-chan Event, error) {
	if err := c.Stop(); err != nil {
		return nil, err
	}

	events, err := c.recognizer.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting capture: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, 4)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.forward(sctx, events, out, done)
	return out, nil
}

// Stop ends the active session. It is safe to call repeatedly.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	err := c.recognizer.Stop()
	if cancel != nil {
		cancel()
		<-done
	}
	return err
}

// Release stops capture and drops every cached translator.
func (c *Coordinator) Release() error {
	err := c.Stop()
	c.mu.Lock()
	c.translators = make(map[string]*translate.Translator)
	c.mu.Unlock()
	return err
}

func (c *Coordinator) forward(ctx context.Context, events <-chan speech.Event, out chan<- Event, done chan struct{}) {
	defer close(done)
	defer close(out)

	for {
		var ev speech.Event
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ev = e
		}

		var o Event
		switch ev.Kind {
		case speech.EventFinal:
			o = Event{Kind: ev.Kind, Transcript: Transcript{
				ID:         uuid.New(),
				Original:   ev.Text,
				Baseline:   ev.Text,
				Confidence: ev.Confidence,
			}}
		case speech.EventError:
			metrics.CaptureErrorsTotal.WithLabelValues(ev.Err.String()).Inc()
			o = Event{Kind: ev.Kind, Err: ev.Err}
		default:
			o = Event{Kind: ev.Kind, Partial: ev.Text}
		}

		select {
		case out <- o:
		case <-ctx.Done():
			return
		}
		if ev.Terminal() {
			return
		}
	}
}

// Resolve identifies the language of a captured transcript and translates
// it to the baseline. Translation failures keep the original text.
func (c *Coordinator) Resolve(ctx context.Context, t Transcript) Transcript {
	ctx, span := c.tracer.Start(ctx, "language.resolve")
	defer span.End()

	lang := c.identify(ctx, t.Original)
	t.Language = lang
	t.Baseline = t.Original
	t.Translated = false
	span.SetAttributes(attribute.String("language", lang))

	base := c.profiles.Baseline()
	if lang == base.Code || c.backend == nil {
		return t
	}

	out, err := c.translator(lang, base.Code).Translate(ctx, t.Original)
	if err != nil {
		metrics.TranslationsTotal.WithLabelValues("degraded").Inc()
		span.RecordError(err)
		c.logger.Warn("translation failed, using original text", "transcript_id", t.ID, "language", lang, "error", err)
		return t
	}
	metrics.TranslationsTotal.WithLabelValues("ok").Inc()
	t.Baseline = out
	t.Translated = true
	return t
}

func (c *Coordinator) identify(ctx context.Context, text string) string {
	base := c.profiles.Baseline().Code
	if c.identifier == nil {
		return base
	}
	code, err := c.identifier.Identify(ctx, text)
	if err != nil {
		c.logger.Debug("language identification failed", "error", err)
		return base
	}
	if code == langid.Undetermined || !c.profiles.Supported(code) {
		return base
	}
	return code
}

// translator returns the cached translator for a pair, creating it on
// first use.
func (c *Coordinator) translator(src, dst string) *translate.Translator {
	key := src + ">" + dst
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.translators[key]; ok {
		return t
	}
	sp, _ := c.profiles.Lookup(src)
	dp, _ := c.profiles.Lookup(dst)
	t := translate.NewTranslator(c.backend, sp.TranslationCode, dp.TranslationCode, c.breaker)
	c.translators[key] = t
	return t
}

// Localize translates a baseline-language reply into lang. It returns text
// unchanged when lang is the baseline, unsupported, or translation fails.
func (c *Coordinator) Localize(ctx context.Context, text, lang string) string {
	base := c.profiles.Baseline().Code
	if c.backend == nil || text == "" || lang == base || !c.profiles.Supported(lang) {
		return text
	}
	ctx, span := c.tracer.Start(ctx, "language.localize")
	defer span.End()

	out, err := c.translator(base, lang).Translate(ctx, text)
	if err != nil {
		metrics.TranslationsTotal.WithLabelValues("degraded").Inc()
		c.logger.Warn("reply localization failed", "language", lang, "error", err)
		return text
	}
	metrics.TranslationsTotal.WithLabelValues("ok").Inc()
	return out
}
