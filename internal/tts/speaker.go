package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/saathi/internal/message"
)

// Localizer translates a baseline-language reply into lang.
type Localizer interface {
	Localize(ctx context.Context, text, lang string) string
}

// PublishFunc delivers an event to connected clients.
type PublishFunc func(ctx context.Context, evt message.Event)

type utterance struct {
	text string
	lang string
}

// Speaker queues replies and handles them one at a time in order, so
// Speak never blocks the caller.
type Speaker struct {
	synth     Synthesizer // nil publishes text only
	localizer Localizer   // nil speaks the baseline text
	baseline  string      // language of replies without one
	publish   PublishFunc
	timeout   time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan utterance
	wg     sync.WaitGroup
}

// NewSpeaker creates a Speaker. synth and localizer may be nil. Replies
// queued without a language are spoken in baseline.
func NewSpeaker(synth Synthesizer, localizer Localizer, baseline string, publish PublishFunc, timeout time.Duration, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Speaker{
		synth:     synth,
		localizer: localizer,
		baseline:  baseline,
		publish:   publish,
		timeout:   timeout,
		logger:    logger.With("component", "tts"),
		queue:     make(chan utterance, 8),
	}
}

// Start runs the worker until ctx ends or Close is called.
func (s *Speaker) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-s.queue:
				if !ok {
					return
				}
				s.say(ctx, u)
			}
		}
	}()
}

// Speak queues text. When the queue is full the reply is dropped.
func (s *Speaker) Speak(text, lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- utterance{text: text, lang: lang}:
	default:
		s.logger.Warn("speech queue full, dropping reply", "text_length", len(text))
	}
}

// Close stops accepting replies and waits for the queued ones.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
	if s.synth != nil {
		return s.synth.Close()
	}
	return nil
}

func (s *Speaker) say(ctx context.Context, u utterance) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lang := u.lang
	if lang == "" {
		lang = s.baseline
	}
	text := u.text
	if s.localizer != nil && lang != s.baseline {
		text = s.localizer.Localize(ctx, text, lang)
	}

	evt := message.SpeechEvent{Text: text, Language: lang}
	if s.synth != nil {
		res, err := s.synth.Synthesize(ctx, text, SynthesizeOpts{Language: lang})
		if err != nil {
			s.logger.Warn("TTS synthesis failed, continuing without audio", "error", err)
		} else {
			evt.SetAudioBytes(res.Audio)
			evt.ContentType = res.ContentType
			s.logger.Debug("TTS synthesis complete", "audio_bytes", len(res.Audio))
		}
	}

	if s.publish != nil {
		s.publish(ctx, message.NewSpeechEvent(evt))
	}
}
