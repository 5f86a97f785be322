// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200; one container can
// serve every voice, or each language can get its own instance.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/tts"
)

// defaultVoices maps ISO-639-1 language codes to Piper voice model names.
// Languages without a Piper voice fall back to English.
var defaultVoices = map[string]string{
	"en": "en_GB-alan-medium",
	"hi": "hi_IN-pratham-medium",
	"te": "te_IN-maya-medium",
	"ml": "ml_IN-meera-medium",
	"ne": "ne_NP-google-medium",
}

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
type Synthesizer struct {
	endpoint  string            // default host:port
	endpoints map[string]string // language -> host:port
	voices    map[string]string // language -> voice name
	dialer    net.Dialer
	logger    *slog.Logger
}

// New creates a Piper synthesizer from config.
func New(cfg config.PiperConfig, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	voices := make(map[string]string, len(defaultVoices)+len(cfg.Voices))
	for k, v := range defaultVoices {
		voices[k] = v
	}
	for k, v := range cfg.Voices {
		voices[k] = v
	}

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[lang] = hostPort(ep)
	}

	return &Synthesizer{
		endpoint:  hostPort(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
		dialer:    net.Dialer{Timeout: 10 * time.Second},
		logger:    logger.With("component", "piper"),
	}
}

func hostPort(ep string) string {
	ep = strings.TrimPrefix(ep, "tcp://")
	return strings.TrimPrefix(ep, "http://")
}

// route picks the endpoint and voice for a request.
func (s *Synthesizer) route(opts tts.SynthesizeOpts) (endpoint, voice string) {
	voice = opts.Voice
	if voice == "" {
		voice = s.voices[opts.Language]
	}
	if voice == "" {
		voice = s.voices["en"]
	}
	endpoint = s.endpoints[opts.Language]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	return endpoint, voice
}

// Synthesize sends text to the Piper server and returns synthesized audio as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text for synthesis")
	}
	endpoint, voice := s.route(opts)
	if endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured for language %q", opts.Language)
	}

	s.logger.Debug("piper synthesize", "text_length", len(text), "voice", voice, "language", opts.Language, "endpoint", endpoint)

	conn, err := s.dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	req := event{
		Type: "synthesize",
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, req, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	return readAudio(bufio.NewReader(conn), s.logger)
}

// readAudio consumes audio-start, audio-chunk* and audio-stop.
func readAudio(r *bufio.Reader, logger *slog.Logger) (*tts.SynthesizeResult, error) {
	var (
		pcm    bytes.Buffer
		format = audioFormat{rate: 22050, channels: 1, width: 2}
	)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			format = format.update(evt.Data)
		case "audio-chunk":
			pcm.Write(payload)
		case "audio-stop":
			logger.Debug("piper audio-stop", "pcm_bytes", pcm.Len(), "rate", format.rate)
			return &tts.SynthesizeResult{
				Audio:       pcmToWAV(pcm.Bytes(), format),
				ContentType: "audio/wav",
				SampleRate:  format.rate,
				Channels:    format.channels,
			}, nil
		case "error":
			msg, _ := evt.Data["text"].(string)
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("piper error: %s", msg)
		default:
			logger.Debug("piper event ignored", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per request.
func (s *Synthesizer) Close() error { return nil }
