// Package message defines the wire types exchanged with UI clients over
// every transport.
package message

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType tags an outbound Event.
type EventType string

const (
	// EventState carries a StateEvent.
	EventState EventType = "state"

	// EventSpeech carries a SpeechEvent.
	EventSpeech EventType = "speech"
)

// Event is the envelope pushed to clients (WebSocket, MQTT).
type Event struct {
	// ID is a unique identifier for this event (UUID).
	ID string `json:"id"`

	Type      EventType    `json:"type"`
	State     *StateEvent  `json:"state,omitempty"`
	Speech    *SpeechEvent `json:"speech,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewStateEvent wraps s in an envelope.
func NewStateEvent(s StateEvent) Event {
	return Event{ID: uuid.NewString(), Type: EventState, State: &s, Timestamp: time.Now().UTC()}
}

// NewSpeechEvent wraps s in an envelope.
func NewSpeechEvent(s SpeechEvent) Event {
	return Event{ID: uuid.NewString(), Type: EventSpeech, Speech: &s, Timestamp: time.Now().UTC()}
}

// StateEvent is the assistant state as seen by clients.
type StateEvent struct {
	// State is one of idle, listening, processing, speaking,
	// confirmation_required, error.
	State string `json:"state"`

	// Partial is the in-progress transcript while listening.
	Partial string `json:"partial,omitempty"`

	// Message is what the assistant is saying, asking, or reporting.
	Message string `json:"message,omitempty"`

	// Intent and Entities describe the action awaiting confirmation.
	Intent   string          `json:"intent,omitempty"`
	Entities json.RawMessage `json:"entities,omitempty" swaggertype:"object"`

	// Gate is "policy" when the assistant's own critical-intent list asked
	// for confirmation and "action" when the dispatcher did.
	Gate string `json:"gate,omitempty"`
}

// SpeechEvent is a reply the device should speak or display.
type SpeechEvent struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`

	// Audio is synthesized speech as a base64-encoded string. Empty when
	// speech synthesis is disabled or failed.
	Audio       string `json:"audio,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// SetAudioBytes base64-encodes raw audio bytes into Audio.
func (s *SpeechEvent) SetAudioBytes(audio []byte) {
	if len(audio) > 0 {
		s.Audio = base64.StdEncoding.EncodeToString(audio)
	}
}

// Utterance is user input submitted by a client instead of live capture.
// Either Text or Audio is set.
type Utterance struct {
	// Text is a pre-transcribed utterance (bypasses transcription).
	Text string `json:"text,omitempty"`

	// Partial marks an in-progress transcript.
	Partial bool `json:"partial,omitempty"`

	// Confidence of Text, 0..1. Zero is taken as certain.
	Confidence float64 `json:"confidence,omitempty"`

	// Audio is the raw audio payload, base64-encoded in JSON.
	Audio []byte `json:"audio,omitempty"`

	// ContentType is the MIME type of the audio (e.g., "audio/wav", "audio/ogg").
	ContentType string `json:"content_type,omitempty"`

	// Language is an optional ISO-639-1 hint for transcription.
	Language string `json:"language,omitempty"`
}

// HasAudio returns true if the utterance contains an audio payload.
func (u *Utterance) HasAudio() bool {
	return len(u.Audio) > 0
}

// Command is a UI control request.
type Command string

const (
	CommandListen  Command = "listen"
	CommandStop    Command = "stop"
	CommandConfirm Command = "confirm"
	CommandCancel  Command = "cancel"
	CommandRepeat  Command = "repeat"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	switch c {
	case CommandListen, CommandStop, CommandConfirm, CommandCancel, CommandRepeat:
		return true
	}
	return false
}
