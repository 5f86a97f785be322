// Package speech defines the boundary to a speech recognizer: a capture
// session is started, and the recognizer reports its progress as a stream
// of tagged events until it delivers a final transcript or an error.
package speech

import (
	"context"
	"errors"
	"fmt"
)

// ErrBusy is returned when a capture is started while another is active.
var ErrBusy = errors.New("recognizer busy")

// EventKind tags a recognizer event.
type EventKind int

const (
	EventReady EventKind = iota
	EventStart
	EventPartial
	EventFinal
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventStart:
		return "start"
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one step of a capture session. Text and Confidence are set for
// partial and final events, Err for error events.
type Event struct {
	Kind       EventKind
	Text       string
	Confidence float64
	Err        ErrorKind
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Kind == EventFinal || e.Kind == EventError
}

// Recognizer captures one utterance per session.
type Recognizer interface {
	// Start begins a capture session. The returned channel is closed after
	// a terminal event or when the session is stopped.
	Start(ctx context.Context) (<-chan Event, error)

	// Stop ends the active session, if any. It is safe to call repeatedly.
	Stop() error
}

// ErrorKind enumerates capture failures. All are terminal for the attempt.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrAudio
	ErrClient
	ErrInsufficientPermissions
	ErrNetwork
	ErrNetworkTimeout
	ErrNoMatch
	ErrRecognizerBusy
	ErrServer
	ErrSpeechTimeout
)

var errorKinds = [...]struct {
	name    string
	message string
}{
	ErrUnknown:                 {"unknown", "Something went wrong. Please try again."},
	ErrAudio:                   {"audio", "I couldn't hear the microphone. Please try again."},
	ErrClient:                  {"client", "Something went wrong on this device. Please try again."},
	ErrInsufficientPermissions: {"insufficient_permissions", "I need microphone permission to listen."},
	ErrNetwork:                 {"network", "I can't reach the network right now."},
	ErrNetworkTimeout:          {"network_timeout", "The network is too slow right now. Please try again."},
	ErrNoMatch:                 {"no_match", "Sorry, I didn't understand that."},
	ErrRecognizerBusy:          {"busy", "I'm still busy. Please wait a moment."},
	ErrServer:                  {"server", "The speech service had a problem. Please try again."},
	ErrSpeechTimeout:           {"speech_timeout", "I didn't hear anything."},
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(errorKinds) {
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
	return errorKinds[k].name
}

// Message returns the text spoken to the user for the failure.
func (k ErrorKind) Message() string {
	if k < 0 || int(k) >= len(errorKinds) {
		return errorKinds[ErrUnknown].message
	}
	return errorKinds[k].message
}
