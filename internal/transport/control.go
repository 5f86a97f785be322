package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nadzzz/saathi/internal/assistant"
	"github.com/nadzzz/saathi/internal/message"
	"github.com/nadzzz/saathi/internal/speech"
)

// Assistant is the orchestrator surface a Control drives.
type Assistant interface {
	StartListening() error
	StopListening() error
	ConfirmAction() error
	CancelAction() error
	RepeatLast() error
	Current() assistant.State
}

// ClipSink receives utterances pushed by clients. *speech.Feed
// implements it.
type ClipSink interface {
	// Submit hands c to the live capture session.
	Submit(c speech.Clip) error
	// Prime holds c for the session about to start.
	Prime(c speech.Clip)
}

// Control implements Controller on top of an Assistant and the speech
// feed it listens to.
type Control struct {
	assistant Assistant
	sink      ClipSink
	logger    *slog.Logger
}

// NewControl creates a Control.
func NewControl(a Assistant, sink ClipSink, logger *slog.Logger) *Control {
	if logger == nil {
		logger = slog.Default()
	}
	return &Control{assistant: a, sink: sink, logger: logger.With("component", "control")}
}

// Command applies a UI control request.
func (c *Control) Command(_ context.Context, cmd message.Command) error {
	c.logger.Debug("command", "command", cmd)
	switch cmd {
	case message.CommandListen:
		return c.assistant.StartListening()
	case message.CommandStop:
		return c.assistant.StopListening()
	case message.CommandConfirm:
		return c.assistant.ConfirmAction()
	case message.CommandCancel:
		return c.assistant.CancelAction()
	case message.CommandRepeat:
		return c.assistant.RepeatLast()
	default:
		return ErrUnknownCommand
	}
}

// Submit delivers the utterance to the live capture session, or opens one
// for it when the assistant is not listening. Input arriving after the
// session took its final utterance is rejected with ErrBusy.
func (c *Control) Submit(_ context.Context, u message.Utterance) error {
	if u.Text == "" && !u.HasAudio() {
		return ErrEmptyUtterance
	}
	kind := c.assistant.Current().Kind
	if kind == assistant.Processing {
		return ErrBusy
	}

	clip := speech.Clip{
		Text:        u.Text,
		Partial:     u.Partial,
		Confidence:  u.Confidence,
		Audio:       u.Audio,
		ContentType: u.ContentType,
		Language:    u.Language,
	}
	c.logger.Debug("utterance submitted", "text_length", len(u.Text), "audio_bytes", len(u.Audio), "partial", u.Partial)

	if kind == assistant.Listening {
		if err := c.sink.Submit(clip); err != nil {
			if errors.Is(err, speech.ErrNoSession) {
				return ErrBusy
			}
			return err
		}
		return nil
	}
	c.sink.Prime(clip)
	return c.assistant.StartListening()
}

// State returns the current assistant state.
func (c *Control) State() message.StateEvent {
	return StateEvent(c.assistant.Current())
}

// StateEvent converts an assistant state to its wire form.
func StateEvent(s assistant.State) message.StateEvent {
	evt := message.StateEvent{
		State:   s.Kind.String(),
		Partial: s.Partial,
		Message: s.Message,
	}
	if s.Kind == assistant.ConfirmationRequired {
		evt.Intent = s.Intent.String()
		evt.Gate = string(s.Gate)
		if raw, err := json.Marshal(s.Entities); err == nil {
			evt.Entities = raw
		}
	}
	return evt
}
