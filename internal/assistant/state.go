package assistant

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nadzzz/saathi/internal/entity"
	"github.com/nadzzz/saathi/internal/intent"
)

// Kind tags the variant of a State.
type Kind int

const (
	Idle Kind = iota
	Listening
	Processing
	Speaking
	ConfirmationRequired
	Error
)

var kindNames = [...]string{
	Idle:                 "idle",
	Listening:            "listening",
	Processing:           "processing",
	Speaking:             "speaking",
	ConfirmationRequired: "confirmation_required",
	Error:                "error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Gate says which check asked for a confirmation.
type Gate string

const (
	// GatePolicy is the assistant's own critical-intent list.
	GatePolicy Gate = "policy"
	// GateAction is the dispatcher asking for confirmation in its result.
	GateAction Gate = "action"
)

// State is what the assistant is doing. Only the fields of the current
// Kind are meaningful:
//
//	Listening             Partial (may be empty)
//	Speaking, Error       Message
//	ConfirmationRequired  Message, Intent, Entities, Gate
type State struct {
	Kind     Kind
	Partial  string
	Message  string
	Intent   intent.Intent
	Entities entity.Entities
	Gate     Gate
}

func idleState() State                    { return State{Kind: Idle} }
func listeningState(partial string) State { return State{Kind: Listening, Partial: partial} }
func processingState() State              { return State{Kind: Processing} }
func speakingState(msg string) State      { return State{Kind: Speaking, Message: msg} }
func errorState(msg string) State         { return State{Kind: Error, Message: msg} }

func confirmationState(p PendingAction) State {
	return State{
		Kind:     ConfirmationRequired,
		Message:  p.Message,
		Intent:   p.Intent,
		Entities: p.Entities,
		Gate:     p.Gate,
	}
}

// PendingAction is an action held back until the user confirms it.
type PendingAction struct {
	ID       uuid.UUID
	Intent   intent.Intent
	Entities entity.Entities
	Gate     Gate
	Message  string
	Language string // language to reply in
}
