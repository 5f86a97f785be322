// Package transport defines the interface for pluggable UI transports.
//
// Each transport (HTTP/WebSocket, MQTT, gRPC) accepts control commands and
// utterances from device clients and pushes state and speech events back.
// Transports only see the Controller contract; they never touch the
// assistant directly.
package transport

import (
	"context"
	"errors"

	"github.com/nadzzz/saathi/internal/message"
)

var (
	// ErrUnknownCommand is returned for a command outside message.Command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrEmptyUtterance is returned when an utterance has neither text nor audio.
	ErrEmptyUtterance = errors.New("utterance has no text or audio")

	// ErrBusy is returned when input arrives while an utterance is being processed.
	ErrBusy = errors.New("assistant is busy")
)

// Controller is what a transport drives.
type Controller interface {
	// Command applies a UI control request.
	Command(ctx context.Context, cmd message.Command) error

	// Submit hands user input to the assistant, opening a capture session
	// when none is active.
	Submit(ctx context.Context, u message.Utterance) error

	// State returns the current assistant state.
	State() message.StateEvent
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http", "mqtt").
	Name() string

	// Listen starts accepting client requests and routes them to ctrl.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, ctrl Controller) error

	// Publish pushes an event to the transport's connected clients.
	Publish(ctx context.Context, evt message.Event) error

	// Close gracefully shuts down the transport.
	Close() error
}
