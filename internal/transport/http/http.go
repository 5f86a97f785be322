// Package http implements the HTTP/WebSocket transport for saathi.
//
// This transport exposes a REST API for control commands and utterance
// uploads, and a WebSocket endpoint streaming state and speech events. It
// is best suited for the companion app, web clients and phones.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nadzzz/saathi/internal/message"
	"github.com/nadzzz/saathi/internal/transport"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const maxAudioBytes = 25 << 20

// Transport implements transport.Transport over HTTP and WebSocket.
type Transport struct {
	port   int
	hub    *hub
	logger *slog.Logger

	mu     sync.Mutex
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")
	return &Transport{
		port:   port,
		hub:    newHub(logger),
		logger: logger,
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the HTTP routes served for ctrl.
func (t *Transport) Handler(ctrl transport.Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /assistant/state", func(w http.ResponseWriter, r *http.Request) {
		t.handleState(w, r, ctrl)
	})
	mux.HandleFunc("POST /assistant/utterance", func(w http.ResponseWriter, r *http.Request) {
		t.handleUtterance(w, r, ctrl)
	})
	mux.HandleFunc("POST /assistant/{command}", func(w http.ResponseWriter, r *http.Request) {
		t.handleCommand(w, r, ctrl)
	})

	// GET /ws streams state and speech events; clients may send commands back.
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		t.hub.serve(w, r, ctrl)
	})

	// Swagger UI for the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// Listen starts the HTTP server and routes incoming requests to ctrl.
func (t *Transport) Listen(ctx context.Context, ctrl transport.Controller) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	srv := &http.Server{
		Handler:           t.Handler(ctrl),
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	t.logger.Info("http transport listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		t.logger.Info("http transport shutting down")
		_ = t.Close()
	}()

	if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Publish pushes evt to every connected WebSocket client.
func (t *Transport) Publish(_ context.Context, evt message.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	t.hub.broadcast(data)
	return nil
}

// Close gracefully shuts down the HTTP server and drops WebSocket clients.
func (t *Transport) Close() error {
	t.hub.close()
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// handleState serves GET /assistant/state.
//
// @Summary     Current assistant state
// @Tags        assistant
// @Produce     json
// @Success     200  {object}  message.StateEvent
// @Router      /assistant/state [get]
func (t *Transport) handleState(w http.ResponseWriter, _ *http.Request, ctrl transport.Controller) {
	writeJSON(w, http.StatusOK, ctrl.State())
}

// handleCommand serves POST /assistant/{command}.
//
// @Summary     Send a control command
// @Description listen starts a capture session, stop ends it, confirm executes the pending action,
// @Description cancel drops it and repeat speaks the last reply again.
// @Tags        assistant
// @Produce     json
// @Param       command  path      string  true  "Command"  Enums(listen, stop, confirm, cancel, repeat)
// @Success     202      {object}  message.StateEvent  "State when the command was accepted"
// @Failure     404      {string}  string  "Unknown command"
// @Failure     503      {string}  string  "Assistant stopped"
// @Router      /assistant/{command} [post]
func (t *Transport) handleCommand(w http.ResponseWriter, r *http.Request, ctrl transport.Controller) {
	cmd := message.Command(r.PathValue("command"))
	if !cmd.Valid() {
		http.Error(w, "unknown command: "+string(cmd), http.StatusNotFound)
		return
	}
	if err := ctrl.Command(r.Context(), cmd); err != nil {
		t.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ctrl.State())
}

// handleUtterance serves POST /assistant/utterance.
//
// @Summary     Submit an utterance
// @Description Accepts a JSON utterance (pre-transcribed text or base64 audio) or raw audio bytes.
// @Description The utterance opens a capture session when none is active; results arrive as events on /ws.
// @Tags        assistant
// @Accept      json
// @Accept      audio/wav
// @Accept      audio/ogg
// @Produce     json
// @Param       utterance        body    message.Utterance  true   "Utterance (JSON). For raw audio, POST the bytes directly with the appropriate Content-Type."
// @Param       X-Saathi-Language  header  string             false  "ISO-639-1 hint for raw audio uploads"
// @Success     202  {object}  message.StateEvent
// @Failure     400  {string}  string  "Invalid request body"
// @Failure     409  {string}  string  "Assistant is busy"
// @Router      /assistant/utterance [post]
func (t *Transport) handleUtterance(w http.ResponseWriter, r *http.Request, ctrl transport.Controller) {
	var u message.Utterance

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	default:
		// Treat body as raw audio.
		audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes))
		if err != nil {
			http.Error(w, "reading audio: "+err.Error(), http.StatusBadRequest)
			return
		}
		u.Audio = audio
		u.ContentType = mediaType
		u.Language = r.Header.Get("X-Saathi-Language")
	}

	if err := ctrl.Submit(r.Context(), u); err != nil {
		t.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ctrl.State())
}

func (t *Transport) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transport.ErrEmptyUtterance):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, transport.ErrUnknownCommand):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, transport.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		t.logger.Error("request failed", "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
