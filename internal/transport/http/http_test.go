package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nadzzz/saathi/internal/message"
	"github.com/nadzzz/saathi/internal/transport"
)

type fakeController struct {
	mu         sync.Mutex
	commands   []message.Command
	utterances []message.Utterance
	state      message.StateEvent
	submitErr  error
	received   chan struct{}
}

func newFakeController() *fakeController {
	return &fakeController{state: message.StateEvent{State: "idle"}, received: make(chan struct{}, 8)}
}

func (f *fakeController) Command(_ context.Context, cmd message.Command) error {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	f.received <- struct{}{}
	return nil
}

func (f *fakeController) Submit(_ context.Context, u message.Utterance) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.mu.Lock()
	f.utterances = append(f.utterances, u)
	f.mu.Unlock()
	f.received <- struct{}{}
	return nil
}

func (f *fakeController) State() message.StateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func newServer(t *testing.T, ctrl transport.Controller) (*Transport, *httptest.Server) {
	t.Helper()
	tr := New(0, nil)
	srv := httptest.NewServer(tr.Handler(ctrl))
	t.Cleanup(func() {
		tr.hub.close()
		srv.Close()
	})
	return tr, srv
}

func TestCommandRoutes(t *testing.T) {
	ctrl := newFakeController()
	_, srv := newServer(t, ctrl)

	for _, cmd := range []string{"listen", "stop", "confirm", "cancel", "repeat"} {
		resp, err := http.Post(srv.URL+"/assistant/"+cmd, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("%s: status %d", cmd, resp.StatusCode)
		}
	}

	want := []message.Command{"listen", "stop", "confirm", "cancel", "repeat"}
	if len(ctrl.commands) != len(want) {
		t.Fatalf("commands = %v", ctrl.commands)
	}
	for i := range want {
		if ctrl.commands[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, ctrl.commands[i], want[i])
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, srv := newServer(t, newFakeController())

	resp, err := http.Post(srv.URL+"/assistant/dance", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestGetState(t *testing.T) {
	ctrl := newFakeController()
	ctrl.state = message.StateEvent{State: "confirmation_required", Message: "Should I call Daughter?", Intent: "CALL_CONTACT", Gate: "policy"}
	_, srv := newServer(t, ctrl)

	resp, err := http.Get(srv.URL + "/assistant/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got message.StateEvent
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.State != "confirmation_required" || got.Message != "Should I call Daughter?" || got.Gate != "policy" {
		t.Errorf("state = %+v", got)
	}
}

func TestUtteranceJSONAndRawAudio(t *testing.T) {
	ctrl := newFakeController()
	_, srv := newServer(t, ctrl)

	resp, err := http.Post(srv.URL+"/assistant/utterance", "application/json; charset=utf-8",
		strings.NewReader(`{"text":"call my daughter","confidence":0.9}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("json status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/assistant/utterance", bytes.NewReader([]byte("RIFFdata")))
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("X-Saathi-Language", "hi")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("audio status = %d", resp.StatusCode)
	}

	if len(ctrl.utterances) != 2 {
		t.Fatalf("utterances = %d", len(ctrl.utterances))
	}
	if u := ctrl.utterances[0]; u.Text != "call my daughter" || u.Confidence != 0.9 {
		t.Errorf("json utterance = %+v", u)
	}
	if u := ctrl.utterances[1]; string(u.Audio) != "RIFFdata" || u.ContentType != "audio/wav" || u.Language != "hi" {
		t.Errorf("audio utterance = %+v", u)
	}
}

func TestUtteranceErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{transport.ErrEmptyUtterance, http.StatusBadRequest},
		{transport.ErrBusy, http.StatusConflict},
	}
	for _, tc := range cases {
		ctrl := newFakeController()
		ctrl.submitErr = tc.err
		_, srv := newServer(t, ctrl)

		resp, err := http.Post(srv.URL+"/assistant/utterance", "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, resp.StatusCode, tc.want)
		}
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) message.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt message.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	return evt
}

func TestWebSocketStream(t *testing.T) {
	ctrl := newFakeController()
	tr, srv := newServer(t, ctrl)
	conn := dial(t, srv)

	first := readEvent(t, conn)
	if first.Type != message.EventState || first.State.State != "idle" {
		t.Fatalf("first event = %+v", first)
	}

	if err := tr.Publish(context.Background(), message.NewStateEvent(message.StateEvent{State: "listening", Partial: "call my"})); err != nil {
		t.Fatal(err)
	}
	if evt := readEvent(t, conn); evt.State == nil || evt.State.Partial != "call my" {
		t.Errorf("state event = %+v", evt)
	}

	speech := message.SpeechEvent{Text: "Done.", Language: "en"}
	_ = tr.Publish(context.Background(), message.NewSpeechEvent(speech))
	if evt := readEvent(t, conn); evt.Type != message.EventSpeech || evt.Speech.Text != "Done." {
		t.Errorf("speech event = %+v", evt)
	}
}

func TestWebSocketInbound(t *testing.T) {
	ctrl := newFakeController()
	_, srv := newServer(t, ctrl)
	conn := dial(t, srv)
	readEvent(t, conn)

	if err := conn.WriteJSON(map[string]any{"command": "confirm"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(map[string]any{"utterance": map[string]any{"text": "yes"}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-ctrl.received:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for inbound frames")
		}
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.commands) != 1 || ctrl.commands[0] != message.CommandConfirm {
		t.Errorf("commands = %v", ctrl.commands)
	}
	if len(ctrl.utterances) != 1 || ctrl.utterances[0].Text != "yes" {
		t.Errorf("utterances = %+v", ctrl.utterances)
	}
}
