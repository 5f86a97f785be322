package speech

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/nadzzz/saathi/internal/interpreter"
)

type mockTranscriber struct {
	TranscribeFunc func(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error)
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	return m.TranscribeFunc(ctx, audio, contentType, opts)
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatalf("session did not finish, got %v", out)
		}
	}
}

func kinds(events []Event) string {
	s := ""
	for _, e := range events {
		s += e.Kind.String() + " "
	}
	return s
}

func TestFeedTextClip(t *testing.T) {
	f := NewFeed(nil, time.Second, nil)
	f.Prime(Clip{Text: "call my daughter", Partial: true})
	f.Prime(Clip{Text: "  call my daughter please ", Confidence: 0.87})

	ch, err := f.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collect(t, ch)
	if got := kinds(events); got != "ready start final " {
		t.Fatalf("events = %s", got)
	}
	last := events[len(events)-1]
	if last.Text != "call my daughter please" || last.Confidence != 0.87 {
		t.Fatalf("final = %+v", last)
	}
}

func TestFeedPartialThenFinal(t *testing.T) {
	f := NewFeed(nil, time.Second, nil)
	ch, err := f.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if e := <-ch; e.Kind != EventReady {
		t.Fatalf("first event = %v", e.Kind)
	}
	if err := f.Submit(Clip{Text: "set a", Partial: true}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if e := <-ch; e.Kind != EventStart {
		t.Fatalf("second event = %v", e.Kind)
	}
	if e := <-ch; e.Kind != EventPartial || e.Text != "set a" {
		t.Fatalf("third event = %+v", e)
	}
	if err := f.Submit(Clip{Text: "set a timer"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if e := <-ch; e.Kind != EventFinal || e.Confidence != 1 {
		t.Fatalf("fourth event = %+v", e)
	}
}

func TestFeedSubmitNeedsSession(t *testing.T) {
	f := NewFeed(nil, time.Second, nil)
	if err := f.Submit(Clip{Text: "call my daughter"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Submit without session err = %v", err)
	}

	// A rejected clip must not leak into a later session.
	ch, _ := f.Start(context.Background())
	if e := <-ch; e.Kind != EventReady {
		t.Fatalf("first event = %v", e.Kind)
	}
	if err := f.Stop(); err != nil {
		t.Fatal(err)
	}
	if got := kinds(collect(t, ch)); got != "" {
		t.Fatalf("events after stop = %s", got)
	}
}

func TestFeedRejectsInputAfterFinal(t *testing.T) {
	f := NewFeed(nil, 50*time.Millisecond, nil)
	f.Prime(Clip{Text: "call my daughter"})
	ch, _ := f.Start(context.Background())
	events := collect(t, ch)
	if last := events[len(events)-1]; last.Kind != EventFinal || last.Text != "call my daughter" {
		t.Fatalf("last = %+v", last)
	}

	if err := f.Submit(Clip{Text: "what time is it"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Submit after final err = %v", err)
	}

	// The next session waits for fresh input instead of replaying.
	ch, _ = f.Start(context.Background())
	events = collect(t, ch)
	if last := events[len(events)-1]; last.Kind != EventError || last.Err != ErrSpeechTimeout {
		t.Fatalf("second session last = %+v", last)
	}
}

func TestFeedPrimedClipExpires(t *testing.T) {
	f := NewFeed(nil, 50*time.Millisecond, nil)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	f.Prime(Clip{Text: "call my daughter"})
	now = now.Add(time.Minute)

	ch, _ := f.Start(context.Background())
	events := collect(t, ch)
	if last := events[len(events)-1]; last.Kind != EventError || last.Err != ErrSpeechTimeout {
		t.Fatalf("last = %+v", last)
	}
}

func TestFeedPrimeReachesWaitingSession(t *testing.T) {
	f := NewFeed(nil, time.Second, nil)
	ch, _ := f.Start(context.Background())
	if e := <-ch; e.Kind != EventReady {
		t.Fatalf("first event = %v", e.Kind)
	}
	f.Prime(Clip{Text: "what time is it"})
	events := collect(t, ch)
	if last := events[len(events)-1]; last.Kind != EventFinal || last.Text != "what time is it" {
		t.Fatalf("last = %+v", last)
	}
}

func TestFeedSpeechTimeout(t *testing.T) {
	f := NewFeed(nil, 20*time.Millisecond, nil)
	ch, _ := f.Start(context.Background())
	events := collect(t, ch)
	last := events[len(events)-1]
	if last.Kind != EventError || last.Err != ErrSpeechTimeout {
		t.Fatalf("last = %+v", last)
	}
}

func TestFeedEmptyTextIsNoMatch(t *testing.T) {
	f := NewFeed(nil, time.Second, nil)
	f.Prime(Clip{Text: "   "})
	ch, _ := f.Start(context.Background())
	events := collect(t, ch)
	if last := events[len(events)-1]; last.Err != ErrNoMatch {
		t.Fatalf("last = %+v", last)
	}
}

func TestFeedBusyAndStop(t *testing.T) {
	f := NewFeed(nil, time.Minute, nil)
	ch, err := f.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start err = %v", err)
	}
	if err := f.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	collect(t, ch)
	if _, err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start after Stop: %v", err)
	}
	_ = f.Stop()
}

func TestFeedAudioClip(t *testing.T) {
	tr := &mockTranscriber{
		TranscribeFunc: func(_ context.Context, audio []byte, ct string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
			if ct != "audio/wav" || opts.Language != "hi" {
				return nil, fmt.Errorf("unexpected call %q %q", ct, opts.Language)
			}
			return &interpreter.TranscribeResult{Text: "namaste", Confidence: 0.7}, nil
		},
	}
	f := NewFeed(tr, time.Second, nil)
	f.Prime(Clip{Audio: []byte("RIFF"), ContentType: "audio/wav", Language: "hi"})
	ch, _ := f.Start(context.Background())
	events := collect(t, ch)
	last := events[len(events)-1]
	if last.Kind != EventFinal || last.Text != "namaste" || last.Confidence != 0.7 {
		t.Fatalf("last = %+v", last)
	}
}

func TestFeedAudioErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		ct   string
		tr   bool
		want ErrorKind
	}{
		{"no transcriber", nil, "audio/wav", false, ErrClient},
		{"bad content type", nil, "text/plain", true, ErrAudio},
		{"unauthorized", &interpreter.StatusError{Code: 401}, "audio/wav", true, ErrInsufficientPermissions},
		{"rate limited", &interpreter.StatusError{Code: 429}, "audio/wav", true, ErrRecognizerBusy},
		{"server", fmt.Errorf("wrapped: %w", &interpreter.StatusError{Code: 502}), "audio/wav", true, ErrServer},
		{"bad request", &interpreter.StatusError{Code: 400}, "audio/wav", true, ErrClient},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, "audio/wav", true, ErrNetwork},
		{"deadline", context.DeadlineExceeded, "audio/wav", true, ErrNetworkTimeout},
		{"other", errors.New("boom"), "audio/wav", true, ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr interpreter.Transcriber
			if tt.tr {
				tr = &mockTranscriber{
					TranscribeFunc: func(context.Context, []byte, string, interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
						return nil, tt.err
					},
				}
			}
			f := NewFeed(tr, time.Second, nil)
			f.Prime(Clip{Audio: []byte("x"), ContentType: tt.ct})
			ch, _ := f.Start(context.Background())
			events := collect(t, ch)
			last := events[len(events)-1]
			if last.Kind != EventError || last.Err != tt.want {
				t.Fatalf("last = %+v, want %v", last, tt.want)
			}
		})
	}
}

func TestErrorKindMessages(t *testing.T) {
	for k := ErrUnknown; k <= ErrSpeechTimeout; k++ {
		if k.Message() == "" || k.String() == "" {
			t.Errorf("kind %d lacks a name or message", int(k))
		}
	}
	if ErrorKind(99).Message() != ErrUnknown.Message() {
		t.Error("out of range kinds fall back to the unknown message")
	}
}
