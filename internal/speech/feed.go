package speech

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/saathi/internal/interpreter"
)

// Clip is one piece of user input pushed into a Feed by a transport.
// Either Text or Audio is set. Partial text clips are shown to the user
// while they keep talking; the session ends on the first non-partial clip.
type Clip struct {
	Text        string
	Partial     bool
	Confidence  float64
	Audio       []byte
	ContentType string
	Language    string
}

// ErrNoSession is returned by Submit when no capture session is waiting
// for input.
var ErrNoSession = errors.New("no capture session accepting input")

// Feed is a Recognizer whose input is pushed by transports instead of
// being read from a microphone. Audio clips are transcribed with the
// configured backend.
type Feed struct {
	transcriber interpreter.Transcriber
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	clips  chan Clip // input of the live session; nil once it took its final clip
	next   *Clip     // primed for the next session
	nextAt time.Time
}

// NewFeed creates a Feed. A nil transcriber limits the feed to text clips.
// timeout bounds how long a session waits for input.
func NewFeed(transcriber interpreter.Transcriber, timeout time.Duration, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		transcriber: transcriber,
		timeout:     timeout,
		now:         time.Now,
		logger:      logger.With("component", "speech"),
	}
}

// Submit hands a clip to the live session. Only the newest unread clip is
// kept. It returns ErrNoSession when no session is running or the running
// one already took its final clip.
func (f *Feed) Submit(c Clip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clips == nil {
		return ErrNoSession
	}
	f.offer(f.clips, c)
	return nil
}

// Prime holds a clip for the next session, replacing any clip held
// before. A session already waiting for input receives it directly. A
// primed clip older than the session timeout is discarded by Start.
func (f *Feed) Prime(c Clip) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clips != nil {
		f.offer(f.clips, c)
		return
	}
	if f.next != nil {
		f.logger.Debug("replacing primed clip", "partial", f.next.Partial)
	}
	f.next = &c
	f.nextAt = f.now()
}

func (f *Feed) offer(ch chan Clip, c Clip) {
	for {
		select {
		case ch <- c:
			return
		default:
		}
		select {
		case old := <-ch:
			f.logger.Debug("dropping unread clip", "partial", old.Partial)
		default:
		}
	}
}

// Start begins a capture session. A second Start before the first session
// ends returns ErrBusy.
func (f *Feed) Start(ctx context.Context) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		return nil, ErrBusy
	}

	clips := make(chan Clip, 1)
	if f.next != nil {
		if age := f.now().Sub(f.nextAt); age <= f.timeout {
			clips <- *f.next
		} else {
			f.logger.Debug("discarding expired primed clip", "age", age)
		}
		f.next = nil
	}

	sctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, 4)
	done := make(chan struct{})
	f.cancel = cancel
	f.done = done
	f.clips = clips

	go f.run(sctx, clips, out, done)
	return out, nil
}

// Stop cancels the active session and waits for it to wind down.
func (f *Feed) Stop() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// closeInput stops the session from accepting clips. Clips that raced in
// after the final one are dropped.
func (f *Feed) closeInput(clips chan Clip) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clips != clips {
		return
	}
	f.clips = nil
	for {
		select {
		case c := <-clips:
			f.logger.Debug("dropping clip submitted after the final one", "partial", c.Partial)
		default:
			return
		}
	}
}

func (f *Feed) run(ctx context.Context, clips chan Clip, out chan<- Event, done chan struct{}) {
	defer func() {
		f.closeInput(clips)
		f.mu.Lock()
		if f.done == done {
			f.cancel()
			f.cancel = nil
			f.done = nil
		}
		f.mu.Unlock()
		close(out)
		close(done)
	}()

	emit := func(e Event) bool {
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Kind: EventReady}) {
		return
	}

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()
	started := false

	for {
		var clip Clip
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			f.logger.Debug("no speech before timeout", "timeout", f.timeout)
			emit(Event{Kind: EventError, Err: ErrSpeechTimeout})
			return
		case clip = <-clips:
		}

		if !started {
			started = true
			if !emit(Event{Kind: EventStart}) {
				return
			}
		}

		if clip.Partial && len(clip.Audio) == 0 {
			if !emit(Event{Kind: EventPartial, Text: clip.Text, Confidence: clip.Confidence}) {
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(f.timeout)
			continue
		}

		f.closeInput(clips)
		evt := f.recognize(ctx, clip)
		if ctx.Err() != nil {
			return
		}
		emit(evt)
		return
	}
}

func (f *Feed) recognize(ctx context.Context, clip Clip) Event {
	if len(clip.Audio) == 0 {
		return finalEvent(clip.Text, clip.Confidence)
	}
	if f.transcriber == nil {
		f.logger.Warn("audio clip received but no transcriber is configured")
		return Event{Kind: EventError, Err: ErrClient}
	}
	if ct := clip.ContentType; ct != "" && !strings.HasPrefix(ct, "audio/") && ct != "application/octet-stream" {
		return Event{Kind: EventError, Err: ErrAudio}
	}

	res, err := f.transcriber.Transcribe(ctx, clip.Audio, clip.ContentType, interpreter.TranscribeOpts{
		Language: clip.Language,
	})
	if err != nil {
		kind := ClassifyError(err)
		f.logger.Warn("transcription failed", "error", err, "kind", kind)
		return Event{Kind: EventError, Err: kind}
	}
	return finalEvent(res.Text, res.Confidence)
}

func finalEvent(text string, confidence float64) Event {
	text = strings.TrimSpace(text)
	if text == "" {
		return Event{Kind: EventError, Err: ErrNoMatch}
	}
	if confidence <= 0 {
		confidence = 1
	}
	return Event{Kind: EventFinal, Text: text, Confidence: confidence}
}

// statusCoder is implemented by backend errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// ClassifyError maps a recognition backend error onto a capture error kind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrUnknown
	}
	if errors.Is(err, ErrBusy) {
		return ErrRecognizerBusy
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		switch {
		case code == 401 || code == 403:
			return ErrInsufficientPermissions
		case code == 408 || code == 504:
			return ErrNetworkTimeout
		case code == 409 || code == 429:
			return ErrRecognizerBusy
		case code >= 500:
			return ErrServer
		case code >= 400:
			return ErrClient
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetworkTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ErrNetworkTimeout
		}
		return ErrNetwork
	}
	return ErrUnknown
}
