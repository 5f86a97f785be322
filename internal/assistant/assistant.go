// Package assistant is the dialogue state machine. It drives a capture
// session through the language coordinator, gates the classified request
// on confidence and safety, holds critical actions for confirmation, hands
// them to the dispatcher and speaks the outcome before returning to idle.
//
// All mutable state is owned by the goroutine running Run. UI commands,
// capture events, pipeline outcomes and timer firings reach it as events on
// a single channel.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/dispatch"
	"github.com/nadzzz/saathi/internal/entity"
	"github.com/nadzzz/saathi/internal/intent"
	"github.com/nadzzz/saathi/internal/interpreter"
	"github.com/nadzzz/saathi/internal/language"
	"github.com/nadzzz/saathi/internal/metrics"
	"github.com/nadzzz/saathi/internal/speech"
)

// Fixed replies.
const (
	RepromptMessage        = "Sorry, I didn't catch that. Could you say it again?"
	CancelledMessage       = "Okay, cancelled."
	NothingToCancelMessage = "There's nothing to cancel."
	PermissionMessage      = "I need your permission to do that. Please allow it in the phone settings."
	FailureMessage         = "Sorry, I couldn't do that."
	DoneMessage            = "Done."
	ErrorMessage           = "Something went wrong. Please try again."
)

// ErrStopped is returned by commands sent after Run has returned.
var ErrStopped = errors.New("assistant stopped")

// Listener runs capture sessions and resolves their transcripts to the
// baseline language. *language.Coordinator implements it.
type Listener interface {
	Listen(ctx context.Context) (<-chan language.Event, error)
	Stop() error
	Resolve(ctx context.Context, t language.Transcript) language.Transcript
}

// Extractor fills entity slots for a classified utterance.
type Extractor interface {
	Extract(text string, in intent.Intent) entity.Entities
}

// Speaker says text aloud. It must not block.
type Speaker interface {
	Speak(text, lang string)
}

// SpeakerFunc adapts a function to a Speaker.
type SpeakerFunc func(text, lang string)

// Speak calls f.
func (f SpeakerFunc) Speak(text, lang string) { f(text, lang) }

// Settings tunes the state machine.
type Settings struct {
	Threshold         float64
	Critical          intent.Set
	ErrorDelay        time.Duration
	SpeakingFloor     time.Duration
	SpeakingPerChar   time.Duration
	ProcessingTimeout time.Duration
	// PendingTTL drops a pending action nobody confirmed in time. Zero
	// keeps it until confirm or cancel.
	PendingTTL time.Duration
	// SpeakWhenNothingToCancel answers a cancel without a pending action
	// instead of ignoring it.
	SpeakWhenNothingToCancel bool
	// VoiceConfirmation treats AFFIRM and DENY utterances as confirm and
	// cancel while an action is pending.
	VoiceConfirmation bool
	// ReplyInUserLanguage speaks replies in the language of the utterance
	// rather than the baseline.
	ReplyInUserLanguage bool
}

// DefaultSettings returns the built-in tuning.
func DefaultSettings() Settings {
	return Settings{
		Threshold:           intent.DefaultThreshold,
		Critical:            intent.DefaultCritical(),
		ErrorDelay:          3 * time.Second,
		SpeakingFloor:       2 * time.Second,
		SpeakingPerChar:     50 * time.Millisecond,
		ProcessingTimeout:   20 * time.Second,
		PendingTTL:          2 * time.Minute,
		VoiceConfirmation:   true,
		ReplyInUserLanguage: true,
	}
}

// SettingsFromConfig converts the assistant configuration section. An
// empty critical intent list selects the default list.
func SettingsFromConfig(cfg config.AssistantConfig) (Settings, error) {
	s := Settings{
		Threshold:                cfg.ConfidenceThreshold,
		ErrorDelay:               cfg.ErrorDelay,
		SpeakingFloor:            cfg.SpeakingFloor,
		SpeakingPerChar:          cfg.SpeakingPerChar,
		ProcessingTimeout:        cfg.ProcessingTimeout,
		PendingTTL:               cfg.PendingTTL,
		SpeakWhenNothingToCancel: cfg.CancelWithoutAction == "speak",
		VoiceConfirmation:        cfg.VoiceConfirmation,
		ReplyInUserLanguage:      cfg.ReplyInUserLanguage,
	}
	if len(cfg.CriticalIntents) == 0 {
		s.Critical = intent.DefaultCritical()
		return s, nil
	}
	set, err := intent.ParseSet(cfg.CriticalIntents)
	if err != nil {
		return Settings{}, fmt.Errorf("assistant.critical_intents: %w", err)
	}
	s.Critical = set
	return s, nil
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithClock replaces the wall clock used for state timers.
func WithClock(c Clock) Option {
	return func(a *Assistant) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// Assistant is the dialogue orchestrator.
type Assistant struct {
	listener   Listener
	classifier interpreter.Classifier
	extractor  Extractor
	dispatcher dispatch.Dispatcher
	speaker    Speaker
	settings   Settings
	clock      Clock
	logger     *slog.Logger
	tracer     trace.Tracer

	events chan event
	done   chan struct{}

	// Owned by the Run goroutine.
	state        State
	pending      *PendingAction
	pendingTimer Timer
	lastReply    string
	lastLang     string
	session      uint64 // capture session; stale capture events are dropped
	pass         uint64 // pipeline pass; stale outcomes are dropped
	gen          uint64 // timer generation; stale firings are dropped
	timer        Timer
	passStart    time.Time

	mu      sync.RWMutex
	current State
	subs    map[uint64]chan State
	nextSub uint64
	stopped bool
}

// New creates an Assistant. speaker may be nil.
func New(listener Listener, classifier interpreter.Classifier, extractor Extractor, dispatcher dispatch.Dispatcher, speaker Speaker, settings Settings, opts ...Option) *Assistant {
	if speaker == nil {
		speaker = SpeakerFunc(func(string, string) {})
	}
	a := &Assistant{
		listener:   listener,
		classifier: classifier,
		extractor:  extractor,
		dispatcher: dispatcher,
		speaker:    speaker,
		settings:   settings,
		clock:      realClock{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("github.com/nadzzz/saathi/internal/assistant"),
		events:     make(chan event, 32),
		done:       make(chan struct{}),
		state:      idleState(),
		current:    idleState(),
		subs:       make(map[uint64]chan State),
	}
	for _, o := range opts {
		o(a)
	}
	a.logger = a.logger.With("component", "assistant")
	return a
}

// StartListening begins a capture session. It is ignored while an
// utterance is being processed.
func (a *Assistant) StartListening() error { return a.post(event{kind: evStart}) }

// StopListening ends the capture session, if any.
func (a *Assistant) StopListening() error { return a.post(event{kind: evStop}) }

// ConfirmAction executes the pending action. It does nothing when no
// action is pending.
func (a *Assistant) ConfirmAction() error { return a.post(event{kind: evConfirm}) }

// CancelAction drops the pending action.
func (a *Assistant) CancelAction() error { return a.post(event{kind: evCancel}) }

// RepeatLast speaks the last reply again. The pending action, if any, is
// kept.
func (a *Assistant) RepeatLast() error { return a.post(event{kind: evRepeat}) }

// Current returns the latest state.
func (a *Assistant) Current() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Subscribe returns a channel receiving every state change, starting with
// the current state. Slow subscribers lose intermediate states, never the
// latest one. The channel is closed when ctx ends or the assistant stops.
func (a *Assistant) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 16)
	a.mu.Lock()
	if a.stopped {
		close(ch)
		a.mu.Unlock()
		return ch
	}
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	ch <- a.current
	a.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-a.done:
		}
		a.mu.Lock()
		if c, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(c)
		}
		a.mu.Unlock()
	}()
	return ch
}

// Run drives the state machine until ctx ends.
func (a *Assistant) Run(ctx context.Context) error {
	a.logger.Info("assistant started", "threshold", a.settings.Threshold, "critical", a.settings.Critical.Names())
	defer a.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-a.events:
			a.handle(ctx, ev)
		}
	}
}

func (a *Assistant) shutdown() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.dropPending()
	if err := a.listener.Stop(); err != nil {
		a.logger.Warn("stopping capture", "error", err)
	}
	a.mu.Lock()
	a.stopped = true
	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
	a.mu.Unlock()
	close(a.done)
	a.logger.Info("assistant stopped")
}

func (a *Assistant) post(ev event) error {
	select {
	case a.events <- ev:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

func (a *Assistant) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evStart:
		a.onStart(ctx)
	case evStop:
		a.onStop()
	case evConfirm:
		if a.state.Kind != Processing {
			a.confirmPending(ctx)
		}
	case evCancel:
		if a.state.Kind != Processing {
			a.cancelPending()
		}
	case evRepeat:
		a.onRepeat()
	case evCapture:
		a.onCapture(ctx, ev)
	case evCaptureEnded:
		if ev.session == a.session && a.state.Kind == Listening {
			a.logger.Warn("capture ended without a result")
			a.enterError(speech.ErrUnknown.Message())
		}
	case evOutcome:
		a.onOutcome(ctx, ev)
	case evTimer:
		a.onTimer(ev)
	case evPendingExpired:
		a.onPendingExpired(ev)
	}
}

func (a *Assistant) onStart(ctx context.Context) {
	if a.state.Kind == Processing {
		a.logger.Debug("start ignored while processing")
		return
	}
	a.session++
	session := a.session

	ch, err := a.listener.Listen(ctx)
	if err != nil {
		a.logger.Error("starting capture failed", "error", err)
		kind := speech.ErrClient
		if errors.Is(err, speech.ErrBusy) {
			kind = speech.ErrRecognizerBusy
		}
		metrics.CaptureErrorsTotal.WithLabelValues(kind.String()).Inc()
		a.enterError(kind.Message())
		return
	}
	a.transition(listeningState(""))

	go func() {
		for ev := range ch {
			if a.post(event{kind: evCapture, session: session, capture: ev}) != nil {
				return
			}
		}
		_ = a.post(event{kind: evCaptureEnded, session: session})
	}()
}

func (a *Assistant) onStop() {
	a.session++
	if err := a.listener.Stop(); err != nil {
		a.logger.Warn("stopping capture", "error", err)
	}
	if a.state.Kind == Listening {
		a.transition(idleState())
	}
}

func (a *Assistant) onRepeat() {
	if a.state.Kind == Processing || a.lastReply == "" {
		return
	}
	if a.state.Kind == Listening {
		a.onStop()
	}
	a.speak(a.lastReply, a.lastLang)
}

func (a *Assistant) onCapture(ctx context.Context, ev event) {
	if ev.session != a.session || a.state.Kind != Listening {
		return
	}
	c := ev.capture
	switch c.Kind {
	case speech.EventPartial:
		a.transition(listeningState(c.Partial))
	case speech.EventFinal:
		a.logger.Info("utterance captured",
			"transcript_id", c.Transcript.ID,
			"confidence", c.Transcript.Confidence)
		tr := c.Transcript
		hasPending := a.pending != nil
		a.startPass(ctx, func(ctx context.Context) outcome {
			return a.process(ctx, tr, hasPending)
		})
	case speech.EventError:
		a.logger.Warn("capture failed", "kind", c.Err.String())
		a.enterError(c.Err.Message())
	}
}

// startPass enters Processing and runs fn in a helper goroutine. The
// outcome is delivered back as an event tagged with the pass number.
func (a *Assistant) startPass(ctx context.Context, fn func(context.Context) outcome) {
	a.pass++
	pass := a.pass
	a.passStart = time.Now()
	a.transitionTimed(processingState(), a.settings.ProcessingTimeout)

	go func() {
		pctx, cancel := context.WithTimeout(ctx, a.settings.ProcessingTimeout)
		defer cancel()

		var out outcome
		func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("pipeline panicked", "panic", r)
					out = errorOutcome()
				}
			}()
			out = fn(pctx)
		}()
		_ = a.post(event{kind: evOutcome, pass: pass, outcome: out})
	}()
}

func (a *Assistant) onOutcome(ctx context.Context, ev event) {
	if ev.pass != a.pass || a.state.Kind != Processing {
		return
	}
	out := ev.outcome
	metrics.PipelineLatency.Observe(time.Since(a.passStart).Seconds())
	metrics.UtterancesTotal.WithLabelValues(out.label).Inc()

	switch out.kind {
	case outcomeSpeak:
		a.speak(out.message, out.lang)
	case outcomePending:
		a.hold(*out.pending)
	case outcomeVoiceConfirm:
		if !a.confirmPending(ctx) {
			a.speak(RepromptMessage, out.lang)
		}
	case outcomeVoiceCancel:
		a.cancelPending()
		if a.state.Kind == Processing {
			a.speak(NothingToCancelMessage, out.lang)
		}
	default:
		a.enterError(out.message)
	}
}

func (a *Assistant) onTimer(ev event) {
	if ev.gen != a.gen {
		return
	}
	switch a.state.Kind {
	case Speaking, Error:
		a.transition(idleState())
	case Processing:
		a.logger.Error("pipeline timed out", "timeout", a.settings.ProcessingTimeout)
		a.pass++
		metrics.UtterancesTotal.WithLabelValues("error").Inc()
		a.enterError(ErrorMessage)
	}
}

func (a *Assistant) onPendingExpired(ev event) {
	if a.pending == nil || a.pending.ID != ev.action {
		return
	}
	a.logger.Info("pending action expired", "action_id", a.pending.ID, "intent", a.pending.Intent.String(), "ttl", a.settings.PendingTTL)
	a.dropPending()
	if a.state.Kind == ConfirmationRequired {
		a.transition(idleState())
	}
}

// dropPending clears the pending action and its expiry timer.
func (a *Assistant) dropPending() {
	if a.pendingTimer != nil {
		a.pendingTimer.Stop()
		a.pendingTimer = nil
	}
	a.pending = nil
}

// confirmPending dispatches the pending action as confirmed. It reports
// whether there was one.
func (a *Assistant) confirmPending(ctx context.Context) bool {
	if a.pending == nil {
		return false
	}
	p := *a.pending
	a.dropPending()
	a.session++
	if err := a.listener.Stop(); err != nil {
		a.logger.Warn("stopping capture", "error", err)
	}
	a.logger.Info("action confirmed", "action_id", p.ID, "intent", p.Intent.String(), "gate", p.Gate)
	a.startPass(ctx, func(ctx context.Context) outcome {
		return a.execute(ctx, dispatch.Request{Intent: p.Intent, Entities: p.Entities, Confirmed: true}, p.Language)
	})
	return true
}

func (a *Assistant) cancelPending() {
	if a.pending == nil {
		if a.settings.SpeakWhenNothingToCancel && a.state.Kind != Processing {
			a.speak(NothingToCancelMessage, a.lastLang)
		}
		return
	}
	a.logger.Info("action cancelled", "action_id", a.pending.ID, "intent", a.pending.Intent.String())
	lang := a.pending.Language
	a.dropPending()
	if a.state.Kind == Listening {
		a.onStop()
	}
	a.speak(CancelledMessage, lang)
}

// hold stashes p as the single pending action and asks the user.
func (a *Assistant) hold(p PendingAction) {
	if a.pending != nil {
		a.logger.Info("pending action replaced", "old", a.pending.Intent.String(), "new", p.Intent.String())
	}
	a.dropPending()
	a.pending = &p
	if ttl := a.settings.PendingTTL; ttl > 0 {
		id := p.ID
		a.pendingTimer = a.clock.AfterFunc(ttl, func() {
			_ = a.post(event{kind: evPendingExpired, action: id})
		})
	}
	a.lastReply, a.lastLang = p.Message, p.Language
	a.transition(confirmationState(p))
	a.speaker.Speak(p.Message, p.Language)
}

func (a *Assistant) speak(msg, lang string) {
	a.lastReply, a.lastLang = msg, lang
	a.transitionTimed(speakingState(msg), a.speakingDelay(msg))
	a.speaker.Speak(msg, lang)
}

func (a *Assistant) enterError(msg string) {
	a.transitionTimed(errorState(msg), a.settings.ErrorDelay)
}

func (a *Assistant) speakingDelay(msg string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(msg)) * a.settings.SpeakingPerChar
	if d < a.settings.SpeakingFloor {
		return a.settings.SpeakingFloor
	}
	return d
}

// transition replaces the state and invalidates any armed timer.
func (a *Assistant) transition(s State) { a.transitionTimed(s, 0) }

// transitionTimed is transition with a timer armed for the new state when
// d is positive. The timer exists before observers see the state.
func (a *Assistant) transitionTimed(s State, d time.Duration) {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	if d > 0 {
		a.arm(d)
	}

	prev := a.state.Kind
	a.state = s
	metrics.StateTransitionsTotal.WithLabelValues(s.Kind.String()).Inc()
	if prev != s.Kind {
		a.logger.Debug("state changed", "from", prev.String(), "to", s.Kind.String())
	}

	a.mu.Lock()
	a.current = s
	for _, ch := range a.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
	a.mu.Unlock()
}

// arm schedules a timer event for the current generation.
func (a *Assistant) arm(d time.Duration) {
	gen := a.gen
	a.timer = a.clock.AfterFunc(d, func() {
		_ = a.post(event{kind: evTimer, gen: gen})
	})
}

// newPending builds a pending action for req.
func newPending(req dispatch.Request, gate Gate, msg, lang string) *PendingAction {
	return &PendingAction{
		ID:       uuid.New(),
		Intent:   req.Intent,
		Entities: req.Entities,
		Gate:     gate,
		Message:  msg,
		Language: lang,
	}
}
