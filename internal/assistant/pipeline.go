package assistant

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nadzzz/saathi/internal/dispatch"
	"github.com/nadzzz/saathi/internal/intent"
	"github.com/nadzzz/saathi/internal/language"
	"github.com/nadzzz/saathi/internal/metrics"
)

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evConfirm
	evCancel
	evRepeat
	evCapture
	evCaptureEnded
	evOutcome
	evTimer
	evPendingExpired
)

// event is the single input type of the Run loop.
type event struct {
	kind    eventKind
	session uint64
	capture language.Event
	pass    uint64
	outcome outcome
	gen     uint64
	action  uuid.UUID // pending action an expiry refers to
}

type outcomeKind int

const (
	outcomeError outcomeKind = iota
	outcomeSpeak
	outcomePending
	outcomeVoiceConfirm
	outcomeVoiceCancel
)

// outcome is the result of one pipeline pass.
type outcome struct {
	kind    outcomeKind
	message string
	lang    string
	pending *PendingAction
	label   string // metrics outcome label
}

func errorOutcome() outcome {
	return outcome{kind: outcomeError, message: ErrorMessage, label: "error"}
}

func speakOutcome(msg, lang, label string) outcome {
	return outcome{kind: outcomeSpeak, message: msg, lang: lang, label: label}
}

// process resolves and classifies a transcript and decides what happens
// with it. It runs outside the Run goroutine and touches no assistant
// state.
func (a *Assistant) process(ctx context.Context, tr language.Transcript, hasPending bool) outcome {
	ctx, span := a.tracer.Start(ctx, "assistant.process")
	defer span.End()

	tr = a.listener.Resolve(ctx, tr)
	if ctx.Err() != nil {
		return errorOutcome()
	}
	a.logger.Debug("utterance resolved",
		"transcript_id", tr.ID,
		"language", tr.Language,
		"translated", tr.Translated)

	lang := ""
	if a.settings.ReplyInUserLanguage {
		lang = tr.Language
	}

	cls, err := a.classifier.Classify(ctx, tr.Baseline)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		a.logger.Error("classification failed", "transcript_id", tr.ID, "error", err)
		return errorOutcome()
	}
	span.SetAttributes(
		attribute.String("intent", cls.Intent.String()),
		attribute.Float64("confidence", cls.Confidence),
	)
	logger := a.logger.With("transcript_id", tr.ID, "intent", cls.Intent.String(), "confidence", cls.Confidence)

	if !cls.AboveThreshold(a.settings.Threshold) {
		logger.Info("classification below threshold", "threshold", a.settings.Threshold)
		return speakOutcome(RepromptMessage, lang, "reprompt")
	}
	metrics.IntentsTotal.WithLabelValues(cls.Intent.String()).Inc()

	if a.settings.VoiceConfirmation && hasPending {
		switch cls.Intent {
		case intent.Affirm:
			return outcome{kind: outcomeVoiceConfirm, lang: lang, label: "confirm"}
		case intent.Deny:
			return outcome{kind: outcomeVoiceCancel, lang: lang, label: "cancel"}
		}
	}

	req := dispatch.Request{Intent: cls.Intent, Entities: a.extractor.Extract(tr.Baseline, cls.Intent)}
	logger.Info("utterance classified", "slots", req.Entities.Present())

	if a.settings.Critical.Has(cls.Intent) {
		msg := "Should I " + dispatch.Describe(req) + "?"
		return outcome{kind: outcomePending, pending: newPending(req, GatePolicy, msg, lang), label: "confirm"}
	}
	return a.execute(ctx, req, lang)
}

// execute dispatches req and maps the result to what the user hears.
func (a *Assistant) execute(ctx context.Context, req dispatch.Request, lang string) outcome {
	ctx, span := a.tracer.Start(ctx, "assistant.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("intent", req.Intent.String()), attribute.Bool("confirmed", req.Confirmed))

	res, err := a.dispatcher.Dispatch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		a.logger.Error("dispatch failed", "intent", req.Intent.String(), "error", err)
		return errorOutcome()
	}

	switch {
	case res.RequiresPermission:
		return speakOutcome(PermissionMessage, lang, "permission")
	case res.RequiresConfirmation && !req.Confirmed:
		msg := res.Message
		if msg == "" {
			msg = "Should I " + dispatch.Describe(req) + "?"
		}
		return outcome{kind: outcomePending, pending: newPending(req, GateAction, msg, lang), label: "confirm"}
	case res.Success:
		msg := res.Message
		if msg == "" {
			msg = DoneMessage
		}
		return speakOutcome(msg, lang, "success")
	default:
		msg := res.Message
		if msg == "" {
			msg = FailureMessage
		}
		return speakOutcome(msg, lang, "fail")
	}
}
