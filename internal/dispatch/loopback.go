package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/saathi/internal/intent"
)

// Loopback acknowledges every request without doing anything. Critical
// intents are answered with a confirmation request until confirmed, so the
// whole confirmation flow can be exercised without a device.
type Loopback struct {
	critical intent.Set
	logger   *slog.Logger
}

// NewLoopback creates a Loopback dispatcher.
func NewLoopback(critical intent.Set, logger *slog.Logger) *Loopback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loopback{critical: critical, logger: logger.With("component", "dispatch", "dispatcher", "loopback")}
}

func (l *Loopback) Dispatch(_ context.Context, req Request) (Result, error) {
	l.logger.Info("loopback dispatch", "intent", req.Intent.String(), "confirmed", req.Confirmed, "entities", req.Entities)
	if l.critical.Has(req.Intent) && !req.Confirmed {
		return Result{RequiresConfirmation: true, Message: "Should I " + Describe(req) + "?"}, nil
	}
	return Result{Success: true, Message: "Okay, " + Describe(req) + "."}, nil
}

// Describe phrases req as a short verb clause, e.g. "call Daughter".
func Describe(req Request) string {
	e := req.Entities
	switch req.Intent {
	case intent.CallContact:
		if name, ok := e.Contact(); ok {
			return "call " + name
		}
		if num, ok := e.Phone(); ok {
			return "call " + num
		}
	case intent.SendMessage, intent.SendWhatsApp:
		if name, ok := e.Contact(); ok {
			return "send a message to " + name
		}
	case intent.OpenApp:
		if app, ok := e.App(); ok {
			return "open " + app
		}
	case intent.SetAlarm:
		if at, ok := e.Time(); ok {
			return "set an alarm for " + at.Format("3:04 PM")
		}
	case intent.SetTimer:
		if m, ok := e.Duration(); ok {
			return fmt.Sprintf("set a timer for %d minutes", m)
		}
	case intent.Navigate, intent.FindNearby:
		if loc, ok := e.Location(); ok {
			return "find " + loc
		}
	}
	return strings.ToLower(strings.ReplaceAll(req.Intent.String(), "_", " "))
}
