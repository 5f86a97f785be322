package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nadzzz/saathi/internal/assistant"
	"github.com/nadzzz/saathi/internal/message"
)

// Broadcaster fans events out to every registered transport.
type Broadcaster struct {
	logger *slog.Logger

	mu         sync.RWMutex
	transports []Transport
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{logger: logger.With("component", "broadcast")}
}

// Add registers a transport.
func (b *Broadcaster) Add(t Transport) {
	b.mu.Lock()
	b.transports = append(b.transports, t)
	b.mu.Unlock()
}

// Publish sends evt to every transport. Failures are logged.
func (b *Broadcaster) Publish(ctx context.Context, evt message.Event) {
	b.mu.RLock()
	ts := b.transports
	b.mu.RUnlock()

	for _, t := range ts {
		if err := t.Publish(ctx, evt); err != nil {
			b.logger.Warn("publish failed", "transport", t.Name(), "event", evt.Type, "error", err)
		}
	}
}

// Run publishes every state received on states until the channel closes
// or ctx ends.
func (b *Broadcaster) Run(ctx context.Context, states <-chan assistant.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			b.Publish(ctx, message.NewStateEvent(StateEvent(s)))
		}
	}
}
