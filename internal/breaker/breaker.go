// Package breaker builds the circuit breakers that guard remote services.
package breaker

import (
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/metrics"
)

// New creates a breaker that opens once at least cfg.MinRequests calls were
// made in the current interval and the failure ratio reaches
// cfg.FailureRatio.
func New(name string, cfg config.BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 3
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	metrics.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}
