// Package modelclient holds the HTTP clients the Indexing Pipeline uses to
// reach the external vision, text, transcription, captioning, and face
// detection model services. None of these models run in-process; every
// call crosses the network and is wrapped in a circuit breaker so a
// wedged model service fails fast instead of stalling the worker loop
// (spec.md §4.4 step 3, §6 Model/AI integration).
package modelclient

import (
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/logging"
	"github.com/tomtom215/opentestimony/internal/metrics"
)

// newBreaker builds a per-endpoint circuit breaker from ModelClientConfig,
// following the same ReadyToTrip/OnStateChange shape as the teacher's
// Tautulli circuit breaker, parameterized instead of hardcoded so every
// model client shares one config block.
func newBreaker(name string, cfg *config.ModelClientConfig) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Warn().Str("breaker", breakerName).Str("from", fromStr).Str("to", toStr).Msg("model client circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(breakerName, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)
			}
		},
	})
}

// execute runs fn through the breaker, recording request-outcome metrics
// the same way regardless of which model client called it.
func execute[T any](cb *gobreaker.CircuitBreaker[any], name string, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(cb.Counts().ConsecutiveFailures))
		}
		var zero T
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	return result.(T), nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
