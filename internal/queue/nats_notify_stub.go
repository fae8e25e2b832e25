//go:build !nats

package queue

import "github.com/tomtom215/opentestimony/internal/config"

// NewNATSNotifier is unavailable without the "nats" build tag: callers
// get NoopNotifier instead, so the worker falls back to plain interval
// polling rather than failing to start.
func NewNATSNotifier(_ *config.NATSConfig) (Notifier, error) {
	return NoopNotifier{}, nil
}
