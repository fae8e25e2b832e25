package queue

import "context"

// Notifier wakes the Indexing Worker early instead of making it wait out
// its full poll interval. The indexing_jobs table stays the source of
// truth either way, so a dropped or delayed notification only costs the
// worker a poll cycle, never correctness (spec.md §4.3, §4.4).
type Notifier interface {
	Notify(ctx context.Context, mediaID string)
}

// NoopNotifier is the default when NATS wakeup is disabled or unbuilt:
// the worker falls back to plain interval polling.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string) {}
