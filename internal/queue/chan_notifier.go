package queue

import "context"

// ChanNotifier wakes an in-process worker loop immediately on enqueue,
// the common case since the bridge's webhook handler and its indexing
// worker run in the same binary. NATS (nats_notify.go) exists for the
// distributed deployment where that isn't true.
type ChanNotifier struct {
	ch chan string
}

// NewChanNotifier builds a ChanNotifier with a small buffer; a full
// buffer just means the worker was already about to wake up, so Notify
// drops rather than blocks.
func NewChanNotifier() *ChanNotifier {
	return &ChanNotifier{ch: make(chan string, 64)}
}

func (c *ChanNotifier) Notify(_ context.Context, mediaID string) {
	select {
	case c.ch <- mediaID:
	default:
	}
}

// C returns the wakeup channel for a worker loop to select on.
func (c *ChanNotifier) C() <-chan string { return c.ch }
