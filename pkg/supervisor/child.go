package supervisor

import (
	"context"
	"sync"
)

// Child is the handle to a launched worker. It is valid from launch until the
// worker's message loop exits; after that it can still be inspected for the
// exit cause.
type Child struct {
	id  string
	uid string

	mailbox chan any

	ctx      context.Context
	cancelFn context.CancelFunc
	killOnce sync.Once

	// done is closed after cause is set; cause is immutable afterwards
	done  chan struct{}
	cause error

	subMu sync.Mutex
	subs  []*ExitSubscription
}

// ID returns the child identifier from its spec.
func (c *Child) ID() string {
	return c.id
}

// UID returns the unique launch identifier. Two launches of the same spec ID
// have distinct UIDs.
func (c *Child) UID() string {
	return c.uid
}

// Send delivers a message to the child's mailbox without blocking the caller.
// It reports false if the message was dropped: the child already exited or
// its mailbox is full.
func (c *Child) Send(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.mailbox <- msg:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Done returns a channel closed when the child's message loop has exited.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Alive reports whether the child's message loop is still running.
func (c *Child) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// ExitCause returns the cause the child exited with, or nil while it is still
// running.
func (c *Child) ExitCause() error {
	select {
	case <-c.done:
		return c.cause
	default:
		return nil
	}
}

// kill forcibly stops the child. Idempotent; returns immediately without
// waiting for the loop to observe the cancellation.
func (c *Child) kill() {
	c.killOnce.Do(c.cancelFn)
}

// exit records the cause, closes done, and notifies subscribers. Called
// exactly once, from the message loop goroutine.
func (c *Child) exit(cause error) {
	c.cause = cause
	close(c.done)

	c.subMu.Lock()
	subs := c.subs
	c.subs = nil
	c.subMu.Unlock()

	for _, sub := range subs {
		sub.deliver(cause)
	}
}

// subscribe registers an exit subscription. If the child has already exited,
// the stored cause is delivered immediately.
func (c *Child) subscribe() *ExitSubscription {
	sub := &ExitSubscription{
		child: c,
		ch:    make(chan error, 1),
	}

	c.subMu.Lock()
	select {
	case <-c.done:
		c.subMu.Unlock()
		sub.deliver(c.cause)
		return sub
	default:
	}
	c.subs = append(c.subs, sub)
	c.subMu.Unlock()

	return sub
}

// ExitSubscription delivers a child's termination cause exactly once on C.
type ExitSubscription struct {
	child      *Child
	ch         chan error
	cancelOnce sync.Once
}

// C returns the channel on which the termination cause is delivered. At most
// one value is ever sent.
func (s *ExitSubscription) C() <-chan error {
	return s.ch
}

// Cancel withdraws the subscription so no cause is delivered after it
// returns, unless one was already buffered. Idempotent and safe to call after
// the exit event has fired.
func (s *ExitSubscription) Cancel() {
	s.cancelOnce.Do(func() {
		c := s.child
		c.subMu.Lock()
		for i, sub := range c.subs {
			if sub == s {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
		c.subMu.Unlock()
	})
}

// deliver sends the cause without blocking. The channel is buffered for one
// value and deliver is called at most once per subscription.
func (s *ExitSubscription) deliver(cause error) {
	select {
	case s.ch <- cause:
	default:
	}
}
