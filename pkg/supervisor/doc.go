// Package supervisor runs workers as mailbox-driven goroutines and exposes
// the launch, terminate, and exit-subscription surface that the readiness
// handshake in package syncstart builds on.
//
// A worker implements fast phase-1 setup in Init, which runs synchronously
// during Launch, and reacts to mailbox messages in HandleMessage. Exit causes
// are normalized into a small set of shapes: the bare sentinels ErrNormal and
// ErrKilled, and TracedCause wrapping a structured Failure, a recovered
// PanicError, or a plain error the worker returned.
//
// The supervisor intentionally implements no restart policy: a child that
// stops, for any cause, stays stopped.
package supervisor
