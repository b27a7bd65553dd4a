package syncstart

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Token is the opaque correlation identifier pairing one acknowledgment
// request with its response. A token lives for the duration of a single start
// call and is never reused.
type Token string

// AckRequest is the message sent to a freshly launched child. The child must
// call Acknowledge with the exact token once its phase-2 initialization has
// completed.
type AckRequest struct {
	Token Token
}

var (
	ackMu      sync.Mutex
	ackWaiters = make(map[Token]chan struct{})

	unmatchedAcks atomic.Uint64
)

func newToken() Token {
	return Token(uuid.NewString())
}

// registerAck creates the wait channel for a token. The channel is buffered
// so acknowledging never blocks the child.
func registerAck(token Token) chan struct{} {
	ch := make(chan struct{}, 1)
	ackMu.Lock()
	ackWaiters[token] = ch
	ackMu.Unlock()
	return ch
}

func unregisterAck(token Token) {
	ackMu.Lock()
	delete(ackWaiters, token)
	ackMu.Unlock()
}

// Acknowledge signals that the worker holding token has completed its
// phase-2 initialization. Workers call this from their own message-handling
// context with the token delivered in the AckRequest. A token that matches no
// in-flight start call is discarded as unmatched noise.
func Acknowledge(token Token) {
	ackMu.Lock()
	ch, ok := ackWaiters[token]
	ackMu.Unlock()

	if !ok {
		unmatchedAcks.Add(1)
		return
	}

	select {
	case ch <- struct{}{}:
	default:
		// Duplicate acknowledgment for the same call; first one wins.
	}
}

// UnmatchedAcks returns the number of acknowledgments that arrived with a
// token no start call was waiting on.
func UnmatchedAcks() uint64 {
	return unmatchedAcks.Load()
}
