package syncstart

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches any handshake timeout via errors.Is.
var ErrTimeout = errors.New("timed out waiting for acknowledgment")

// TimeoutError reports that the deadline elapsed before the child
// acknowledged. The child was forcibly terminated as a side effect; the kill
// is fire-and-forget and not confirmed.
type TimeoutError struct {
	// ChildID is the spec ID of the child that failed to acknowledge
	ChildID string

	// Timeout is the deadline that elapsed
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("child %s: no acknowledgment within %v", e.ChildID, e.Timeout)
}

// Is reports true for ErrTimeout so callers can classify without the
// concrete type.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IsTimeout reports whether err is a handshake timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
