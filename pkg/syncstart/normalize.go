package syncstart

import (
	"github.com/jrepp/syncstart/pkg/supervisor"
)

// Normalize maps a child termination cause onto a uniform, shallow error
// value. Causes from different failure origins arrive with different nesting:
// handler errors, propagated failures, and recovered panics are wrapped in a
// *supervisor.TracedCause carrying the captured stack, while sentinels like
// supervisor.ErrNormal arrive bare.
//
// Classification, in priority order:
//  1. Traced structured failure (kind + details) -> the *supervisor.Failure
//  2. Traced typed fault -> the *supervisor.PanicError
//  3. Traced bare reason -> the reason error
//  4. Anything else -> cause unchanged
//
// Normalize is pure and total; unrecognized shapes pass through unchanged.
func Normalize(cause error) error {
	traced, ok := cause.(*supervisor.TracedCause)
	if !ok {
		return cause
	}

	switch reason := traced.Reason.(type) {
	case *supervisor.Failure:
		return reason
	case *supervisor.PanicError:
		return reason
	default:
		return traced.Reason
	}
}
