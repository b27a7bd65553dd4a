package supervisor

import (
	"errors"
	"fmt"
)

// Sentinel exit causes. These are delivered bare, without a captured stack.
var (
	// ErrNormal is the cause for a voluntary, clean stop. A worker returns
	// ErrNormal from HandleMessage to leave its message loop.
	ErrNormal = errors.New("normal")

	// ErrKilled is the cause when a child is forcibly terminated, either by
	// Terminate or by supervisor shutdown.
	ErrKilled = errors.New("killed")
)

// Failure is a structured abnormal-exit description: a symbolic kind plus
// arbitrary details. Workers return a *Failure to report a classified fault,
// the way a propagated downstream-call failure carries its reason.
type Failure struct {
	Kind    string
	Details any
}

func (f *Failure) Error() string {
	if f.Details == nil {
		return f.Kind
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Details)
}

// PanicError wraps a value recovered from a panicking worker callback.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", p.Value)
}

// TracedCause pairs an abnormal exit reason with the goroutine stack captured
// at the point of failure. The reason is one of: a structured *Failure, a
// typed *PanicError, or any other error the worker returned.
type TracedCause struct {
	Reason error
	Stack  []byte
}

func (c *TracedCause) Error() string {
	return c.Reason.Error()
}

// Unwrap exposes the reason for errors.Is/As matching.
func (c *TracedCause) Unwrap() error {
	return c.Reason
}
