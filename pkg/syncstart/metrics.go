package syncstart

import (
	"time"
)

// Outcome labels the terminal result of one start call.
type Outcome string

const (
	// OutcomeAcknowledged - the child acknowledged before the deadline
	OutcomeAcknowledged Outcome = "acknowledged"
	// OutcomeChildExited - the child terminated before acknowledging
	OutcomeChildExited Outcome = "child_exited"
	// OutcomeTimeout - the deadline elapsed and the child was killed
	OutcomeTimeout Outcome = "timeout"
	// OutcomeCancelled - the caller's context was cancelled mid-handshake
	OutcomeCancelled Outcome = "cancelled"
)

// MetricsCollector receives start-handshake measurements.
type MetricsCollector interface {
	// LaunchDuration records the duration of the synchronous launch phase
	LaunchDuration(childID string, duration time.Duration, err error)

	// HandshakeStarted records that a rendezvous began for a child
	HandshakeStarted(childID string)

	// HandshakeOutcome records the terminal outcome of a rendezvous and how
	// long the caller waited for it
	HandshakeOutcome(childID string, outcome Outcome, duration time.Duration)
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) LaunchDuration(childID string, duration time.Duration, err error) {}
func (n *noopMetricsCollector) HandshakeStarted(childID string)                                  {}
func (n *noopMetricsCollector) HandshakeOutcome(childID string, outcome Outcome, duration time.Duration) {
}

// NewNoopMetricsCollector creates a no-op metrics collector.
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
