package syncstart

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jrepp/syncstart/pkg/supervisor"
)

// DefaultStartTimeout bounds the readiness handshake when the caller does not
// specify a timeout.
const DefaultStartTimeout = 5000 * time.Millisecond

const tracerName = "github.com/jrepp/syncstart"

// Supervisor is the launch/terminate/subscribe surface the handshake needs
// from a process supervisor. *supervisor.Supervisor implements it.
type Supervisor interface {
	// Launch starts a child synchronously, returning its handle or a launch
	// failure.
	Launch(ctx context.Context, spec supervisor.Spec) (*supervisor.LaunchResult, error)

	// Terminate forcibly stops a child without waiting for it to die.
	Terminate(child *supervisor.Child)

	// SubscribeExit delivers the child's termination cause, immediately if it
	// has already exited.
	SubscribeExit(child *supervisor.Child) *supervisor.ExitSubscription
}

var _ Supervisor = (*supervisor.Supervisor)(nil)

// Started is the successful result of a start call: a live, acknowledged
// child, plus any extra info its launch produced.
type Started struct {
	Child *supervisor.Child

	// Info is extra start information from the launch, meaningful only when
	// HasInfo is true.
	Info    any
	HasInfo bool
}

// Starter runs the two-phase start protocol against one supervisor. The zero
// configuration (noop metrics, global tracer provider, DefaultStartTimeout)
// is ready to use. A Starter is safe for concurrent use; concurrent start
// calls share no per-call state.
type Starter struct {
	sup            Supervisor
	metrics        MetricsCollector
	tracer         trace.Tracer
	defaultTimeout time.Duration
}

// Option configures a Starter.
type Option func(*Starter)

// WithMetricsCollector sets the metrics collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(s *Starter) {
		if mc != nil {
			s.metrics = mc
		}
	}
}

// WithDefaultTimeout overrides DefaultStartTimeout for StartChild calls.
// Panics if d is negative.
func WithDefaultTimeout(d time.Duration) Option {
	if d < 0 {
		panic("syncstart: default timeout must be non-negative")
	}
	return func(s *Starter) {
		s.defaultTimeout = d
	}
}

// WithTracerProvider sets the tracer provider used for start spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Starter) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewStarter creates a Starter bound to a supervisor.
func NewStarter(sup Supervisor, opts ...Option) *Starter {
	s := &Starter{
		sup:            sup,
		metrics:        NewNoopMetricsCollector(),
		tracer:         otel.Tracer(tracerName),
		defaultTimeout: DefaultStartTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StartChild launches a child and blocks until it acknowledges phase-2
// readiness, using the starter's default timeout.
func (s *Starter) StartChild(ctx context.Context, spec supervisor.Spec) (*Started, error) {
	return s.StartChildTimeout(ctx, spec, s.defaultTimeout)
}

// StartChildTimeout launches a child and blocks until one of: the child
// acknowledges readiness, the child terminates, or timeout elapses.
//
// A launch failure is returned verbatim and the handshake is never attempted.
// On timeout the child is forcibly terminated (fire-and-forget) and the
// returned error matches ErrTimeout. If the child terminates first, its
// normalized termination cause is returned. Nothing is retried internally.
//
// A negative timeout is a programming error and panics; zero is permitted and
// resolves immediately to a pending event or a timeout.
func (s *Starter) StartChildTimeout(ctx context.Context, spec supervisor.Spec, timeout time.Duration) (*Started, error) {
	if timeout < 0 {
		panic("syncstart: timeout must be non-negative")
	}

	ctx, span := s.tracer.Start(ctx, "syncstart.StartChild",
		trace.WithAttributes(
			attribute.String("child.id", spec.ID),
			attribute.Int64("start.timeout_ms", timeout.Milliseconds()),
		))
	defer span.End()

	launchStart := time.Now()
	result, err := s.sup.Launch(ctx, spec)
	s.metrics.LaunchDuration(spec.ID, time.Since(launchStart), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "launch failed")
		return nil, err
	}

	child := result.Child
	span.AddEvent("launched", trace.WithAttributes(
		attribute.String("child.uid", child.UID()),
	))

	if err := s.awaitReady(ctx, child, timeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handshake failed")
		return nil, err
	}

	span.AddEvent("acknowledged")
	span.SetStatus(codes.Ok, "")

	return &Started{
		Child:   child,
		Info:    result.Info,
		HasInfo: result.HasInfo,
	}, nil
}

// awaitReady performs the rendezvous: it subscribes to the child's
// termination, sends the acknowledgment request carrying a fresh correlation
// token, and blocks on a single three-way select until the matching ack
// arrives, the child exits, or the deadline elapses. Exactly one terminal
// outcome occurs per call.
func (s *Starter) awaitReady(ctx context.Context, child *supervisor.Child, timeout time.Duration) error {
	sub := s.sup.SubscribeExit(child)

	token := newToken()
	ackCh := registerAck(token)
	defer unregisterAck(token)

	// The send never blocks; if the child is already gone the exit
	// subscription fires instead.
	child.Send(AckRequest{Token: token})

	// Deadline runs from the issuance of the request, never renewed.
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	s.metrics.HandshakeStarted(child.ID())
	waitStart := time.Now()

	select {
	case <-ackCh:
		s.metrics.HandshakeOutcome(child.ID(), OutcomeAcknowledged, time.Since(waitStart))
		return nil

	case cause := <-sub.C():
		s.metrics.HandshakeOutcome(child.ID(), OutcomeChildExited, time.Since(waitStart))
		return Normalize(cause)

	case <-timer.C:
		// Withdraw the subscription before killing so the kill's own exit
		// event cannot leak to a call that has already returned.
		sub.Cancel()
		s.sup.Terminate(child)
		s.metrics.HandshakeOutcome(child.ID(), OutcomeTimeout, time.Since(waitStart))
		return &TimeoutError{ChildID: child.ID(), Timeout: timeout}

	case <-ctx.Done():
		// The caller withdrew the wait; clean up exactly like the deadline
		// path.
		sub.Cancel()
		s.sup.Terminate(child)
		s.metrics.HandshakeOutcome(child.ID(), OutcomeCancelled, time.Since(waitStart))
		return ctx.Err()
	}
}

// StartChild launches spec under sup and waits for readiness with
// DefaultStartTimeout. Convenience for callers that do not need a configured
// Starter.
func StartChild(ctx context.Context, sup Supervisor, spec supervisor.Spec) (*Started, error) {
	return NewStarter(sup).StartChild(ctx, spec)
}

// StartChildTimeout launches spec under sup and waits for readiness with an
// explicit timeout.
func StartChildTimeout(ctx context.Context, sup Supervisor, spec supervisor.Spec, timeout time.Duration) (*Started, error) {
	return NewStarter(sup).StartChildTimeout(ctx, spec, timeout)
}
