package syncstart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrepp/syncstart/pkg/supervisor"
)

// ackWorker acknowledges readiness after an optional phase-2 delay.
type ackWorker struct {
	delay time.Duration
}

func (w *ackWorker) Init(ctx context.Context) error {
	return nil
}

func (w *ackWorker) HandleMessage(ctx context.Context, msg any) error {
	req, ok := msg.(AckRequest)
	if !ok {
		return nil
	}
	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	Acknowledge(req.Token)
	return nil
}

// infoAckWorker acknowledges immediately and publishes start info.
type infoAckWorker struct {
	ackWorker
	info any
}

func (w *infoAckWorker) StartInfo() any {
	return w.info
}

// neverAckWorker receives the request and ignores it.
type neverAckWorker struct{}

func (w *neverAckWorker) Init(ctx context.Context) error {
	return nil
}

func (w *neverAckWorker) HandleMessage(ctx context.Context, msg any) error {
	return nil
}

// exitWorker terminates with a fixed cause instead of acknowledging.
type exitWorker struct {
	cause error
}

func (w *exitWorker) Init(ctx context.Context) error {
	return nil
}

func (w *exitWorker) HandleMessage(ctx context.Context, msg any) error {
	if _, ok := msg.(AckRequest); ok {
		return w.cause
	}
	return nil
}

// panicWorker faults during phase-2.
type panicWorker struct{}

func (w *panicWorker) Init(ctx context.Context) error {
	return nil
}

func (w *panicWorker) HandleMessage(ctx context.Context, msg any) error {
	if _, ok := msg.(AckRequest); ok {
		panic("phase-2 exploded")
	}
	return nil
}

// forgedAckWorker acknowledges with a token it made up instead of the one it
// was handed.
type forgedAckWorker struct{}

func (w *forgedAckWorker) Init(ctx context.Context) error {
	return nil
}

func (w *forgedAckWorker) HandleMessage(ctx context.Context, msg any) error {
	if _, ok := msg.(AckRequest); ok {
		Acknowledge(Token("forged-token"))
	}
	return nil
}

// failInitWorker fails phase-1.
type failInitWorker struct {
	err error
}

func (w *failInitWorker) Init(ctx context.Context) error {
	return w.err
}

func (w *failInitWorker) HandleMessage(ctx context.Context, msg any) error {
	return nil
}

func newTestSupervisor(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	s := supervisor.New()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func TestStartChild_Acknowledged(t *testing.T) {
	sup := newTestSupervisor(t)

	started, err := StartChild(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &ackWorker{delay: 50 * time.Millisecond},
	})
	require.NoError(t, err)
	require.NotNil(t, started.Child)
	assert.True(t, started.Child.Alive(), "acknowledged child should still be running")
	assert.False(t, started.HasInfo)
}

func TestStartChild_WithInfo(t *testing.T) {
	sup := newTestSupervisor(t)

	started, err := StartChild(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &infoAckWorker{info: "listening on :9090"},
	})
	require.NoError(t, err)
	assert.True(t, started.HasInfo)
	assert.Equal(t, "listening on :9090", started.Info)
}

func TestStartChild_LaunchFailureVerbatim(t *testing.T) {
	sup := newTestSupervisor(t)
	launchErr := errors.New("refused to start")

	started, err := StartChild(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &failInitWorker{err: launchErr},
	})
	assert.Nil(t, started)
	require.ErrorIs(t, err, launchErr)
	assert.False(t, IsTimeout(err))
}

func TestStartChildTimeout_Timeout(t *testing.T) {
	sup := newTestSupervisor(t)

	started, err := StartChildTimeout(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &neverAckWorker{},
	}, 100*time.Millisecond)
	assert.Nil(t, started)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "w-1", timeoutErr.ChildID)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)

	// The timed-out child is killed as a side effect; the kill is
	// fire-and-forget, so observe it settling rather than asserting
	// immediately.
	require.Eventually(t, func() bool {
		_, alive := sup.Child("w-1")
		return !alive
	}, 2*time.Second, 10*time.Millisecond, "timed-out child should be dead shortly after return")
}

func TestStartChildTimeout_SlowWorker(t *testing.T) {
	sup := newTestSupervisor(t)

	// Phase-2 outlasts the deadline.
	_, err := StartChildTimeout(context.Background(), sup, supervisor.Spec{
		ID:     "slow",
		Worker: &ackWorker{delay: 400 * time.Millisecond},
	}, 100*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	// The same behavior with a generous deadline succeeds.
	started, err := StartChildTimeout(context.Background(), sup, supervisor.Spec{
		ID:     "patient",
		Worker: &ackWorker{delay: 50 * time.Millisecond},
	}, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, started.Child.Alive())
}

func TestStartChild_NormalExitCause(t *testing.T) {
	sup := newTestSupervisor(t)

	started, err := StartChild(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &exitWorker{cause: supervisor.ErrNormal},
	})
	assert.Nil(t, started)
	require.Error(t, err)
	assert.Equal(t, supervisor.ErrNormal, err, "normal exit should surface the exact symbolic cause")
}

func TestStartChild_StructuredFailureUnwrapped(t *testing.T) {
	sup := newTestSupervisor(t)
	failure := &supervisor.Failure{Kind: "connect_failed", Details: "kv-store unreachable"}

	started, err := StartChild(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &exitWorker{cause: failure},
	})
	assert.Nil(t, started)
	require.Error(t, err)

	// The caller sees exactly the kind+details pair, not the traced wrapper.
	assert.Same(t, failure, err)
}

func TestStartChild_PanicFaultUnwrapped(t *testing.T) {
	sup := newTestSupervisor(t)

	started, err := StartChild(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &panicWorker{},
	})
	assert.Nil(t, started)
	require.Error(t, err)

	panicErr, ok := err.(*supervisor.PanicError)
	require.True(t, ok, "phase-2 fault should surface as the typed panic payload, got %T", err)
	assert.Equal(t, "phase-2 exploded", panicErr.Value)
}

func TestStartChild_PlainErrorCauseUnwrapped(t *testing.T) {
	sup := newTestSupervisor(t)
	reason := errors.New("gave up")

	_, err := StartChild(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &exitWorker{cause: reason},
	})
	require.Error(t, err)
	assert.Equal(t, reason, err)
}

func TestStartChild_TokenIsolation(t *testing.T) {
	sup := newTestSupervisor(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	specs := []supervisor.Spec{
		{ID: "fast", Worker: &ackWorker{delay: 20 * time.Millisecond}},
		{ID: "slow", Worker: &ackWorker{delay: 150 * time.Millisecond}},
	}

	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec supervisor.Spec) {
			defer wg.Done()
			_, results[i] = StartChildTimeout(context.Background(), sup, spec, 2*time.Second)
		}(i, spec)
	}
	wg.Wait()

	assert.NoError(t, results[0])
	assert.NoError(t, results[1], "concurrent calls must not consume each other's acknowledgment")
}

func TestStartChild_ForgedTokenIgnored(t *testing.T) {
	sup := newTestSupervisor(t)
	before := UnmatchedAcks()

	_, err := StartChildTimeout(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &forgedAckWorker{},
	}, 100*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "a forged token must never satisfy the rendezvous")
	assert.Greater(t, UnmatchedAcks(), before)
}

func TestStartChild_ZeroTimeout(t *testing.T) {
	sup := newTestSupervisor(t)

	begin := time.Now()
	_, err := StartChildTimeout(context.Background(), sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &neverAckWorker{},
	}, 0)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(begin), time.Second)
}

func TestStartChild_NegativeTimeoutPanics(t *testing.T) {
	sup := newTestSupervisor(t)

	assert.Panics(t, func() {
		StartChildTimeout(context.Background(), sup, supervisor.Spec{
			ID:     "w-1",
			Worker: &ackWorker{},
		}, -time.Millisecond)
	})

	assert.Panics(t, func() {
		WithDefaultTimeout(-time.Second)
	})
}

func TestStartChild_ContextCancelled(t *testing.T) {
	sup := newTestSupervisor(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := StartChildTimeout(ctx, sup, supervisor.Spec{
		ID:     "w-1",
		Worker: &neverAckWorker{},
	}, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)

	require.Eventually(t, func() bool {
		_, alive := sup.Child("w-1")
		return !alive
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAcknowledge_UnknownToken(t *testing.T) {
	before := UnmatchedAcks()
	Acknowledge(Token("nobody-is-waiting"))
	assert.Greater(t, UnmatchedAcks(), before)
}

func TestStarter_DefaultTimeout(t *testing.T) {
	sup := newTestSupervisor(t)
	starter := NewStarter(sup, WithDefaultTimeout(100*time.Millisecond))

	begin := time.Now()
	_, err := starter.StartChild(context.Background(), supervisor.Spec{
		ID:     "w-1",
		Worker: &neverAckWorker{},
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(begin), 2*time.Second)
}
