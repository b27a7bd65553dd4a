package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMailboxSize = 64

// ErrDuplicateChild is returned by Launch when a live child already holds the
// requested spec ID.
var ErrDuplicateChild = errors.New("duplicate child id")

// Spec describes a child to launch. Exactly one of Worker or WorkerType must
// be set; WorkerType is resolved through the registered factories.
type Spec struct {
	// ID identifies the child within its supervisor. Autogenerated when empty.
	ID string

	// Worker is a pre-built behavior instance.
	Worker Worker

	// WorkerType names a registered factory, built with Args at launch time.
	WorkerType string

	// Args are passed to the factory when WorkerType is used.
	Args map[string]any

	// MailboxSize overrides the supervisor default when > 0.
	MailboxSize int
}

// LaunchResult is the synchronous outcome of a successful launch.
type LaunchResult struct {
	Child *Child

	// Info is extra start information published by the worker, present only
	// when HasInfo is true.
	Info    any
	HasInfo bool
}

// Supervisor launches workers as mailbox-driven goroutines and tracks their
// lifetimes. It implements the launch/terminate/subscribe surface the start
// handshake needs; it deliberately has no restart policy.
type Supervisor struct {
	mu       sync.Mutex
	children map[string]*Child // keyed by spec ID, live children only

	baseCtx  context.Context
	cancelFn context.CancelFunc
	wg       sync.WaitGroup

	mailboxSize int
	logger      *slog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithMailboxSize sets the default mailbox capacity for launched children.
func WithMailboxSize(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.mailboxSize = n
		}
	}
}

// WithLogger sets the logger used for child lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Supervisor ready to launch children.
func New(opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Supervisor{
		children:    make(map[string]*Child),
		baseCtx:     ctx,
		cancelFn:    cancel,
		mailboxSize: defaultMailboxSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Launch starts a child from spec. Phase-1 initialization (Worker.Init) runs
// synchronously in the caller's flow; its failure is a launch failure and no
// child is created. On success the message loop goroutine is running and the
// returned handle is live.
func (s *Supervisor) Launch(ctx context.Context, spec Spec) (*LaunchResult, error) {
	if s.baseCtx.Err() != nil {
		return nil, errors.New("supervisor is shut down")
	}

	worker := spec.Worker
	if worker == nil {
		if spec.WorkerType == "" {
			return nil, errors.New("spec has neither Worker nor WorkerType")
		}
		factory, err := lookupFactory(spec.WorkerType)
		if err != nil {
			return nil, err
		}
		worker, err = factory(spec.Args)
		if err != nil {
			return nil, fmt.Errorf("build worker %q: %w", spec.WorkerType, err)
		}
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	mailboxSize := spec.MailboxSize
	if mailboxSize <= 0 {
		mailboxSize = s.mailboxSize
	}

	childCtx, childCancel := context.WithCancel(s.baseCtx)
	child := &Child{
		id:       id,
		uid:      uuid.NewString(),
		mailbox:  make(chan any, mailboxSize),
		ctx:      childCtx,
		cancelFn: childCancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.children[id]; exists {
		s.mu.Unlock()
		childCancel()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateChild, id)
	}
	s.children[id] = child
	s.mu.Unlock()

	if err := s.initWorker(childCtx, worker); err != nil {
		s.remove(child)
		childCancel()
		return nil, err
	}

	result := &LaunchResult{Child: child}
	if provider, ok := worker.(InfoProvider); ok {
		result.Info = provider.StartInfo()
		result.HasInfo = true
	}

	s.wg.Add(1)
	go s.runLoop(child, worker)

	s.logger.Debug("child launched", "child_id", id, "uid", child.uid)

	return result, nil
}

// initWorker runs phase-1 init, converting a panic into a launch failure.
func (s *Supervisor) initWorker(ctx context.Context, worker Worker) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return worker.Init(ctx)
}

// runLoop dispatches mailbox messages until the worker stops, the child is
// killed, or the handler fails.
func (s *Supervisor) runLoop(child *Child, worker Worker) {
	defer s.wg.Done()

	cause := s.dispatch(child, worker)

	s.remove(child)
	child.exit(cause)

	s.logger.Debug("child exited", "child_id", child.id, "cause", cause)
}

func (s *Supervisor) dispatch(child *Child, worker Worker) error {
	for {
		select {
		case <-child.ctx.Done():
			return ErrKilled

		case msg := <-child.mailbox:
			err := s.handleMessage(child.ctx, worker, msg)
			if err == nil {
				continue
			}
			// A forced kill wins over whatever the interrupted handler
			// reported.
			if child.ctx.Err() != nil {
				return ErrKilled
			}
			if errors.Is(err, ErrNormal) {
				return ErrNormal
			}
			if traced, ok := err.(*TracedCause); ok {
				return traced
			}
			return &TracedCause{Reason: err, Stack: debug.Stack()}
		}
	}
}

// handleMessage invokes the worker callback, recovering panics into a traced
// fault.
func (s *Supervisor) handleMessage(ctx context.Context, worker Worker, msg any) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &TracedCause{
				Reason: &PanicError{Value: v},
				Stack:  debug.Stack(),
			}
		}
	}()
	return worker.HandleMessage(ctx, msg)
}

// Terminate forcibly stops a child. Fire-and-forget: it does not wait for the
// message loop to unwind. Safe to call on an already-dead child.
func (s *Supervisor) Terminate(child *Child) {
	if child == nil {
		return
	}
	child.kill()
}

// SubscribeExit registers for the child's termination cause. If the child has
// already exited, the cause is delivered immediately. The subscription's
// Cancel is idempotent and safe after delivery.
func (s *Supervisor) SubscribeExit(child *Child) *ExitSubscription {
	return child.subscribe()
}

// Child returns the live child with the given spec ID.
func (s *Supervisor) Child(id string) (*Child, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	child, ok := s.children[id]
	return child, ok
}

// Children returns all live children.
func (s *Supervisor) Children() []*Child {
	s.mu.Lock()
	defer s.mu.Unlock()

	children := make([]*Child, 0, len(s.children))
	for _, child := range s.children {
		children = append(children, child)
	}
	return children
}

// Shutdown kills all children and waits for their loops to stop, or for ctx
// to expire.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.logger.Debug("supervisor shutting down")

	s.cancelFn()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// remove drops the child from the live set if it is still the registered
// holder of its ID.
func (s *Supervisor) remove(child *Child) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.children[child.id]; ok && current == child {
		delete(s.children, child.id)
	}
}

// waitSettle is a small helper for tests and shutdown paths that need to
// bound how long they observe a child dying.
func waitSettle(child *Child, d time.Duration) bool {
	select {
	case <-child.Done():
		return true
	case <-time.After(d):
		return false
	}
}
