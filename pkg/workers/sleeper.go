package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/jrepp/syncstart/pkg/supervisor"
	"github.com/jrepp/syncstart/pkg/syncstart"
)

// Sleeper simulates a worker with a slow phase-2: after launch it waits for
// the acknowledgment request, sleeps for a configured duration, and only then
// acknowledges readiness.
type Sleeper struct {
	wakeAfter time.Duration
}

// NewSleeper builds a Sleeper from manifest args.
//
// Args:
//
//	wake_after: phase-2 duration, e.g. "250ms" (default 0)
func NewSleeper(args map[string]any) (supervisor.Worker, error) {
	wake, err := argDuration(args, "wake_after", 0)
	if err != nil {
		return nil, err
	}
	return &Sleeper{wakeAfter: wake}, nil
}

// Init is phase-1: nothing slow to do.
func (s *Sleeper) Init(ctx context.Context) error {
	return nil
}

// HandleMessage performs phase-2 on the acknowledgment request.
func (s *Sleeper) HandleMessage(ctx context.Context, msg any) error {
	req, ok := msg.(syncstart.AckRequest)
	if !ok {
		return nil
	}

	if s.wakeAfter > 0 {
		select {
		case <-time.After(s.wakeAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	syncstart.Acknowledge(req.Token)
	return nil
}

// argDuration reads an optional duration arg, accepting either a Go duration
// string or a native time.Duration.
func argDuration(args map[string]any, key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := args[key]
	if !ok {
		return fallback, nil
	}

	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("arg %q: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("arg %q: expected duration, got %T", key, raw)
	}
}

// argString reads an optional string arg.
func argString(args map[string]any, key, fallback string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return fallback, nil
	}

	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("arg %q: expected string, got %T", key, raw)
	}
	return v, nil
}
