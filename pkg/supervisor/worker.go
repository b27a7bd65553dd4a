package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Worker is the behavior a child process implements.
//
// Init is phase-1 initialization: it runs synchronously inside Launch and must
// be fast. Slow setup belongs in the message loop, typically in response to
// the first message the child receives after launch.
//
// HandleMessage is called once per mailbox message. Returning nil keeps the
// loop running. Returning ErrNormal stops the child cleanly. Any other error
// stops the child abnormally with that error as the exit reason.
type Worker interface {
	Init(ctx context.Context) error
	HandleMessage(ctx context.Context, msg any) error
}

// InfoProvider is an optional Worker extension. When implemented, the value
// returned by StartInfo after a successful Init is carried on the launch
// result as extra start info.
type InfoProvider interface {
	StartInfo() any
}

// Factory builds a Worker from manifest-style arguments.
type Factory func(args map[string]any) (Worker, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterWorker makes a worker type available to manifest-driven launches.
// It panics if name is empty, factory is nil, or name is already registered.
func RegisterWorker(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if name == "" {
		panic("supervisor: RegisterWorker with empty name")
	}
	if factory == nil {
		panic("supervisor: RegisterWorker with nil factory")
	}
	if _, dup := factories[name]; dup {
		panic("supervisor: RegisterWorker called twice for " + name)
	}
	factories[name] = factory
}

// WorkerTypes returns the sorted names of all registered worker types.
func WorkerTypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupFactory resolves a registered worker type by name.
func lookupFactory(name string) (Factory, error) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown worker type %q", name)
	}
	return factory, nil
}
