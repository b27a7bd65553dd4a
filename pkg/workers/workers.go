// Package workers provides example worker behaviors for manifest-driven
// launches: a Sleeper with a configurable phase-2 delay and a SQLite-backed
// Store that prepares its schema before acknowledging readiness.
package workers

import (
	"github.com/jrepp/syncstart/pkg/supervisor"
)

// Worker type names registered by RegisterAll.
const (
	TypeSleeper = "sleeper"
	TypeStore   = "store"
)

// RegisterAll registers the built-in worker types with the supervisor's
// factory registry. Call once at startup; registering twice panics.
func RegisterAll() {
	supervisor.RegisterWorker(TypeSleeper, NewSleeper)
	supervisor.RegisterWorker(TypeStore, NewStore)
}
