// Package syncstart implements a two-phase start protocol for supervised
// workers: launch returns quickly once fast phase-1 setup is done, while the
// caller that needs the worker ready blocks, with a bounded timeout, until
// the worker acknowledges completion of its slow phase-2 initialization.
//
// The rendezvous hands the launched worker a unique correlation token inside
// an AckRequest and races three outcomes on a single select: the matching
// Acknowledge call, the worker's termination, or the deadline. On timeout the
// worker is forcibly terminated (fire-and-forget) and a TimeoutError is
// returned; a termination cause is flattened by Normalize before it reaches
// the caller.
//
//	sup := supervisor.New()
//	started, err := syncstart.StartChildTimeout(ctx, sup, supervisor.Spec{
//	    ID:     "cache-primer",
//	    Worker: worker,
//	}, 5*time.Second)
//
// The worker's side of the contract: react to the AckRequest message,
// perform phase-2 setup, then call syncstart.Acknowledge with the exact
// token it received.
package syncstart
