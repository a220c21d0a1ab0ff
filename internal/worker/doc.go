// Package worker runs each remote's script on a single goroutine.
//
// A Worker owns its sandbox.State exclusively. Action requests, lifecycle
// events and deferred tasks from timers or async callbacks all travel
// through one FIFO inbox and are processed in order by the drain loop,
// so the interpreter is never entered concurrently.
//
// Subscriptions are reference counted. The first subscriber queues a
// focus event and the last one to leave queues blur; both edges are
// detected and queued under the same mutex so the events land in the
// order the count changed.
package worker
