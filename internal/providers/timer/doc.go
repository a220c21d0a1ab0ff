// Package timer implements the script timer capability.
//
// Timers run on their own goroutines but never call into the interpreter
// directly. A firing is turned into a providers.Task and handed to the
// owning worker, which re-checks the timer on its own goroutine before
// invoking the callback. Cancelling a timer therefore guarantees that no
// further callback runs, even if a firing is already queued.
//
// Timer goroutines hold the Scheduler only weakly: once the owning state
// is gone the goroutines notice on their next tick and exit.
package timer
