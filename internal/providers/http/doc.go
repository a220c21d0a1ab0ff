// Package http implements the http capability.
//
// Calls without a callback block the script until the response arrives.
// Calls with a callback return at once; the request runs on its own
// goroutine and the callback is handed back to the owning worker through
// the host Dispatcher, so the interpreter is only ever touched from the
// worker goroutine.
package http
