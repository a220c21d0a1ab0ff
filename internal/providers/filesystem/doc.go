// Package filesystem implements the fs capability.
//
// The package is organized like the rest of the capability code:
//   - types: module wiring and sandbox resolution
//   - paths: pure path helpers that never touch disk
//   - basic: read, write, append, create, delete
//   - directory: listings, directory creation and sizes
//   - operations: copy, move, rename
//   - metadata: attributes, timestamps, MIME detection
//   - search: doublestar globbing
//
// Every path that reaches the disk is resolved through a paths.Sandbox:
// relative paths land in the remote directory, and the resolved target
// must sit inside the remote directory or the remote's scratch directory.
package filesystem
