// Package main runs the uniremote script host.
//
// It loads every remote under the remotes directory, gives each one a
// worker and serves a read-only admin API. Scripts run inside a Lua
// sandbox with a per-call instruction and memory budget.
//
// Configuration comes from defaults, an optional YAML or TOML file and
// the environment, in that order. Flags override all three.
//
// Usage:
//
//	./server -remotes ./remotes
//	./server -config uniremote.yaml -addr 0.0.0.0:8090
//
// Signals:
//   - SIGINT, SIGTERM: destroy every started remote and exit
package main
