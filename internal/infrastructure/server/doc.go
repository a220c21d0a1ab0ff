// Package server exposes a small read-only admin API for operators.
//
// Routes:
//
//	GET /health        liveness and remote count
//	GET /metrics       Prometheus exposition
//	GET /remotes       every loaded remote with its worker stats
//	GET /remotes/*id   a single remote
//
// Script clients do not talk to this server.
package server
