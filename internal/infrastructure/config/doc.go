// Package config provides 12-factor configuration for the remote host.
//
// Defaults live in Default. An optional YAML or TOML file is layered on
// top, and environment variables always win.
//
// Configuration Sections:
//   - Server: admin HTTP server (host, port)
//   - Logging: log level and output format
//   - Remotes: directory scanned for remotes
//   - Limits: per-script memory and instruction budget
//   - Worker: queue size, send retries, subscriber buffer, shutdown timeout
//   - HTTP: timeout, retries and rate limit of the script http capability
//   - Sandbox: process capabilities (script.shell, os.open, os.start)
//   - RateLimit, CORS: admin server middleware
//
// Example Usage:
//
//	cfg, err := config.LoadFile("uniremote.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Environment Variables:
//   - HOST, PORT, LOG_LEVEL, LOG_DEV, REMOTES_DIR
//   - LUA_MEMORY_MB, LUA_MAX_INSTRUCTIONS
//   - WORKER_QUEUE_SIZE, WORKER_SEND_RETRIES, WORKER_RETRY_BACKOFF_MS,
//     WORKER_SUBSCRIBER_BUFFER, WORKER_SHUTDOWN_TIMEOUT
//   - HTTP_TIMEOUT, HTTP_RETRIES, HTTP_RATE_LIMIT_RPS
//   - SANDBOX_ALLOW_PROCESS
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED, CORS_ALLOW_ORIGINS
package config
