// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a plain *zap.Logger. Per-remote loggers carry a
// "remote" field so every line emitted on behalf of a script can be
// traced back to it; action failures additionally carry "action".
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	log := logger.Remote("media/vlc")
//	log.Warn("action failed", zap.String("action", "play"), zap.Error(err))
package logging
