// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr so they never interleave with CLI output on stdout.
// Components receive a named *zap.Logger via Component and default to a
// no-op logger when none is supplied.
//
// Example Usage:
//
//	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	session := chat.NewSession(chat.Options{Logger: logger.Component("chat")})
package logging
