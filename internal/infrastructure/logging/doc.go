// Package logging provides structured logging for netbeacon.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the agent.
//
// Structured logs go to stderr by default. Stdout is reserved for the
// console echo (build banner, progress dots, inbound message dumps),
// which must reproduce payload bytes verbatim and is therefore not a
// slog handler.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("broker connected", "client_id", id)
//	logger.Error("publish failed", "error", err)
//
// Never log link or broker passwords.
package logging
