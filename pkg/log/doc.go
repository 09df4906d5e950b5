// Package log provides structured protocol logging for jigna sessions.
//
// This package defines the Logger interface and Event types for capturing
// synchronization events: inbound edits, outbound notifications, connection
// lifecycle and discarded edits. It is separate from operational logging
// (slog); protocol capture provides a machine-readable trace of what each
// client sent and received.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/jigna/session.jlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Each event carries exactly one payload:
//   - EditEvent: a set_trait request received from a client
//   - NotifyEvent: a change sent to clients
//   - StateChangeEvent: connection attach/detach, session start/close
//   - DropEvent: an edit discarded without effect, with its reason
//   - ErrorEventData: transport or session failures
//
// # File Format
//
// Log files use CBOR encoding with .jlog extension. The jigna-log CLI tool
// views and summarizes them.
package log
