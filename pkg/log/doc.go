// Package log provides structured protocol logging for the bus substrate.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, auth, wire).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Components take a Logger in their configuration:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For offline analysis: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/tmp/session.blog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: bytes and descriptors moved by a socket (FrameEvent)
//   - Auth: handshake lines (AuthLineEvent) and step changes (StateChangeEvent)
//   - Wire: summaries of encoded and decoded values (ValueEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events, conventionally with the
// .blog extension. FileLogger starts new files with a FileHeader wrapped in
// a private CBOR tag, so files begin with da 62 75 73 67 ("\xdabusg").
// Readers skip headers and also accept bare event streams. The bus-log CLI tool provides
// viewing and statistics.
package log
