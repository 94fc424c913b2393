// Package log provides structured protocol logging for MotionMount sessions.
//
// Protocol logging is separate from operational logging (slog). It records
// a machine-readable trace of every line exchanged with a mount, every
// decoded frame and every session state change, which is what you want
// when a device behaves unexpectedly in the field.
//
// # Basic Usage
//
//	// Development: print events through slog at debug level
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Capture to a CBOR file for later inspection
//	fileLogger, _ := log.NewFileLogger("/tmp/mount.mmlog")
//	cfg.ProtocolLogger = fileLogger
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: raw line bytes (FrameEvent)
//   - Wire: decoded frames and encoded requests (MessageEvent)
//   - Session: state changes (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Log files are a sequence of CBOR-encoded events with integer keys. Use
// Reader with a Filter to stream them back.
package log
