// Package logger provides a levelled logger backed by zap.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, message and, when given, the
// client ID as a structured field.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Connected to %s", addr)
//	logger.Info("client-1", "Handshake complete")
//	logger.Error("client-1", "Failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("client-1", "Debug message")
//
// # Output
//
// The default logger writes to stderr. Standard output is reserved for the
// ready/go handshake with the parent process and must carry nothing else.
//
// Components that prefer structured fields can take the underlying
// *zap.Logger from Zap().
package logger
