// Package logger provides structured logging for meshnode.
//
// It wraps the standard library log/slog:
//
//   - logger.go: Logger interface, configuration and level control
//   - context.go: context propagation of the attach cycle id and node identity
//   - redact.go: masking of token and key material
//
// Every line emitted during one attach cycle carries the cycle id, so a
// failed attach, the recovery branch and the retry can be read together.
package logger
