// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Each bridge context logs through a named child logger (page, relay,
// executor) so a single output stream can be split per context.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	relayLog := logger.For(logging.ContextRelay)
//	relayLog.Warn("No docstore cookies found", zap.String("domain", domain))
package logging
