// Package main is the entry point for the SprintBridge executor server.
//
// The executor is the privileged side of the bridge. Relays connect to its
// runtime endpoint and forward tracker, docstore and proxy requests, which it
// performs with stored cookies and basic auth credentials.
//
// Architecture:
//
//	Page client → window bus → Relay → /runtime (WebSocket) → Executor → Tracker
//	                                                                   → Docstore
//	                                                                   → Any URL
//
// The server provides:
//   - WebSocket runtime endpoint for relays
//   - REST API for status, connection tests and cookie management
//   - Prometheus metrics
//   - Origin allowlist and rate limiting
//
// Configuration:
//   - Defaults
//   - YAML or TOML file (-config)
//   - Environment variables (12-factor)
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Production mode
//	./server -config bridge.yaml -port 8000
//
//	# Development mode (colored logs, debug level)
//	LOG_DEV=true LOG_LEVEL=debug ./server
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
