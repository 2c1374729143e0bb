// Package config provides 12-factor configuration management for the bridge.
//
// Configuration is resolved in three layers, later layers winning:
//  1. Default() values
//  2. an optional YAML (.yaml, .yml) or TOML (.toml) file
//  3. environment variables
//
// Configuration Sections:
//   - Server: executor HTTP server (port, host)
//   - Executor: outbound HTTP client (timeout, retries, rate, breaker)
//   - Tracker: issue tracker base URL shown by the status endpoint
//   - Docstore: base origin, cookie domain and site path
//   - Relay: readiness re-announce delay, forward timeout, runtime URL
//   - Page: liveness check timeout
//   - Storage: bbolt state file
//   - Logging, RateLimit
//
// Example Usage:
//
//	cfg, err := config.Load(os.Getenv("BRIDGE_CONFIG"))
//	fmt.Printf("Executor on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - EXECUTOR_TIMEOUT, EXECUTOR_RETRY_COUNT, EXECUTOR_RPS, EXECUTOR_USER_AGENT,
//     EXECUTOR_BREAKER_FAILURES, EXECUTOR_BREAKER_TIMEOUT
//   - TRACKER_URL
//   - DOCSTORE_BASE_URL, DOCSTORE_COOKIE_DOMAIN, DOCSTORE_SITE
//   - RELAY_READY_DELAY, RELAY_FORWARD_TIMEOUT, RELAY_RUNTIME_URL
//   - PAGE_PING_TIMEOUT
//   - STORAGE_PATH
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
