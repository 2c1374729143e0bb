/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Every Metrics value owns its own registry, so several executors (and tests)
can live in one process without colliding on metric names.

# Features

- HTTP request metrics for the executor server (latency, throughput)
- Executor call metrics per service and outcome
- Circuit breaker state transitions
- Relay forward metrics per service
- Runtime websocket connections and frames
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "tracker")
	// ... perform call ...
	timer.Stop(monitoring.OutcomeSuccess)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
