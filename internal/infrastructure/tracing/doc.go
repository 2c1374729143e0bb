/*
Package tracing provides lightweight request tracing for debugging.

# Overview

Every inbound HTTP request and every runtime message handled by the executor
runs in a span. Spans carry a trace id that is propagated through the
X-Trace-ID header and the request context, so the log lines of one page
request can be correlated across the server and the executor.

Completed spans are logged by a single collector goroutine; submission never
blocks and drops spans when the buffer is full.

# Usage

	tracer := tracing.New("executor", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "TRACKER_REQUEST")
	defer tracer.Submit(span)
*/
package tracing
