/*
Package executor performs the privileged network calls of the bridge.

It is the only context allowed to read the cookie store and attach
credentials. Each call is normalized into a types.Envelope; no fault
escapes as a Go error or panic.

# Services

  - Tracker: JSON calls with optional basic auth and ambient cookies
  - Docstore: calls against a fixed base origin with an explicit Cookie
    header built from every cookie of the parent domain
  - Proxy: cookie-less passthrough returning HTTP metadata

# Usage

	exec := executor.New(store, executor.DefaultConfig(),
	    executor.WithLogger(log),
	    executor.WithMetrics(metrics),
	)
	env := exec.Handle(ctx, types.RuntimeMessage{Type: "TRACKER_REQUEST", Payload: raw})
*/
package executor
