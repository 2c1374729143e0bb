/*
Package resilience provides the circuit breakers guarding the executor's
outbound calls.

# Overview

One breaker exists per external service (tracker, docstore, proxy). Only
transport failures count against a breaker: an HTTP error status means the
service answered, so it is reported to the caller but leaves the breaker alone.

# Usage

	group := resilience.NewGroup(resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
	})

	resp, err := resilience.Do(group.Get("tracker"), func() (*resty.Response, error) {
		return req.Get(url)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
