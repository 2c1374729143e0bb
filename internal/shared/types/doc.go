// Package types provides shared data structures for the bridge.
//
// These types travel across every context boundary: the window bus between
// page code and the relay, and the runtime channel between the relay and the
// privileged executor.
//
// Core Types:
//   - Envelope: normalized success/failure response of every executor call
//   - Message: window bus message (page <-> relay)
//   - RuntimeMessage: runtime channel message (relay <-> executor)
//   - TrackerRequest, DocstoreRequest, ProxyRequest: request descriptors
//   - RequestID: correlation identifier allocated by a page client
//
// Example Usage:
//
//	msg := types.Message{
//	    Type:      types.RequestFromPage(types.ServiceTracker),
//	    RequestID: 1,
//	    Payload:   payload,
//	}
package types
