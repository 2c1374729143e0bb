// Package runtime provides the privileged message channel between the relay
// and the executor.
//
// A Sender delivers one RuntimeMessage and waits for its Envelope. Two
// implementations exist:
//   - Local: calls a Handler in-process
//   - Client: speaks JSON frames over a WebSocket to a ServeConn loop
//
// Frames on the wire:
//
//	{"id": 7, "type": "TRACKER_REQUEST", "payload": {...}}   relay -> executor
//	{"id": 7, "response": {"success": true, "data": {...}}}  executor -> relay
//
// Frame ids are private to one connection; responses may arrive in any order.
package runtime
