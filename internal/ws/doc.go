// Package ws exposes the runtime channel over WebSocket.
//
// A relay running in another process dials the endpoint and sends request
// frames {id, type, payload}; each is answered with {id, response} once the
// executor has produced the envelope. Frames on one connection are handled
// concurrently and answered in completion order.
//
// Browser clients must present an allowed Origin; clients that send no
// Origin header, such as bridgectl, are accepted.
//
// Example Usage:
//
//	handler := ws.NewHandler(exec, allowedOrigins, log, metrics)
//	router.GET("/runtime", handler.HandleConnection)
//	defer handler.Close()
package ws
