// Package window provides an in-process equivalent of window.postMessage.
//
// Every listener sees every posted message, in post order, on one dispatch
// goroutine per window. Messages are cloned through the wire codec when
// posted, so receivers never share memory with the sender. Each message is
// stamped with the id of the context that posted it; listeners compare it
// with their own window id to reject foreign senders.
package window
