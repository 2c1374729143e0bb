// Package relay forwards page requests from a window to the privileged
// runtime channel and posts the responses back.
//
// One demultiplexing listener handles every message kind:
//   - {SERVICE}_REQUEST_FROM_PAGE: forwarded as {SERVICE}_REQUEST, answered
//     with {SERVICE}_RESPONSE_TO_PAGE carrying the same request id
//   - PING: answered with PONG
//   - anything else, or anything posted by another context: ignored
//
// On Start the relay announces READY twice, immediately and after
// Config.ReadyDelay, for pages whose listener is registered late.
package relay
