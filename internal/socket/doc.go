// Package socket implements the Stream Socket component.
//
// A Client owns one physical WebSocket connection to the feed:
//   - Connect/Send/Close lifecycle with Connecting -> Open -> Closed
//     state transitions
//   - Raw text frames delivered on the Messages channel in arrival order
//   - Read errors surfaced on the Errors channel, never to the caller
package socket
