// Package stream implements the Reconnection Supervisor.
//
// A Manager owns the connect/subscribe/pump cycle for one logical
// subscription set:
//   - Idle -> Connecting -> Open -> WaitingToRetry -> Connecting loop
//   - Fixed retry delay after every close or error, retried forever
//   - The subscription plan is replayed identically after each
//     reconnect; the exchange is never assumed to remember it
package stream
