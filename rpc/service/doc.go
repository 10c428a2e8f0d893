// Package service defines the contract every pluggable BNet service implements
// and the ordered registry the router dispatches through.
//
// A service is identified by a fully qualified name, the 32 bit FNV-1a hash of
// that name and a numeric id assigned by this process. Accept checks whether a
// header addresses the service, Handle produces an Outcome:
//
//   - Immediate(Decision): the decision is applied in the same turn
//   - Defer(*Pending): the decision is produced by a goroutine started with Go,
//     the router keeps the Pending in one of its bounded slots until it
//     completes
//
// A Decision is one of Stop (no reply), Out (write a frame to the peer) or
// Forward (readdress the request to another local service and route again).
//
// The Registry is fixed at construction. Route tries Accept of every service in
// registration order, the first service that accepts handles the message.
// A message no service accepts yields ErrNoRoute.
//
// Shared state is split into ServerShared (process wide, concurrent map of the
// active sessions) and ClientShared (per connection, owned by the session).
package service
