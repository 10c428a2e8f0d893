// Package rpc contains the networking and dispatch core of the BNet server.
//
// The package is organized into several subpackages:
//
//   - codec: The length prefixed wire format, an incremental decoder and a
//     buffered frame stream on top of a net.Conn.
//
//   - transport: Request/Response envelopes, frame classification and the
//     listener and dialer abstractions with tcp and unix implementations.
//
//   - service: The service contract, ordered registries, routing decisions
//     and the state shared between connections. The bnet subpackage holds the
//     service binding tables, the connect payloads and the concrete services.
//
//   - router: The per connection engine with bounded pending slots, forward
//     re-dispatch and a backpressured writer.
//
//   - session: The connection lifecycle from accept over the handshake to the
//     routing engine.
//
//   - server/client: The RPC server tying a transport to sessions, and a
//     token correlating client used by tooling and tests.
//
//   - common: Configuration, logging and metrics shared by all of the above.
package rpc
