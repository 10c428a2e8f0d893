// Package base provides the socket independent part of the server and client
// transports. Concrete transports (tcp, unix) only supply a connector that
// creates listeners or connections and tunes accepted sockets.
//
// Key Components:
//
//   - IServerConnector/IClientConnector: Interfaces for protocol-specific operations.
//
//   - serverTransport: Accept loop handing every connection to the registered
//     transport.ConnHandler on its own goroutine. Accepts are optionally
//     throttled with a token bucket (golang.org/x/time/rate) configured by
//     TransportConfig.AcceptRate and AcceptBurst. Cancelling the context passed
//     to Listen closes the listener and waits for running handlers.
//
//   - clientTransport: Dials one connection and applies the connector's
//     socket settings.
//
// The transports do not know about frames, the byte stream is owned by the
// connection handler.
package base
