// Package tcp implements the TCP socket transport of the BNet server and client.
// It provides the connectors for the base package, which owns the accept loop
// and the dialing logic.
//
// Accepted sockets are tuned from common.TransportConfig: TCPNoDelay,
// keep-alive period, linger and the kernel read and write buffer sizes.
// The client side always disables Nagle's algorithm.
package tcp
