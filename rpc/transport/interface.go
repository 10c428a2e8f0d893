package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/firestarter/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ConnHandler is called by a server transport for every accepted connection.
// It owns the connection and must close it before returning.
type ConnHandler func(ctx context.Context, conn net.Conn)

// IRPCServerTransport is the interface for the listener collaborator.
// It only supplies ready streams, the protocol lives in the handler.
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for accepted connections
	RegisterHandler(handler ConnHandler)
	// Listen accepts connections until ctx is cancelled or the listener fails
	Listen(ctx context.Context, config common.ServerConfig) error
	// GetName returns the name of the transport (e.g. "tcp", "unix")
	GetName() string
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the client side dialer
type IRPCClientTransport interface {
	// Dial opens a single connection to the configured endpoint
	Dial(ctx context.Context, config common.ClientConfig) (net.Conn, error)
	// GetName returns the name of the transport (e.g. "tcp", "unix")
	GetName() string
}
