package bnet

import (
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/transport"
)

var (
	_ service.Service[transport.Request] = (*ConnectionService)(nil)
	_ service.Service[transport.Request] = (*AuthenticationServer)(nil)
)

// NewRequestRegistry returns the registry for requests of an active session
func NewRequestRegistry() *service.Registry[transport.Request] {
	return service.NewRegistry[transport.Request](
		NewConnectionService(),
		NewAuthenticationServer(),
	)
}

// NewResponseRegistry returns the registry for responses of an active session.
// The server never sends requests to a client, so it is empty and every
// response is unsolicited.
func NewResponseRegistry() *service.Registry[transport.Response] {
	return service.NewRegistry[transport.Response]()
}
