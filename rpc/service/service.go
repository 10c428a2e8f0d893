package service

import (
	"context"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/transport"
)

// Method is one entry of a service method table
type Method struct {
	ID   uint32
	Name string
}

// Descriptor is the identity part of a service
type Descriptor interface {
	// Name returns the fully qualified service name
	Name() string
	// ID returns the id this process assigned to the service
	ID() uint32
	// Hash returns HashName(Name())
	Hash() uint32
	// Methods returns the method table in declaration order
	Methods() []Method
}

// Service is a pluggable handler for messages of type M
type Service[M transport.Envelope] interface {
	Descriptor

	// Accept returns the addressed method or an UnknownRequestError
	Accept(h codec.Header) (Method, error)

	// Handle processes an accepted message. Errors are fatal to the connection.
	Handle(ctx context.Context, method Method, shared *ClientShared, msg M) (Outcome, error)
}

// DefaultAccept implements the usual accept check: the header must carry a
// method and address the service id, then the method must be in the table.
func DefaultAccept(svc Descriptor, h codec.Header) (Method, error) {
	methodID, ok := h.Method()
	if !ok || h.ServiceID != svc.ID() {
		return Method{}, &UnknownRequestError{
			Service:   svc.Name(),
			ServiceID: h.ServiceID,
			MethodID:  h.MethodID,
			Reason:    ErrWrongService,
		}
	}

	for _, m := range svc.Methods() {
		if m.ID == methodID {
			return m, nil
		}
	}

	return Method{}, &UnknownRequestError{
		Service:   svc.Name(),
		ServiceID: h.ServiceID,
		MethodID:  h.MethodID,
		Reason:    ErrUnknownMethod,
	}
}

// HashName returns the 32 bit FNV-1a hash of a service name
func HashName(name string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)

	hash := uint32(offset32)
	for i := 0; i < len(name); i++ {
		hash ^= uint32(name[i])
		hash *= prime32
	}
	return hash
}
