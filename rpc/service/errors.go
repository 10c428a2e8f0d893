package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRoute is returned when no service accepts a message
	ErrNoRoute = errors.New("no service accepted the message")
	// ErrWrongService is the reason of an UnknownRequestError for a foreign service id or a missing method
	ErrWrongService = errors.New("request is not addressed to this service")
	// ErrUnknownMethod is the reason of an UnknownRequestError for a method not in the table
	ErrUnknownMethod = errors.New("unknown method")
	// ErrNotImplemented is returned by methods that are known but not handled
	ErrNotImplemented = errors.New("method not implemented")
	// ErrHandlerPanic is returned by a Pending whose function panicked
	ErrHandlerPanic = errors.New("service handler panicked")
)

// UnknownRequestError is returned by Accept for a header the service does not handle
type UnknownRequestError struct {
	Service   string
	ServiceID uint32
	MethodID  *uint32
	Reason    error
}

func (e *UnknownRequestError) Error() string {
	method := "none"
	if e.MethodID != nil {
		method = fmt.Sprintf("%d", *e.MethodID)
	}
	return fmt.Sprintf("%s: unknown request for service id %d method %s: %v", e.Service, e.ServiceID, method, e.Reason)
}

func (e *UnknownRequestError) Unwrap() error {
	return e.Reason
}

// InvalidRequestError is a structural rejection of an accepted request
type InvalidRequestError struct {
	Service string
	Method  string
	Reason  string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s.%s: invalid request: %s", e.Service, e.Method, e.Reason)
}

// PayloadError reports a body that could not be decoded or encoded
type PayloadError struct {
	Message string
	Encode  bool
	Err     error
}

func (e *PayloadError) Error() string {
	op := "decode"
	if e.Encode {
		op = "encode"
	}
	return fmt.Sprintf("failed to %s %s: %v", op, e.Message, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}
