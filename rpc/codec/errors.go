package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTLSDetected is returned when the peer starts the stream with a TLS record
	ErrTLSDetected = errors.New("codec: the client is trying to do a TLS handshake")
	// ErrInvalidHeaderLength is returned for a zero length preamble
	ErrInvalidHeaderLength = errors.New("codec: invalid header length")
	// ErrMalformedHeader is returned when the header bytes are not a valid header message
	ErrMalformedHeader = errors.New("codec: malformed header")
	// ErrMissingField is matched by every MissingFieldError
	ErrMissingField = errors.New("codec: required data is missing from frame")
	// ErrBodyTooLarge is returned when the declared body size exceeds the configured limit
	ErrBodyTooLarge = errors.New("codec: body too large")
	// ErrHeaderTooLarge is returned when a serialized header does not fit into the length prefix
	ErrHeaderTooLarge = errors.New("codec: serialized header exceeds length prefix")
)

// MissingFieldError reports a required header field that was absent on the wire
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("codec: required data is missing from frame, field %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// EncodeError wraps a failure to serialize a frame header
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: failed to encode frame: %v", e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
