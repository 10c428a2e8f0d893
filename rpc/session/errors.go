package session

import "errors"

var (
	// ErrClientDisconnect is returned when the peer leaves before the handshake completed
	ErrClientDisconnect = errors.New("session: client disconnected during handshake")
	// ErrMissingRequest is returned when the first frame is not a request
	ErrMissingRequest = errors.New("session: first frame is not a request")
	// ErrTimeout is returned when the handshake did not complete in time
	ErrTimeout = errors.New("session: handshake timed out")
)
