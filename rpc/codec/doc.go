// Package codec implements the BNet wire format: an incremental decoder that
// turns a raw byte stream into discrete frames and an encoder that turns frames
// back into bytes.
//
// Wire format (repeated per frame):
//
//	┌──────────────┬────────────────────────────┬──────────────────────┐
//	│ len (u16 BE) │ header (protobuf, len B)   │ body (header.size B) │
//	└──────────────┴────────────────────────────┴──────────────────────┘
//
// The header is a protobuf encoded message with the fields
//
//	1: service_id (uint32)
//	2: method_id  (uint32, optional)
//	3: token      (uint32)
//	4: object_id  (uint64, optional)
//	5: size       (uint32, required)
//	6: status     (uint32, optional)
//
// Key Components:
//
//   - Codec: the stateful decoder. Decoding latches through three stages
//     (preamble, header, body) that survive across calls, so a frame that
//     arrives in several reads is decoded exactly as if it arrived at once.
//     Before the preamble is consumed the first two bytes are compared with a
//     TLS record signature, a client that starts an encrypted handshake is
//     rejected with ErrTLSDetected.
//
//   - Stream: binds a Codec to an io.ReadWriter with a read and a write buffer.
//     It is used by the session (handshake) and afterwards by the router
//     (steady state), so no buffered byte is lost when the connection is
//     promoted.
//
// Error Handling:
//
//	Any decode error leaves the latch state undefined. Callers must treat it
//	as fatal for the connection, there is no partial-frame recovery.
//
// Thread Safety:
//
//	A Codec is not safe for concurrent decoding. A Stream may be read by one
//	goroutine and written by another, the read and write paths share no state.
package codec
