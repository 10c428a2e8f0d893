package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// header field numbers as defined by bnet.protocol.Header
const (
	fieldServiceID protowire.Number = 1
	fieldMethodID  protowire.Number = 2
	fieldToken     protowire.Number = 3
	fieldObjectID  protowire.Number = 4
	fieldSize      protowire.Number = 5
	fieldStatus    protowire.Number = 6
)

// Header is the addressing and metadata part of a frame.
// Optional fields are nil when absent on the wire.
type Header struct {
	ServiceID uint32
	MethodID  *uint32
	Token     uint32
	ObjectID  *uint64
	Size      uint32
	Status    *uint32
}

// Method returns the method id and whether it was set
func (h Header) Method() (uint32, bool) {
	if h.MethodID == nil {
		return 0, false
	}
	return *h.MethodID, true
}

func (h Header) String() string {
	method := "-"
	if id, ok := h.Method(); ok {
		method = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("service=%d method=%s token=%d size=%d", h.ServiceID, method, h.Token, h.Size)
}

// --------------------------------------------------------------------------
// Schema encoding
// --------------------------------------------------------------------------

// appendHeader appends the protobuf encoding of h to b
func appendHeader(b []byte, h Header) []byte {
	b = protowire.AppendTag(b, fieldServiceID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.ServiceID))

	if h.MethodID != nil {
		b = protowire.AppendTag(b, fieldMethodID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*h.MethodID))
	}

	b = protowire.AppendTag(b, fieldToken, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Token))

	if h.ObjectID != nil {
		b = protowire.AppendTag(b, fieldObjectID, protowire.VarintType)
		b = protowire.AppendVarint(b, *h.ObjectID)
	}

	b = protowire.AppendTag(b, fieldSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Size))

	if h.Status != nil {
		b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*h.Status))
	}

	return b
}

// parseHeader decodes a header message. Unknown fields are skipped,
// a missing size field is reported as MissingFieldError.
func parseHeader(b []byte) (Header, error) {
	var h Header
	hasSize := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, protowire.ParseError(n))
		}
		b = b[n:]

		// every known field is a varint, anything else is skipped
		if typ != protowire.VarintType || num < fieldServiceID || num > fieldStatus {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Header{}, fmt.Errorf("%w: field %d: %v", ErrMalformedHeader, num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return Header{}, fmt.Errorf("%w: field %d: %v", ErrMalformedHeader, num, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldServiceID:
			h.ServiceID = uint32(v)
		case fieldMethodID:
			method := uint32(v)
			h.MethodID = &method
		case fieldToken:
			h.Token = uint32(v)
		case fieldObjectID:
			objectID := v
			h.ObjectID = &objectID
		case fieldSize:
			h.Size = uint32(v)
			hasSize = true
		case fieldStatus:
			status := uint32(v)
			h.Status = &status
		}
	}

	if !hasSize {
		return Header{}, &MissingFieldError{Field: "size"}
	}
	return h, nil
}
