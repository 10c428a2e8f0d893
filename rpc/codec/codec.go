package codec

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	// PreambleSize is the size of the big endian header length prefix
	PreambleSize = 2

	// first byte of a TLS handshake record and the highest major version byte
	tlsRecordHandshake byte = 0x16
	tlsMaxMajorVersion byte = 0x03
)

// Frame is one complete protocol message
type Frame struct {
	Header Header
	Body   []byte
}

// NewFrame builds a frame and stamps the declared size from the body
func NewFrame(h Header, body []byte) Frame {
	if body == nil {
		body = []byte{}
	}
	h.Size = uint32(len(body))
	return Frame{Header: h, Body: body}
}

// Limits constrains decode memory use
type Limits struct {
	// MaxBodySize is the largest accepted declared body size (0 = unlimited)
	MaxBodySize uint32
}

// DefaultLimits returns the limits used when nothing is configured
func DefaultLimits() Limits {
	return Limits{
		MaxBodySize: 8 * 1024 * 1024,
	}
}

type decodeStage uint8

const (
	stagePreamble decodeStage = iota
	stageHeader
	stageBody
)

// Codec converts between a byte buffer and frames. The decode stage is
// latched between calls.
type Codec struct {
	limits    Limits
	stage     decodeStage
	headerLen int
	header    Header
}

// NewCodec creates a codec in the preamble stage
func NewCodec(limits Limits) *Codec {
	return &Codec{limits: limits}
}

// Decode tries to take one frame from buf.
// It returns ok=false and a nil error when more bytes are needed, in that case
// nothing of the current stage is consumed.
func (c *Codec) Decode(buf *bytes.Buffer) (frame Frame, ok bool, err error) {
	for {
		switch c.stage {
		case stagePreamble:
			pending := buf.Bytes()
			if len(pending) < PreambleSize {
				return Frame{}, false, nil
			}
			if pending[0] == tlsRecordHandshake && pending[1] <= tlsMaxMajorVersion {
				return Frame{}, false, ErrTLSDetected
			}

			headerLen := int(binary.BigEndian.Uint16(pending[:PreambleSize]))
			if headerLen == 0 {
				return Frame{}, false, ErrInvalidHeaderLength
			}
			buf.Next(PreambleSize)
			c.headerLen = headerLen
			c.stage = stageHeader

		case stageHeader:
			if buf.Len() < c.headerLen {
				return Frame{}, false, nil
			}
			h, err := parseHeader(buf.Next(c.headerLen))
			if err != nil {
				return Frame{}, false, err
			}
			if c.limits.MaxBodySize > 0 && h.Size > c.limits.MaxBodySize {
				return Frame{}, false, ErrBodyTooLarge
			}
			c.header = h
			c.stage = stageBody

		case stageBody:
			size := int(c.header.Size)
			if buf.Len() < size {
				return Frame{}, false, nil
			}
			body := make([]byte, size)
			copy(body, buf.Next(size))

			frame = Frame{Header: c.header, Body: body}
			c.reset()
			return frame, true, nil
		}
	}
}

// Encode writes the length prefix, the header and the body of f to buf.
// The declared size is always taken from the body.
func (c *Codec) Encode(f Frame, buf *bytes.Buffer) error {
	h := f.Header
	h.Size = uint32(len(f.Body))

	headerBytes := appendHeader(nil, h)
	if len(headerBytes) > math.MaxUint16 {
		return &EncodeError{Err: ErrHeaderTooLarge}
	}

	var prefix [PreambleSize]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(headerBytes)))

	buf.Grow(PreambleSize + len(headerBytes) + len(f.Body))
	buf.Write(prefix[:])
	buf.Write(headerBytes)
	buf.Write(f.Body)
	return nil
}

// InProgress reports whether a frame is partially decoded
func (c *Codec) InProgress() bool {
	return c.stage != stagePreamble
}

func (c *Codec) reset() {
	c.stage = stagePreamble
	c.headerLen = 0
	c.header = Header{}
}
