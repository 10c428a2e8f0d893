package codec

import (
	"bytes"
	"errors"
	"io"
)

const (
	readChunkSize = 4 * 1024
	// pending output is written out once it grows beyond this size
	maxPendingWrite = 64 * 1024
)

// Stream binds a Codec to a byte stream
type Stream struct {
	rw    io.ReadWriter
	codec *Codec
	rbuf  bytes.Buffer
	wbuf  bytes.Buffer
	chunk []byte
}

// NewStream wraps rw with a fresh codec
func NewStream(rw io.ReadWriter, limits Limits) *Stream {
	return &Stream{
		rw:    rw,
		codec: NewCodec(limits),
		chunk: make([]byte, readChunkSize),
	}
}

// ReadFrame blocks until a complete frame is decoded.
// A clean end of stream yields io.EOF, an end of stream in the middle of a
// frame yields io.ErrUnexpectedEOF.
func (s *Stream) ReadFrame() (Frame, error) {
	for {
		frame, ok, err := s.codec.Decode(&s.rbuf)
		if err != nil {
			return Frame{}, err
		}
		if ok {
			return frame, nil
		}

		n, err := s.rw.Read(s.chunk)
		if n > 0 {
			s.rbuf.Write(s.chunk[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Frame{}, err
			}
			if n > 0 {
				// decode what arrived together with the EOF first
				continue
			}
			if s.rbuf.Len() > 0 || s.codec.InProgress() {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, io.EOF
		}
	}
}

// QueueFrame encodes f into the write buffer without writing it out,
// unless the buffer grew too large
func (s *Stream) QueueFrame(f Frame) error {
	if err := s.codec.Encode(f, &s.wbuf); err != nil {
		return err
	}
	if s.wbuf.Len() >= maxPendingWrite {
		return s.Flush()
	}
	return nil
}

// Flush writes all queued frames to the underlying stream
func (s *Stream) Flush() error {
	if s.wbuf.Len() == 0 {
		return nil
	}
	_, err := s.wbuf.WriteTo(s.rw)
	s.wbuf.Reset()
	return err
}

// WriteFrame encodes and writes a single frame
func (s *Stream) WriteFrame(f Frame) error {
	if err := s.QueueFrame(f); err != nil {
		return err
	}
	return s.Flush()
}

// Buffered returns the number of read but not yet decoded bytes
func (s *Stream) Buffered() int {
	return s.rbuf.Len()
}
