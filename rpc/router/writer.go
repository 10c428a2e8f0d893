package router

import (
	"context"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/common"
)

// writer owns the write side of the stream
type writer struct {
	stream   *codec.Stream
	frames   chan codec.Frame
	writable chan struct{}
	errs     chan error
	done     chan struct{}
}

func newWriter(stream *codec.Stream, depth int) *writer {
	return &writer{
		stream:   stream,
		frames:   make(chan codec.Frame, depth),
		writable: make(chan struct{}, 1),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (w *writer) TrySend(f codec.Frame) bool {
	select {
	case w.frames <- f:
		return true
	default:
		return false
	}
}

// Writable is signalled whenever the writer took a frame from its queue
func (w *writer) Writable() <-chan struct{} {
	return w.writable
}

// Err receives the first write error
func (w *writer) Err() <-chan error {
	return w.errs
}

// close tells the writer that no more frames follow. It writes out what it
// already accepted and stops, Done is closed afterwards.
func (w *writer) close() {
	close(w.frames)
}

// Done is closed when the writer stopped
func (w *writer) Done() <-chan struct{} {
	return w.done
}

// run writes frames until close was called or ctx is cancelled. Cancellation
// drops everything not yet written.
func (w *writer) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-w.frames:
			if !ok {
				if err := w.stream.Flush(); err != nil {
					w.errs <- err
				}
				return
			}
			select {
			case w.writable <- struct{}{}:
			default:
			}

			if err := w.stream.QueueFrame(f); err != nil {
				w.errs <- err
				return
			}
			common.FramesOut.Inc()

			// write out once everything queued so far is encoded
			if len(w.frames) == 0 {
				if err := w.stream.Flush(); err != nil {
					w.errs <- err
					return
				}
			}
		}
	}
}
