package router

import (
	"github.com/ValentinKolb/firestarter/rpc/codec"
)

// sink accepts frames without blocking
type sink interface {
	// TrySend hands f over and reports false if there is no room
	TrySend(f codec.Frame) bool
}

// outbound is the FIFO of frames waiting for the writer
type outbound struct {
	frames []codec.Frame
}

func (q *outbound) push(f codec.Frame) {
	q.frames = append(q.frames, f)
}

func (q *outbound) len() int {
	return len(q.frames)
}

// flush hands frames to s in order until s rejects one. The rejected frame
// stays at the head.
func (q *outbound) flush(s sink) (sent int, blocked bool) {
	for len(q.frames) > 0 {
		if !s.TrySend(q.frames[0]) {
			return sent, true
		}
		q.frames[0] = codec.Frame{}
		q.frames = q.frames[1:]
		sent++
	}
	q.frames = nil
	return sent, false
}
