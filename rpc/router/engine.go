package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/common"
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("router")

// closeTimeout bounds writing out the remaining frames when the engine stops
const closeTimeout = 5 * time.Second

var (
	// ErrWriteFailed is returned when the connection can no longer be written to
	ErrWriteFailed = errors.New("router: write failed")
	// ErrForwardDepth is returned when nested forwards exceed the configured depth
	ErrForwardDepth = errors.New("router: forward depth exceeded")
	// ErrNoFreeSlot is returned when a pending outcome finds every slot occupied
	ErrNoFreeSlot = errors.New("router: no free pending slot")
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// slot holds one pending operation, a nil pending marks a free slot
type slot struct {
	pending *service.Pending
	depth   int
}

type completion struct {
	index   int
	pending *service.Pending
}

type inboundFrame struct {
	frame codec.Frame
	err   error
}

// Engine drives one active connection
type Engine struct {
	stream    *codec.Stream
	shared    *service.ClientShared
	requests  *service.Registry[transport.Request]
	responses *service.Registry[transport.Response]
	config    common.SessionConfig

	slots     []slot
	completed chan completion
	queue     outbound
}

// New creates an engine for a promoted connection. The stream must not be
// used by anyone else afterwards.
func New(
	stream *codec.Stream,
	shared *service.ClientShared,
	requests *service.Registry[transport.Request],
	responses *service.Registry[transport.Response],
	config common.SessionConfig,
) *Engine {
	if config.PendingSlots < 1 {
		config.PendingSlots = common.DefaultPendingSlots
	}
	if config.WriteQueueDepth < 1 {
		config.WriteQueueDepth = common.DefaultWriteQueueDepth
	}

	return &Engine{
		stream:    stream,
		shared:    shared,
		requests:  requests,
		responses: responses,
		config:    config,
		slots:     make([]slot, config.PendingSlots),
		completed: make(chan completion, config.PendingSlots),
	}
}

// --------------------------------------------------------------------------
// Engine loop
// --------------------------------------------------------------------------

// Run drives the connection until the peer closes it, a fatal error occurs
// or ctx is cancelled. Unless ctx was cancelled or writing failed, every
// frame produced before the stop is written out before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan inboundFrame)
	go e.readLoop(ctx, inbound)

	w := newWriter(e.stream, e.config.WriteQueueDepth)
	go w.run(ctx)

	err := e.loop(ctx, inbound, w)
	if ctx.Err() != nil || errors.Is(err, ErrWriteFailed) {
		return err
	}

	if closeErr := e.close(ctx, w); closeErr != nil {
		closeErr = fmt.Errorf("%w: %w", ErrWriteFailed, closeErr)
		if err == nil || errors.Is(err, io.EOF) {
			return closeErr
		}
		Logger.Warningf("%s: %v", e.shared, closeErr)
	}
	return finish(err)
}

// loop runs engine turns until something stops the connection
func (e *Engine) loop(ctx context.Context, inbound <-chan inboundFrame, w *writer) error {
	for {
		// 1. apply completed operations
		if err := e.drain(ctx); err != nil {
			return err
		}

		// 2. admit new frames while a slot is free
	admit:
		for e.freeSlot() >= 0 {
			select {
			case in := <-inbound:
				if err := e.receive(ctx, in); err != nil {
					return err
				}
			default:
				break admit
			}
		}

		// 3. flush
		e.flush(w)

		// idle until something happens
		var admitCh <-chan inboundFrame
		if e.freeSlot() >= 0 {
			admitCh = inbound
		}
		var writableCh <-chan struct{}
		if e.queue.len() > 0 {
			writableCh = w.Writable()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-w.Err():
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)

		case c := <-e.completed:
			if err := e.complete(ctx, c); err != nil {
				return err
			}

		case in := <-admitCh:
			if err := e.receive(ctx, in); err != nil {
				return err
			}

		case <-writableCh:
		}
	}
}

// close hands the remaining outbound frames to the writer and waits until
// it wrote them out
func (e *Engine) close(ctx context.Context, w *writer) error {
	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()

	for e.queue.len() > 0 {
		if _, blocked := e.queue.flush(w); !blocked {
			break
		}
		select {
		case <-w.Writable():
		case err := <-w.Err():
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.close()
	select {
	case <-w.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-w.Err():
		return err
	default:
		return nil
	}
}

// finish turns a clean end of stream into a nil error
func finish(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (e *Engine) readLoop(ctx context.Context, inbound chan<- inboundFrame) {
	for {
		f, err := e.stream.ReadFrame()
		select {
		case inbound <- inboundFrame{frame: f, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// drain applies every completion that is already available
func (e *Engine) drain(ctx context.Context) error {
	for {
		select {
		case c := <-e.completed:
			if err := e.complete(ctx, c); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (e *Engine) flush(w *writer) {
	if e.queue.len() == 0 {
		return
	}
	sent, blocked := e.queue.flush(w)
	if blocked {
		common.Backpressure.Inc()
		Logger.Debugf("%s: writer full after %d frames, %d queued", e.shared, sent, e.queue.len())
	}
}

// --------------------------------------------------------------------------
// Routing
// --------------------------------------------------------------------------

// receive handles one admitted frame or the read error that ended the stream
func (e *Engine) receive(ctx context.Context, in inboundFrame) error {
	if in.err != nil {
		if errors.Is(in.err, io.EOF) {
			Logger.Debugf("%s: end of stream", e.shared)
			return in.err
		}
		return fmt.Errorf("router: read failed: %w", in.err)
	}

	common.FramesIn.Inc()
	f := in.frame

	switch transport.Classify(f) {
	case transport.KindResponse:
		resp, _ := transport.AsResponse(f)
		outcome, err := e.responses.Route(ctx, e.shared, resp)
		if err != nil {
			return err
		}
		return e.apply(ctx, outcome, 0)

	default:
		req, _ := transport.AsRequest(f)
		outcome, err := e.requests.Route(ctx, e.shared, req)
		if err != nil {
			return err
		}
		return e.apply(ctx, outcome, 0)
	}
}

// apply applies an outcome produced at the given forward depth
func (e *Engine) apply(ctx context.Context, outcome service.Outcome, depth int) error {
	if pending, ok := outcome.Pending(); ok {
		return e.occupy(ctx, pending, depth)
	}
	return e.decide(ctx, outcome.Decision(), depth)
}

func (e *Engine) decide(ctx context.Context, d service.Decision, depth int) error {
	switch d.Kind {
	case service.DecisionStop:
		return nil

	case service.DecisionOut:
		e.queue.push(d.Frame)
		return nil

	case service.DecisionForward:
		if depth >= e.config.MaxForwardDepth {
			return fmt.Errorf("%w: limit is %d", ErrForwardDepth, e.config.MaxForwardDepth)
		}
		req := d.Forward.Readdress()
		Logger.Debugf("%s: forwarding token %d to service %d method %d", e.shared, req.Token(), d.Forward.ServiceID, d.Forward.MethodID)

		outcome, err := e.requests.Route(ctx, e.shared, req)
		if err != nil {
			return fmt.Errorf("router: forward failed: %w", err)
		}
		return e.apply(ctx, outcome, depth+1)

	default:
		return fmt.Errorf("router: unknown decision %s", d.Kind)
	}
}

// --------------------------------------------------------------------------
// Pending slots
// --------------------------------------------------------------------------

func (e *Engine) freeSlot() int {
	for i := range e.slots {
		if e.slots[i].pending == nil {
			return i
		}
	}
	return -1
}

// occupy stores a pending operation in a free slot and watches it
func (e *Engine) occupy(ctx context.Context, pending *service.Pending, depth int) error {
	index := e.freeSlot()
	if index < 0 {
		return ErrNoFreeSlot
	}
	e.slots[index] = slot{pending: pending, depth: depth}
	common.PendingStarted.Inc()

	go func() {
		select {
		case <-pending.Done():
		case <-ctx.Done():
			return
		}
		select {
		case e.completed <- completion{index: index, pending: pending}:
		case <-ctx.Done():
		}
	}()
	return nil
}

// complete frees the slot of a finished operation and applies its decision
func (e *Engine) complete(ctx context.Context, c completion) error {
	s := e.slots[c.index]
	if s.pending != c.pending {
		return fmt.Errorf("router: completion for slot %d does not match its operation", c.index)
	}
	e.slots[c.index] = slot{}

	d, err := s.pending.Result()
	if err != nil {
		return err
	}
	return e.decide(ctx, d, s.depth)
}
