package service

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/transport"
)

// --------------------------------------------------------------------------
// Decision
// --------------------------------------------------------------------------

type DecisionKind uint8

const (
	DecisionStop DecisionKind = iota
	DecisionOut
	DecisionForward
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionStop:
		return "stop"
	case DecisionOut:
		return "out"
	case DecisionForward:
		return "forward"
	default:
		return "unknown"
	}
}

// Decision is what a handled message results in
type Decision struct {
	Kind DecisionKind
	// Frame is set for DecisionOut
	Frame codec.Frame
	// Forward is set for DecisionForward
	Forward transport.Internal
}

// Stop sends nothing back
func Stop() Decision {
	return Decision{Kind: DecisionStop}
}

// Out writes f to the peer
func Out(f codec.Frame) Decision {
	return Decision{Kind: DecisionOut, Frame: f}
}

// Reply writes resp to the peer
func Reply(resp transport.Response) Decision {
	return Out(resp.Frame())
}

// Forward hands the carried request to another local service
func Forward(internal transport.Internal) Decision {
	return Decision{Kind: DecisionForward, Forward: internal}
}

// --------------------------------------------------------------------------
// Outcome
// --------------------------------------------------------------------------

// Outcome is either an immediate Decision or a Pending one
type Outcome struct {
	decision Decision
	pending  *Pending
}

// Immediate wraps a decision that is already known
func Immediate(d Decision) Outcome {
	return Outcome{decision: d}
}

// Defer wraps a pending decision
func Defer(p *Pending) Outcome {
	return Outcome{pending: p}
}

// Pending returns the pending operation, if any
func (o Outcome) Pending() (*Pending, bool) {
	return o.pending, o.pending != nil
}

// Decision returns the immediate decision, it is meaningless for a pending outcome
func (o Outcome) Decision() Decision {
	return o.decision
}

// --------------------------------------------------------------------------
// Pending operation
// --------------------------------------------------------------------------

// Pending is an asynchronously produced Decision
type Pending struct {
	done     chan struct{}
	decision Decision
	err      error
}

// Go runs fn on its own goroutine and returns the pending result
func Go(ctx context.Context, fn func(ctx context.Context) (Decision, error)) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				p.err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}
		}()
		p.decision, p.err = fn(ctx)
	}()
	return p
}

// Resolved returns an already completed Pending
func Resolved(d Decision, err error) *Pending {
	p := &Pending{done: make(chan struct{}), decision: d, err: err}
	close(p.done)
	return p
}

// Done is closed once the result is available
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result blocks until the operation completed and returns its result
func (p *Pending) Result() (Decision, error) {
	<-p.done
	return p.decision, p.err
}
