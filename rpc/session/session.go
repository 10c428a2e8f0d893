package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/common"
	"github.com/ValentinKolb/firestarter/rpc/router"
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/service/bnet"
	"github.com/ValentinKolb/firestarter/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("session")

// State is the lifecycle state of a session
type State int32

const (
	StateAccepted State = iota
	StateHandshaking
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// HandshakeFunc answers the connect request of a new connection
type HandshakeFunc func(req transport.Request) (transport.Response, error)

// Deps holds everything a session needs besides its connection
type Deps struct {
	Server    *service.ServerShared
	Requests  *service.Registry[transport.Request]
	Responses *service.Registry[transport.Response]
	Handshake HandshakeFunc
	Config    common.SessionConfig
}

// DefaultDeps wires the bnet services and the direct connect handshake
func DefaultDeps(server *service.ServerShared, config common.SessionConfig) Deps {
	return Deps{
		Server:    server,
		Requests:  bnet.NewRequestRegistry(),
		Responses: bnet.NewResponseRegistry(),
		Handshake: bnet.ConnectDirect,
		Config:    config,
	}
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// Session is one accepted connection
type Session struct {
	id         uuid.UUID
	conn       net.Conn
	peer       string
	stream     *codec.Stream
	deps       Deps
	acceptedAt time.Time
	state      atomic.Int32
}

// New wraps an accepted connection. The handshake deadline is measured from
// this call.
func New(conn net.Conn, deps Deps) *Session {
	if deps.Handshake == nil {
		deps.Handshake = bnet.ConnectDirect
	}
	if deps.Server == nil {
		deps.Server = service.NewServerShared()
	}
	if deps.Config.HandshakeTimeout <= 0 {
		deps.Config.HandshakeTimeout = common.DefaultHandshakeTimeout
	}

	peer := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		peer = addr.String()
	}

	s := &Session{
		id:         uuid.New(),
		conn:       conn,
		peer:       peer,
		stream:     codec.NewStream(conn, deps.Config.Limits()),
		deps:       deps,
		acceptedAt: time.Now(),
	}
	s.state.Store(int32(StateAccepted))
	return s
}

// ID returns the session id
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Handle runs a session for conn to completion. It always closes conn.
func Handle(ctx context.Context, conn net.Conn, deps Deps) error {
	return New(conn, deps).Run(ctx)
}

// Run performs the handshake and drives the connection until it ends.
// A peer closing an active connection is not an error.
func (s *Session) Run(ctx context.Context) error {
	common.SessionsAccepted.Inc()
	defer s.setState(StateClosed)
	defer s.conn.Close()

	s.setState(StateHandshaking)
	if err := s.handshake(ctx); err != nil {
		common.HandshakeFailures.Inc()
		Logger.Warningf("session %s from %s: handshake failed: %v", s.id, s.peer, err)
		return err
	}
	common.HandshakeDuration.UpdateDuration(s.acceptedAt)

	shared := service.NewClientShared(s.peer, s.id, Logger, s.deps.Server)
	s.deps.Server.Register(shared.ClientID, service.SessionInfo{
		SessionID:   s.id,
		Peer:        s.peer,
		ConnectedAt: s.acceptedAt,
	})
	defer s.deps.Server.Unregister(shared.ClientID, s.id)

	common.SessionsActive.Inc()
	defer common.SessionsActive.Dec()

	s.setState(StateActive)
	Logger.Infof("%s: session %s active", shared, s.id)
	if n := s.stream.Buffered(); n > 0 {
		Logger.Debugf("%s: %d bytes pipelined behind the connect request", shared, n)
	}

	engine := router.New(s.stream, shared, s.deps.Requests, s.deps.Responses, s.deps.Config)
	if err := engine.Run(ctx); err != nil {
		common.SessionErrors.Inc()
		Logger.Errorf("%s: session %s closed with error: %v", shared, s.id, err)
		return err
	}

	Logger.Infof("%s: session %s closed by peer", shared, s.id)
	return nil
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// handshake reads the connect request and writes its response, both under
// the handshake deadline
func (s *Session) handshake(ctx context.Context) error {
	if err := s.conn.SetDeadline(s.acceptedAt.Add(s.deps.Config.HandshakeTimeout)); err != nil {
		return fmt.Errorf("session: failed to set handshake deadline: %w", err)
	}
	// a cancelled context expires the deadline right away
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Now())
	})

	err := s.exchange()
	if !stop() {
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	if err := s.conn.SetDeadline(time.Time{}); err != nil {
		return fmt.Errorf("session: failed to clear handshake deadline: %w", err)
	}
	return nil
}

func (s *Session) exchange() error {
	f, err := s.stream.ReadFrame()
	if err != nil {
		return handshakeError(err)
	}

	req, ok := transport.AsRequest(f)
	if !ok {
		return fmt.Errorf("%w: got %s", ErrMissingRequest, f.Header)
	}

	resp, err := s.deps.Handshake(req)
	if err != nil {
		return fmt.Errorf("session: connect rejected: %w", err)
	}

	if err := s.stream.WriteFrame(resp.Frame()); err != nil {
		return handshakeError(err)
	}
	return nil
}

// handshakeError maps io failures during the handshake onto session errors
func handshakeError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%w: %v", ErrClientDisconnect, err)
	default:
		return fmt.Errorf("session: handshake failed: %w", err)
	}
}
