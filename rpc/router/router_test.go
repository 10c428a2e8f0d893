package router

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/common"
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

type handleFunc func(ctx context.Context, m service.Method, req transport.Request) (service.Outcome, error)

// testService accepts every method of its id and delegates to handle
type testService struct {
	id     uint32
	handle handleFunc
}

func (s *testService) Name() string              { return "test.Service" }
func (s *testService) ID() uint32                { return s.id }
func (s *testService) Hash() uint32              { return service.HashName(s.Name()) }
func (s *testService) Methods() []service.Method { return []service.Method{{ID: 1, Name: "One"}, {ID: 2, Name: "Two"}} }

func (s *testService) Accept(h codec.Header) (service.Method, error) {
	return service.DefaultAccept(s, h)
}

func (s *testService) Handle(ctx context.Context, m service.Method, _ *service.ClientShared, req transport.Request) (service.Outcome, error) {
	return s.handle(ctx, m, req)
}

func echo(_ context.Context, _ service.Method, req transport.Request) (service.Outcome, error) {
	return service.Immediate(service.Reply(transport.BuildResponse(req, req.Body()))), nil
}

func testConfig() common.SessionConfig {
	return common.SessionConfig{
		PendingSlots:    2,
		MaxForwardDepth: 4,
		WriteQueueDepth: 16,
		MaxBodySize:     1 << 20,
	}
}

type harness struct {
	client *codec.Stream
	conn   net.Conn
	done   chan error
}

func start(t *testing.T, config common.SessionConfig, services ...service.Service[transport.Request]) *harness {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	shared := service.NewClientShared("pipe", uuid.New(), logger.GetLogger("session"), service.NewServerShared())
	engine := New(
		codec.NewStream(serverConn, config.Limits()),
		shared,
		service.NewRegistry[transport.Request](services...),
		service.NewRegistry[transport.Response](),
		config,
	)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		client: codec.NewStream(clientConn, codec.DefaultLimits()),
		conn:   clientConn,
		done:   make(chan error, 1),
	}
	go func() {
		h.done <- engine.Run(ctx)
		_ = serverConn.Close()
	}()

	t.Cleanup(func() {
		cancel()
		_ = clientConn.Close()
		_ = serverConn.Close()
	})
	return h
}

func (h *harness) send(t *testing.T, service, method, token uint32, body []byte) {
	t.Helper()
	f := codec.NewFrame(codec.Header{ServiceID: service, MethodID: proto.Uint32(method), Token: token}, body)
	require.NoError(t, h.conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, h.client.WriteFrame(f))
}

func (h *harness) recv(t *testing.T) codec.Frame {
	t.Helper()
	require.NoError(t, h.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	f, err := h.client.ReadFrame()
	require.NoError(t, err)
	return f
}

func (h *harness) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
		return nil
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestImmediateReply(t *testing.T) {
	h := start(t, testConfig(), &testService{id: 1, handle: echo})

	h.send(t, 1, 1, 42, []byte("ping"))
	f := h.recv(t)

	assert.Equal(t, transport.KindResponse, transport.Classify(f))
	assert.Equal(t, uint32(42), f.Header.Token)
	assert.Equal(t, []byte("ping"), f.Body)
}

func TestInboundOrder(t *testing.T) {
	h := start(t, testConfig(), &testService{id: 1, handle: echo})

	for token := uint32(1); token <= 20; token++ {
		f := codec.NewFrame(codec.Header{ServiceID: 1, MethodID: proto.Uint32(1), Token: token}, nil)
		require.NoError(t, h.client.QueueFrame(f))
	}
	go func() { _ = h.client.Flush() }()

	for token := uint32(1); token <= 20; token++ {
		assert.Equal(t, token, h.recv(t).Header.Token)
	}
}

func TestStopSendsNothing(t *testing.T) {
	stop := func(context.Context, service.Method, transport.Request) (service.Outcome, error) {
		return service.Immediate(service.Stop()), nil
	}
	h := start(t, testConfig(), &testService{id: 1, handle: stop}, &testService{id: 2, handle: echo})

	h.send(t, 1, 1, 1, nil)
	h.send(t, 2, 1, 2, nil)
	assert.Equal(t, uint32(2), h.recv(t).Header.Token)
}

func TestSlotBound(t *testing.T) {
	var started, running, maxRunning atomic.Int32
	release := make(chan struct{})

	slow := func(ctx context.Context, _ service.Method, req transport.Request) (service.Outcome, error) {
		started.Add(1)
		return service.Defer(service.Go(ctx, func(ctx context.Context) (service.Decision, error) {
			n := running.Add(1)
			for {
				old := maxRunning.Load()
				if n <= old || maxRunning.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return service.Reply(transport.BuildEmptyResponse(req)), nil
		})), nil
	}

	h := start(t, testConfig(), &testService{id: 1, handle: slow})
	for token := uint32(1); token <= 3; token++ {
		h.send(t, 1, 1, token, nil)
	}

	require.Eventually(t, func() bool { return started.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), started.Load(), "third request must wait for a free slot")

	release <- struct{}{}
	h.recv(t)

	require.Eventually(t, func() bool { return started.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)
	h.recv(t)
	h.recv(t)

	assert.LessOrEqual(t, maxRunning.Load(), int32(2))
}

func TestPendingCompletionOrder(t *testing.T) {
	gates := map[uint32]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}

	gated := func(ctx context.Context, _ service.Method, req transport.Request) (service.Outcome, error) {
		gate := gates[req.Token()]
		return service.Defer(service.Go(ctx, func(ctx context.Context) (service.Decision, error) {
			<-gate
			return service.Reply(transport.BuildEmptyResponse(req)), nil
		})), nil
	}

	h := start(t, testConfig(), &testService{id: 1, handle: gated})
	h.send(t, 1, 1, 1, nil)
	h.send(t, 1, 1, 2, nil)

	close(gates[2])
	assert.Equal(t, uint32(2), h.recv(t).Header.Token, "first completed is applied first")
	close(gates[1])
	assert.Equal(t, uint32(1), h.recv(t).Header.Token)
}

func TestForward(t *testing.T) {
	forward := func(_ context.Context, _ service.Method, req transport.Request) (service.Outcome, error) {
		return service.Immediate(service.Forward(transport.Internal{ServiceID: 2, MethodID: 2, Request: req})), nil
	}
	target := func(_ context.Context, m service.Method, req transport.Request) (service.Outcome, error) {
		return service.Immediate(service.Reply(transport.BuildResponse(req, []byte(m.Name)))), nil
	}

	h := start(t, testConfig(), &testService{id: 1, handle: forward}, &testService{id: 2, handle: target})
	h.send(t, 1, 1, 7, []byte("payload"))

	f := h.recv(t)
	assert.Equal(t, uint32(7), f.Header.Token)
	assert.Equal(t, []byte("Two"), f.Body)
}

func TestForwardIntoPending(t *testing.T) {
	pendingForward := func(ctx context.Context, _ service.Method, req transport.Request) (service.Outcome, error) {
		return service.Defer(service.Go(ctx, func(context.Context) (service.Decision, error) {
			return service.Forward(transport.Internal{ServiceID: 2, MethodID: 1, Request: req}), nil
		})), nil
	}
	pendingTarget := func(ctx context.Context, _ service.Method, req transport.Request) (service.Outcome, error) {
		return service.Defer(service.Go(ctx, func(context.Context) (service.Decision, error) {
			return service.Reply(transport.BuildResponse(req, req.Body())), nil
		})), nil
	}

	h := start(t, testConfig(), &testService{id: 1, handle: pendingForward}, &testService{id: 2, handle: pendingTarget})
	h.send(t, 1, 1, 3, []byte("deferred"))

	f := h.recv(t)
	assert.Equal(t, uint32(3), f.Header.Token)
	assert.Equal(t, []byte("deferred"), f.Body)
}

func TestForwardDepth(t *testing.T) {
	loop := func(_ context.Context, _ service.Method, req transport.Request) (service.Outcome, error) {
		return service.Immediate(service.Forward(transport.Internal{ServiceID: 1, MethodID: 1, Request: req})), nil
	}

	h := start(t, testConfig(), &testService{id: 1, handle: loop})
	h.send(t, 1, 1, 1, nil)

	assert.ErrorIs(t, h.result(t), ErrForwardDepth)
}

func TestUnsolicitedResponseIsFatal(t *testing.T) {
	h := start(t, testConfig(), &testService{id: 1, handle: echo})
	h.send(t, transport.ResponseServiceID, transport.ResponseMethodID, 1, nil)

	assert.ErrorIs(t, h.result(t), service.ErrNoRoute)
}

func TestNoRouteIsFatal(t *testing.T) {
	h := start(t, testConfig(), &testService{id: 1, handle: echo})
	h.send(t, 9, 1, 1, nil)

	assert.ErrorIs(t, h.result(t), service.ErrNoRoute)
}

func TestServiceErrorIsFatal(t *testing.T) {
	failing := func(ctx context.Context, _ service.Method, _ transport.Request) (service.Outcome, error) {
		return service.Defer(service.Go(ctx, func(context.Context) (service.Decision, error) {
			return service.Decision{}, service.ErrNotImplemented
		})), nil
	}
	h := start(t, testConfig(), &testService{id: 1, handle: failing})
	h.send(t, 1, 1, 1, nil)

	assert.ErrorIs(t, h.result(t), service.ErrNotImplemented)
}

func TestCodecErrorIsFatal(t *testing.T) {
	h := start(t, testConfig(), &testService{id: 1, handle: echo})
	go func() { _, _ = h.conn.Write([]byte{0x16, 0x03, 0x01, 0x00}) }()

	assert.ErrorIs(t, h.result(t), codec.ErrTLSDetected)
}

func TestEndOfStream(t *testing.T) {
	h := start(t, testConfig(), &testService{id: 1, handle: echo})
	require.NoError(t, h.conn.Close())

	assert.NoError(t, h.result(t))
}

func TestContextCancel(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	shared := service.NewClientShared("pipe", uuid.New(), logger.GetLogger("session"), service.NewServerShared())
	engine := New(codec.NewStream(serverConn, codec.DefaultLimits()), shared,
		service.NewRegistry[transport.Request](), service.NewRegistry[transport.Response](), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("engine ignored cancellation")
	}
}

func TestForwardDepthZero(t *testing.T) {
	forward := func(_ context.Context, _ service.Method, req transport.Request) (service.Outcome, error) {
		return service.Immediate(service.Forward(transport.Internal{ServiceID: 2, MethodID: 1, Request: req})), nil
	}
	config := testConfig()
	config.MaxForwardDepth = 0

	h := start(t, config, &testService{id: 1, handle: forward}, &testService{id: 2, handle: echo})
	h.send(t, 1, 1, 1, nil)

	assert.ErrorIs(t, h.result(t), ErrForwardDepth)
}

func TestReplyWrittenBeforeFatalFrame(t *testing.T) {
	h := start(t, testConfig(), &testService{id: 1, handle: echo})

	h.send(t, 1, 1, 5, []byte("last words"))
	h.send(t, 9, 1, 6, nil)

	f := h.recv(t)
	assert.Equal(t, uint32(5), f.Header.Token)
	assert.Equal(t, []byte("last words"), f.Body)
	assert.ErrorIs(t, h.result(t), service.ErrNoRoute)
}

func TestReplyWrittenAfterHalfClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	config := testConfig()
	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()

		shared := service.NewClientShared(conn.RemoteAddr().String(), uuid.New(), logger.GetLogger("session"), service.NewServerShared())
		engine := New(codec.NewStream(conn, config.Limits()), shared,
			service.NewRegistry[transport.Request](&testService{id: 1, handle: echo}),
			service.NewRegistry[transport.Response](), config)
		done <- engine.Run(context.Background())
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	client := codec.NewStream(conn, codec.DefaultLimits())
	require.NoError(t, client.WriteFrame(codec.NewFrame(codec.Header{ServiceID: 1, MethodID: proto.Uint32(1), Token: 9}, []byte("bye"))))
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	f, err := client.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, uint32(9), f.Header.Token)
	assert.Equal(t, []byte("bye"), f.Body)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestSlowReaderKeepsOrder(t *testing.T) {
	const n = 50
	config := testConfig()
	config.WriteQueueDepth = 1
	before := common.Backpressure.Get()

	h := start(t, config, &testService{id: 1, handle: echo})
	for token := uint32(1); token <= n; token++ {
		f := codec.NewFrame(codec.Header{ServiceID: 1, MethodID: proto.Uint32(1), Token: token}, []byte{byte(token)})
		require.NoError(t, h.client.QueueFrame(f))
	}
	go func() { _ = h.client.Flush() }()

	// nobody reads yet, replies pile up behind the writer
	time.Sleep(50 * time.Millisecond)

	for token := uint32(1); token <= n; token++ {
		f := h.recv(t)
		require.Equal(t, token, f.Header.Token)
		assert.Equal(t, []byte{byte(token)}, f.Body)
	}
	assert.Greater(t, common.Backpressure.Get(), before)
}
