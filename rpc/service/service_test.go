package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

// fakeService records which instance handled a request
type fakeService struct {
	name    string
	id      uint32
	methods []Method
	accept  func(h codec.Header) (Method, error)
	handled *[]string
}

func (s *fakeService) Name() string      { return s.name }
func (s *fakeService) ID() uint32        { return s.id }
func (s *fakeService) Hash() uint32      { return HashName(s.name) }
func (s *fakeService) Methods() []Method { return s.methods }

func (s *fakeService) Accept(h codec.Header) (Method, error) {
	if s.accept != nil {
		return s.accept(h)
	}
	return DefaultAccept(s, h)
}

func (s *fakeService) Handle(_ context.Context, m Method, _ *ClientShared, req transport.Request) (Outcome, error) {
	*s.handled = append(*s.handled, s.name+"."+m.Name)
	return Immediate(Reply(transport.BuildEmptyResponse(req))), nil
}

func request(service, method uint32) transport.Request {
	return transport.NewRequest(codec.Header{ServiceID: service, MethodID: proto.Uint32(method), Token: 1}, nil)
}

func TestHashName(t *testing.T) {
	tests := map[string]uint32{
		"bnet.protocol.authentication.AuthenticationServer": 233634817,
		"bnet.protocol.channel.ChannelSubscriber":           3213656212,
		"bnet.protocol.ResponseService":                     3625566374,
		"bnet.protocol.connection.ConnectionService":        1698982289,
		"bnet.protocol.account.AccountNotify":               1423956503,
		"bnet.protocol.diag.DiagService":                    3111080599,
		"bnet.protocol.user_manager.UserManagerService":     1041835658,
	}
	for name, want := range tests {
		assert.Equal(t, want, HashName(name), name)
	}
	assert.Equal(t, uint32(2166136261), HashName(""))
}

func TestDefaultAccept(t *testing.T) {
	svc := &fakeService{name: "svc", id: 3, methods: []Method{{1, "Logon"}, {2, "ModuleNotify"}}}

	m, err := DefaultAccept(svc, request(3, 2).Header())
	require.NoError(t, err)
	assert.Equal(t, Method{2, "ModuleNotify"}, m)

	_, err = DefaultAccept(svc, request(4, 1).Header())
	assert.ErrorIs(t, err, ErrWrongService)

	_, err = DefaultAccept(svc, codec.Header{ServiceID: 3})
	assert.ErrorIs(t, err, ErrWrongService, "a missing method never matches")

	_, err = DefaultAccept(svc, request(3, 9).Header())
	assert.ErrorIs(t, err, ErrUnknownMethod)

	var unknown *UnknownRequestError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "svc", unknown.Service)
	assert.Equal(t, uint32(9), *unknown.MethodID)
}

func TestRegistryFirstMatchWins(t *testing.T) {
	var handled []string
	acceptAll := func(h codec.Header) (Method, error) { return Method{ID: 1, Name: "Any"}, nil }

	first := &fakeService{name: "first", id: 1, methods: []Method{{1, "One"}}, handled: &handled}
	greedy := &fakeService{name: "greedy", id: 2, accept: acceptAll, handled: &handled}
	shadowed := &fakeService{name: "shadowed", id: 1, methods: []Method{{1, "One"}}, handled: &handled}

	reg := NewRegistry[transport.Request](first, greedy, shadowed)
	require.Equal(t, 3, reg.Len())

	_, err := reg.Route(context.Background(), nil, request(1, 1))
	require.NoError(t, err)
	_, err = reg.Route(context.Background(), nil, request(7, 7))
	require.NoError(t, err)

	assert.Equal(t, []string{"first.One", "greedy.Any"}, handled)

	var names []string
	for _, svc := range reg.Services() {
		names = append(names, svc.Name())
	}
	assert.Equal(t, []string{"first", "greedy", "shadowed"}, names)
}

func TestRegistryNoRoute(t *testing.T) {
	var handled []string
	reg := NewRegistry[transport.Request](&fakeService{name: "only", id: 1, methods: []Method{{1, "One"}}, handled: &handled})

	_, err := reg.Route(context.Background(), nil, request(1, 5))
	require.ErrorIs(t, err, ErrNoRoute)
	assert.ErrorIs(t, err, ErrUnknownMethod, "the last accept error is kept")

	_, err = NewRegistry[transport.Response]().Route(context.Background(), nil, transport.BuildEmptyResponse(request(1, 1)))
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.Empty(t, handled)
}

func TestPending(t *testing.T) {
	release := make(chan struct{})
	p := Go(context.Background(), func(ctx context.Context) (Decision, error) {
		<-release
		return Stop(), nil
	})

	select {
	case <-p.Done():
		t.Fatal("pending completed before it was released")
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	d, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, DecisionStop, d.Kind)
}

func TestPendingPanic(t *testing.T) {
	p := Go(context.Background(), func(ctx context.Context) (Decision, error) {
		panic("boom")
	})
	_, err := p.Result()
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestOutcome(t *testing.T) {
	o := Immediate(Stop())
	_, pending := o.Pending()
	assert.False(t, pending)

	o = Defer(Resolved(Stop(), nil))
	p, pending := o.Pending()
	require.True(t, pending)
	_, err := p.Result()
	assert.NoError(t, err)
}

func TestServerSharedSessions(t *testing.T) {
	shared := NewServerShared()
	client := HashPeer("10.0.0.1:5000")
	first, second := uuid.New(), uuid.New()

	shared.Register(client, SessionInfo{SessionID: first, Peer: "10.0.0.1:5000"})
	assert.Equal(t, 1, shared.SessionCount())

	// a stale unregister must not remove a newer session
	shared.Register(client, SessionInfo{SessionID: second, Peer: "10.0.0.1:5000"})
	shared.Unregister(client, first)
	assert.Equal(t, 1, shared.SessionCount())

	shared.Unregister(client, second)
	assert.Zero(t, shared.SessionCount())

	shared.Unregister(HashPeer("unknown"), first)
	assert.Zero(t, shared.SessionCount())
}

func TestServerSharedUptime(t *testing.T) {
	shared := NewServerShared()
	shared.StartedAt = time.Now().Add(-time.Minute)
	assert.GreaterOrEqual(t, shared.Uptime(), time.Minute)
}

func TestHashPeerStable(t *testing.T) {
	assert.Equal(t, HashPeer("127.0.0.1:1119"), HashPeer("127.0.0.1:1119"))
	assert.NotEqual(t, HashPeer("127.0.0.1:1119"), HashPeer("127.0.0.1:1120"))
}
