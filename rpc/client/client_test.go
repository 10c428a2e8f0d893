package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/common"
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/service/bnet"
	"github.com/ValentinKolb/firestarter/rpc/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

// connected returns a client whose peer is a real session
func connected(t *testing.T, config common.ClientConfig) (*Client, *service.ServerShared) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	server := service.NewServerShared()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Handle(ctx, serverConn, session.DefaultDeps(server, common.DefaultServerConfig().Session))
	}()

	c := New(clientConn, config)
	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		<-done
	})
	return c, server
}

func TestConnectAndEcho(t *testing.T) {
	c, server := connected(t, common.ClientConfig{TimeoutSecond: 2})
	ctx := context.Background()

	resp, err := c.Connect(ctx, &bnet.ConnectRequest{
		ClientID:    &bnet.ProcessID{Label: 1, Epoch: 2},
		BindRequest: &bnet.BindRequest{ImportedServiceHash: []uint32{service.HashName(bnet.ConnectionServiceName)}},
	})
	require.NoError(t, err)
	assert.Equal(t, bnet.ServerProcess(), resp.ServerID)
	assert.Equal(t, []uint32{bnet.ConnectionServiceID}, resp.BindResponse.ImportedServiceID)

	f, err := c.Call(ctx, bnet.ConnectionServiceID, bnet.MethodEcho, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), f.Body)
	assert.Equal(t, 1, server.SessionCount())
}

func TestConcurrentCallsAreCorrelated(t *testing.T) {
	c, _ := connected(t, common.ClientConfig{TimeoutSecond: 2})
	ctx := context.Background()
	_, err := c.Connect(ctx, &bnet.ConnectRequest{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("msg-%d", i))
			f, err := c.Call(ctx, bnet.ConnectionServiceID, bnet.MethodEcho, payload)
			if err != nil {
				errs <- err
				return
			}
			if string(f.Body) != string(payload) {
				errs <- fmt.Errorf("got %q for %q", f.Body, payload)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestLogon(t *testing.T) {
	c, _ := connected(t, common.ClientConfig{TimeoutSecond: 2})
	ctx := context.Background()
	_, err := c.Connect(ctx, &bnet.ConnectRequest{})
	require.NoError(t, err)

	logon := bnet.LogonRequest{Program: "WoW", Platform: "Win", Locale: "enUS"}
	f, err := c.Call(ctx, bnet.AuthenticationServerID, bnet.MethodLogon, logon.Marshal())
	require.NoError(t, err)
	assert.Empty(t, f.Body)
}

func TestUnansweredCallTimesOut(t *testing.T) {
	c, _ := connected(t, common.ClientConfig{})
	_, err := c.Connect(context.Background(), &bnet.ConnectRequest{})
	require.NoError(t, err)

	// keep alive is never answered
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Call(ctx, bnet.ConnectionServiceID, bnet.MethodKeepAlive, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the connection is still usable
	require.NoError(t, c.Notify(bnet.ConnectionServiceID, bnet.MethodKeepAlive, nil))
	f, err := c.Call(context.Background(), bnet.ConnectionServiceID, bnet.MethodEcho, []byte("alive"))
	require.NoError(t, err)
	assert.Equal(t, []byte("alive"), f.Body)
}

func TestServerClosesOnBadHandshake(t *testing.T) {
	c, _ := connected(t, common.ClientConfig{TimeoutSecond: 2})

	_, err := c.Call(context.Background(), bnet.ConnectionServiceID, bnet.MethodEcho, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCallAfterClose(t *testing.T) {
	c, _ := connected(t, common.ClientConfig{TimeoutSecond: 2})
	require.NoError(t, c.Close())

	_, err := c.Call(context.Background(), bnet.ConnectionServiceID, bnet.MethodEcho, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Notify(bnet.ConnectionServiceID, bnet.MethodKeepAlive, nil), ErrClosed)
}

func TestStatusError(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	c := New(clientConn, common.ClientConfig{TimeoutSecond: 2})
	defer c.Close()

	// answer the first request with a failed status
	go func() {
		stream := codec.NewStream(serverConn, codec.DefaultLimits())
		f, err := stream.ReadFrame()
		if err != nil {
			return
		}
		_ = stream.WriteFrame(codec.NewFrame(codec.Header{
			ServiceID: 254,
			Token:     f.Header.Token,
			Status:    proto.Uint32(3),
		}, nil))
	}()

	_, err := c.Call(context.Background(), 1, 1, nil)
	var status *StatusError
	require.True(t, errors.As(err, &status), "got %v", err)
	assert.Equal(t, uint32(3), status.Status)
}
