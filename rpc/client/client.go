package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/ValentinKolb/firestarter/rpc/common"
	"github.com/ValentinKolb/firestarter/rpc/service/bnet"
	"github.com/ValentinKolb/firestarter/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"google.golang.org/protobuf/proto"
)

var Logger = logger.GetLogger("client")

// ErrClosed is returned for calls on a closed or failed connection
var ErrClosed = errors.New("client: connection closed")

// StatusError is returned when a response carries a non zero status
type StatusError struct {
	Token  uint32
	Status uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: response to token %d has status %d", e.Token, e.Status)
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// result contains the outcome of a call
type result struct {
	frame codec.Frame
	err   error
}

// Client is a single BNet connection. Calls are correlated with their
// responses by token and may be issued concurrently.
type Client struct {
	conn    net.Conn
	stream  *codec.Stream
	config  common.ClientConfig
	writeMu sync.Mutex

	pending   *xsync.MapOf[uint32, chan result]
	nextToken atomic.Uint32

	closed    chan struct{}
	closeOnce sync.Once
	err       error // set before closed is closed
}

// Dial opens a connection with the given transport and starts the client on it
func Dial(ctx context.Context, config common.ClientConfig, t transport.IRPCClientTransport) (*Client, error) {
	conn, err := t.Dial(ctx, config)
	if err != nil {
		return nil, err
	}
	Logger.Infof("Connected to %s using %s transport", config.Endpoint, t.GetName())
	return New(conn, config), nil
}

// New starts a client on an established connection
func New(conn net.Conn, config common.ClientConfig) *Client {
	limits := codec.DefaultLimits()
	if config.MaxBodySize > 0 {
		limits.MaxBodySize = config.MaxBodySize
	}

	c := &Client{
		conn:    conn,
		stream:  codec.NewStream(conn, limits),
		config:  config,
		pending: xsync.NewMapOf[uint32, chan result](),
		closed:  make(chan struct{}),
	}
	go c.readResponses()
	return c
}

// --------------------------------------------------------------------------
// Calls
// --------------------------------------------------------------------------

// Connect performs the handshake, it must be the first call on a new connection
func (c *Client) Connect(ctx context.Context, req *bnet.ConnectRequest) (*bnet.ConnectResponse, error) {
	f, err := c.Call(ctx, bnet.ConnectionServiceID, bnet.MethodConnect, req.Marshal())
	if err != nil {
		return nil, err
	}

	var resp bnet.ConnectResponse
	if err := resp.Unmarshal(f.Body); err != nil {
		return nil, fmt.Errorf("client: invalid connect response: %w", err)
	}
	return &resp, nil
}

// Call sends a request and waits for its response
func (c *Client) Call(ctx context.Context, serviceID, methodID uint32, body []byte) (codec.Frame, error) {
	token := c.nextToken.Add(1)
	respCh := make(chan result, 1)

	// Register the request, clean up when done
	c.pending.Store(token, respCh)
	defer c.pending.Delete(token)

	if err := c.write(serviceID, methodID, token, body); err != nil {
		return codec.Frame{}, err
	}

	if timeout := c.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case r := <-respCh:
		return r.frame, r.err
	case <-ctx.Done():
		return codec.Frame{}, fmt.Errorf("client: call %d.%d (token %d): %w", serviceID, methodID, token, ctx.Err())
	case <-c.closed:
		return codec.Frame{}, c.err
	}
}

// Notify sends a request without waiting for a response, for methods the
// server does not answer
func (c *Client) Notify(serviceID, methodID uint32, body []byte) error {
	return c.write(serviceID, methodID, c.nextToken.Add(1), body)
}

// Close closes the connection, pending calls fail with ErrClosed
func (c *Client) Close() error {
	c.fail(ErrClosed)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *Client) write(serviceID, methodID, token uint32, body []byte) error {
	select {
	case <-c.closed:
		return c.err
	default:
	}

	f := codec.NewFrame(codec.Header{
		ServiceID: serviceID,
		MethodID:  proto.Uint32(methodID),
		Token:     token,
	}, body)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout := c.config.Timeout(); timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("client: failed to set write deadline: %w", err)
		}
	}
	if err := c.stream.WriteFrame(f); err != nil {
		return fmt.Errorf("client: failed to send token %d: %w", token, err)
	}
	return nil
}

// readResponses reads frames in a loop and distributes them to waiting calls
func (c *Client) readResponses() {
	for {
		f, err := c.stream.ReadFrame()
		if err != nil {
			c.fail(fmt.Errorf("%w: %w", ErrClosed, err))
			return
		}

		if transport.Classify(f) != transport.KindResponse {
			Logger.Debugf("Ignoring request from server: %s", f.Header)
			continue
		}

		respCh, found := c.pending.LoadAndDelete(f.Header.Token)
		if !found {
			Logger.Warningf("Received response for unknown token %d", f.Header.Token)
			continue
		}

		if f.Header.Status != nil && *f.Header.Status != 0 {
			respCh <- result{err: &StatusError{Token: f.Header.Token, Status: *f.Header.Status}}
			continue
		}
		respCh <- result{frame: f}
	}
}

// fail records the first error and closes the connection
func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.closed)
		_ = c.conn.Close()
		Logger.Debugf("Connection closed: %v", err)
	})
}
