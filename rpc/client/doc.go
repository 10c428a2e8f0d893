// Package client implements a BNet client on top of a single connection.
// It is used by the check command and by the end to end tests of the server.
//
// Usage Example:
//
//	c, err := client.Dial(ctx, common.ClientConfig{
//	  Endpoint:      "localhost:1119",
//	  Transport:     "tcp",
//	  TimeoutSecond: 5,
//	}, tcp.NewTCPClientTransport())
//	if err != nil {
//	  return err
//	}
//	defer c.Close()
//
//	resp, err := c.Connect(ctx, &bnet.ConnectRequest{})
//	frame, err := c.Call(ctx, bnet.ConnectionServiceID, bnet.MethodEcho, []byte("ping"))
//
// Responses are matched to calls by their token, so calls may be issued from
// several goroutines. Methods the server never answers (KeepAlive,
// RequestDisconnect) are sent with Notify.
package client
