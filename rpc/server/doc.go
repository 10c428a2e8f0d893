// Package server implements the BNet RPC server. It ties a listening
// transport to the session lifecycle: every accepted connection is handed to
// session.Handle together with the bnet service registries and the state
// shared by all sessions.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Transport.Endpoint = "0.0.0.0:1119"
//	config.MetricsEndpoint = "127.0.0.1:9119"
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport())
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// When MetricsEndpoint is set, the counters of the common package are served
// in prometheus text format under /metrics.
//
// Thread Safety:
//
//	Serve must be called only once. Sessions run concurrently, each one on its
//	own goroutines.
package server
