package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/common"
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/session"
	"github.com/ValentinKolb/firestarter/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// RPCServer accepts BNet connections and runs a session for each of them
type RPCServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	shared    *service.ServerShared
}

// NewRPCServer creates a new RPC server
// It takes a config and the transport to listen on as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		common.DefaultServerConfig(),
//		tcp.NewTCPServerTransport(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(config common.ServerConfig, transport transport.IRPCServerTransport) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:    config,
		transport: transport,
		shared:    service.NewServerShared(),
	}
}

// Shared returns the state shared by all sessions of the server
func (s *RPCServer) Shared() *service.ServerShared {
	return s.shared
}

// Serve initializes logging and metrics and accepts connections until ctx is
// cancelled. Cancelling ctx closes every open connection.
func (s *RPCServer) Serve(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Init logger
	common.InitLoggers(s.config)
	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	if s.config.MetricsEndpoint != "" {
		if err := s.serveMetrics(ctx); err != nil {
			return err
		}
	}

	deps := session.DefaultDeps(s.shared, s.config.Session)
	s.transport.RegisterHandler(func(ctx context.Context, conn net.Conn) {
		// errors are logged and counted by the session
		_ = session.Handle(ctx, conn, deps)
	})

	Logger.Infof("BNet setup completed, routing %s", strings.Join(serviceNames(deps.Requests), ", "))

	err := s.transport.Listen(ctx, s.config)
	Logger.Infof("RPC Server stopped after %s, %d sessions registered", s.shared.Uptime().Round(time.Second), s.shared.SessionCount())
	return err
}

// serviceNames lists the services of a registry in routing order
func serviceNames[M transport.Envelope](reg *service.Registry[M]) []string {
	names := make([]string, 0, reg.Len())
	for _, svc := range reg.Services() {
		names = append(names, svc.Name())
	}
	return names
}

// --------------------------------------------------------------------------
// Metrics endpoint
// --------------------------------------------------------------------------

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		common.WriteMetrics(w)
	})
	return mux
}

// serveMetrics exposes the prometheus metrics until ctx is cancelled
func (s *RPCServer) serveMetrics(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return fmt.Errorf("failed to create metrics listener: %w", err)
	}

	srv := &http.Server{
		Handler:           metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	context.AfterFunc(ctx, func() { _ = srv.Close() })

	go func() {
		Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics server failed: %v", err)
		}
	}()
	return nil
}
