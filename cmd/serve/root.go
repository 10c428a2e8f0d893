package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/firestarter/cmd/util"
	"github.com/ValentinKolb/firestarter/rpc/common"
	"github.com/ValentinKolb/firestarter/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the BNet server",
		Long:    `Start the BNet server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is BNET_<flag> (e.g. BNET_HANDSHAKE_TIMEOUT=10s)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := common.DefaultServerConfig()
	flags := ServeCmd.PersistentFlags()

	// listener
	key := "endpoint"
	flags.String(key, defaults.Transport.Endpoint, cmdUtil.WrapString("The address on which the server will listen (e.g. 0.0.0.0:1119, /tmp/bnet.sock)"))

	key = "accept-rate"
	flags.Float64(key, 0, cmdUtil.WrapString("Maximum number of accepted connections per second, 0 disables throttling"))

	key = "accept-burst"
	flags.Int(key, 16, cmdUtil.WrapString("Number of connections that may be accepted at once before the accept rate applies"))

	// tcp tuning
	key = "tcp-nodelay"
	flags.Bool(key, defaults.Transport.TCPNoDelay, cmdUtil.WrapString("Disable Nagle's algorithm on accepted connections (only for tcp)"))

	key = "tcp-keepalive"
	flags.Int(key, 0, cmdUtil.WrapString("The keep-alive period in seconds, 0 keeps the OS default (only for tcp)"))

	key = "tcp-linger"
	flags.Int(key, defaults.Transport.TCPLingerSec, cmdUtil.WrapString("The linger time in seconds, negative keeps the OS default (only for tcp)"))

	key = "read-buffer"
	flags.Int(key, 0, cmdUtil.WrapString("The size of the socket read buffer in KB, 0 keeps the OS default (only for tcp)"))

	key = "write-buffer"
	flags.Int(key, 0, cmdUtil.WrapString("The size of the socket write buffer in KB, 0 keeps the OS default (only for tcp)"))

	// session limits
	key = "handshake-timeout"
	flags.Duration(key, defaults.Session.HandshakeTimeout, cmdUtil.WrapString("Time a new connection has to complete the connect exchange"))

	key = "pending-slots"
	flags.Int(key, defaults.Session.PendingSlots, cmdUtil.WrapString("Number of operations that may be pending per connection before reading stops"))

	key = "max-forward-depth"
	flags.Int(key, defaults.Session.MaxForwardDepth, cmdUtil.WrapString("Maximum number of nested forwards of one request"))

	key = "write-queue-depth"
	flags.Int(key, defaults.Session.WriteQueueDepth, cmdUtil.WrapString("Number of frames buffered for the writer before backpressure applies"))

	key = "max-body-size"
	flags.Uint32(key, defaults.Session.MaxBodySize, cmdUtil.WrapString("Frames declaring a larger body are rejected (in bytes, 0 = unlimited)"))

	// observability
	key = "log-level"
	flags.String(key, defaults.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics-endpoint"
	flags.String(key, "", cmdUtil.WrapString("Serve prometheus metrics on this address under /metrics (e.g. 127.0.0.1:9119), empty disables it"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Transport = common.TransportConfig{
		Endpoint:        viper.GetString("endpoint"),
		Kind:            viper.GetString("transport"),
		AcceptRate:      viper.GetFloat64("accept-rate"),
		AcceptBurst:     viper.GetInt("accept-burst"),
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("tcp-linger"),
		ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		WriteBufferSize: viper.GetInt("write-buffer") * 1024,
	}
	serveCmdConfig.Session = common.SessionConfig{
		HandshakeTimeout: viper.GetDuration("handshake-timeout"),
		PendingSlots:     viper.GetInt("pending-slots"),
		MaxForwardDepth:  viper.GetInt("max-forward-depth"),
		WriteQueueDepth:  viper.GetInt("write-queue-depth"),
		MaxBodySize:      viper.GetUint32("max-body-size"),
	}
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")

	return serveCmdConfig.Validate()
}

// run starts the BNet server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport(serveCmdConfig.Transport.Kind)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.NewRPCServer(serveCmdConfig, t).Serve(ctx)
}
