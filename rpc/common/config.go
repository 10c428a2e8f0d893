package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/firestarter/rpc/codec"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultPendingSlots     = 2
	DefaultMaxForwardDepth  = 4
	DefaultWriteQueueDepth  = 16
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// TransportConfig holds the listener and socket settings
type TransportConfig struct {
	// Endpoint is the listen address (host:port for tcp, a path for unix)
	Endpoint string
	// Kind is the transport name, "tcp" or "unix"
	Kind string

	// accept throttling, a rate of 0 disables it
	AcceptRate  float64
	AcceptBurst int

	// TCP socket options
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative keeps the OS default
	ReadBufferSize  int
	WriteBufferSize int
}

// SessionConfig holds the per connection limits
type SessionConfig struct {
	// HandshakeTimeout bounds the connect exchange, measured from accept
	HandshakeTimeout time.Duration
	// PendingSlots is the number of concurrently pending operations per connection
	PendingSlots int
	// MaxForwardDepth bounds nested Forward decisions, zero disables forwarding
	MaxForwardDepth int
	// WriteQueueDepth is the number of frames the writer accepts before backpressure
	WriteQueueDepth int
	// MaxBodySize rejects frames with a larger declared body (0 = unlimited)
	MaxBodySize uint32
}

// ServerConfig holds all configuration parameters of a BNet server
type ServerConfig struct {
	Transport TransportConfig
	Session   SessionConfig

	// Logging configuration
	LogLevel string

	// MetricsEndpoint exposes prometheus metrics over http when set
	MetricsEndpoint string
}

// DefaultServerConfig returns a configuration with every limit set to its default
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport: TransportConfig{
			Endpoint:     "127.0.0.1:1119",
			Kind:         "tcp",
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
		Session: SessionConfig{
			HandshakeTimeout: DefaultHandshakeTimeout,
			PendingSlots:     DefaultPendingSlots,
			MaxForwardDepth:  DefaultMaxForwardDepth,
			WriteQueueDepth:  DefaultWriteQueueDepth,
			MaxBodySize:      codec.DefaultLimits().MaxBodySize,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *ServerConfig) Validate() error {
	if c.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint configured")
	}
	switch c.Transport.Kind {
	case "tcp", "unix":
	default:
		return fmt.Errorf("unknown transport %q, must be one of tcp, unix", c.Transport.Kind)
	}
	if c.Session.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive")
	}
	if c.Session.PendingSlots < 1 {
		return fmt.Errorf("pending slots must be at least 1")
	}
	if c.Session.MaxForwardDepth < 0 {
		return fmt.Errorf("max forward depth must not be negative")
	}
	if c.Session.WriteQueueDepth < 1 {
		return fmt.Errorf("write queue depth must be at least 1")
	}
	if c.Transport.AcceptRate < 0 || c.Transport.AcceptBurst < 0 {
		return fmt.Errorf("accept rate and burst must not be negative")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Limits returns the codec limits for the configured session
func (c *SessionConfig) Limits() codec.Limits {
	return codec.Limits{MaxBodySize: c.MaxBodySize}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("BNet Server")
	addField("Transport", c.Transport.Kind)
	addField("Endpoint", c.Transport.Endpoint)
	if c.Transport.AcceptRate > 0 {
		addField("Accept Rate", fmt.Sprintf("%.1f/s (burst %d)", c.Transport.AcceptRate, c.Transport.AcceptBurst))
	} else {
		addField("Accept Rate", "unlimited")
	}

	if c.Transport.Kind == "tcp" {
		addSection("TCP")
		addField("No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
		addField("Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
		addField("Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
		addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
		addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	}

	addSection("Session")
	addField("Handshake Timeout", c.Session.HandshakeTimeout.String())
	addField("Pending Slots", strconv.Itoa(c.Session.PendingSlots))
	addField("Max Forward Depth", strconv.Itoa(c.Session.MaxForwardDepth))
	addField("Write Queue Depth", strconv.Itoa(c.Session.WriteQueueDepth))
	addField("Max Body Size", fmt.Sprintf("%d bytes", c.Session.MaxBodySize))

	addSection("Observability")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	} else {
		addField("Metrics", "disabled")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	Transport     string
	TimeoutSecond int
	MaxBodySize   uint32
}

// Timeout returns the per call timeout, zero means no timeout
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	return sb.String()
}
