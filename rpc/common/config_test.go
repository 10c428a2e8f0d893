package common

import (
	"bytes"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfigIsValid(t *testing.T) {
	cfg := DefaultServerConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultPendingSlots, cfg.Session.PendingSlots)
	assert.Equal(t, DefaultHandshakeTimeout, cfg.Session.HandshakeTimeout)
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *ServerConfig)
	}{
		{"no endpoint", func(c *ServerConfig) { c.Transport.Endpoint = "" }},
		{"unknown transport", func(c *ServerConfig) { c.Transport.Kind = "http" }},
		{"zero slots", func(c *ServerConfig) { c.Session.PendingSlots = 0 }},
		{"zero handshake timeout", func(c *ServerConfig) { c.Session.HandshakeTimeout = 0 }},
		{"negative forward depth", func(c *ServerConfig) { c.Session.MaxForwardDepth = -1 }},
		{"zero write queue", func(c *ServerConfig) { c.Session.WriteQueueDepth = 0 }},
		{"negative accept rate", func(c *ServerConfig) { c.Transport.AcceptRate = -1 }},
		{"bad log level", func(c *ServerConfig) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestZeroForwardDepthIsValid(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Session.MaxForwardDepth = 0
	assert.NoError(t, cfg.Validate())
}

func TestServerConfigString(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MetricsEndpoint = ":9100"
	out := cfg.String()

	assert.Contains(t, out, "BNET SERVER")
	assert.Contains(t, out, cfg.Transport.Endpoint)
	assert.Contains(t, out, "Pending Slots")
	assert.Contains(t, out, ":9100")
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, logger.WARNING, level)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestWriteMetrics(t *testing.T) {
	FramesIn.Inc()

	var buf bytes.Buffer
	WriteMetrics(&buf)
	assert.Contains(t, buf.String(), "bnet_frames_in_total")
}
