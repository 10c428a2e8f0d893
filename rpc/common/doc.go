// Package common provides the configuration, logging and metrics shared by
// the server, the client and the session packages.
//
// Key Components:
//
//   - ServerConfig: listener, socket and per-session limits of a BNet server
//     (handshake timeout, pending slots, forward depth, write queue depth, body
//     size limit). Defaults are returned by DefaultServerConfig.
//
//   - ClientConfig: endpoint and timeout for the BNet client.
//
//   - Logger: custom formatting for the dragonboat logger facade. Every package
//     obtains its logger with logger.GetLogger(name), InitLoggers installs the
//     factory and sets the level of all package loggers.
//
//   - Metrics: process wide counters and histograms registered with
//     VictoriaMetrics/metrics, exposed in prometheus text format by the server.
package common
