// Package cmd implements the command-line interface of bnetd.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the BNet server, every option is a flag or a BNET_<flag>
//     environment variable (.env and .env.local are loaded first)
//   - check: Client commands that connect to a running server and exercise
//     the handshake and the echo method
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See bnetd -help for a list of all commands.
package cmd
