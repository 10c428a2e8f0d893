// Package session drives a single accepted connection through its lifecycle.
//
// A connection starts in StateAccepted. The first frame it sends must be a
// connect request, which is answered directly under a handshake deadline
// (StateHandshaking). On success the connection is registered in the server
// wide session table and handed to the routing engine (StateActive). Whatever
// ends the engine, the session is unregistered and the connection closed
// (StateClosed).
//
//	accepted -> handshaking -> active -> closed
//	                 |                     ^
//	                 +---------------------+  (timeout, disconnect, bad request)
//
// Handle is the entry point used by the server transports.
package session
