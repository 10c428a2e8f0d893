// Package bnet contains the BNet service registration tables and the services
// needed to bring a connection up: ConnectionService (handshake, echo, keep
// alive) and AuthenticationServer (logon).
//
// Service Registration:
//
//	Exported lists the services this process exposes together with the id the
//	client must use to address them. Imported lists the services the client
//	exposes and the id it is required to bind them to. Both tables are keyed
//	by the FNV-1a hash of the fully qualified service name and are built once
//	at package initialisation.
//
// Handshake:
//
//	ConnectDirect handles the single request allowed before a session is
//	promoted. It validates the services the client exports against Imported,
//	resolves the hashes the client wants to import against Exported (unknown
//	hashes resolve to id 0) and returns the encoded ConnectResponse.
package bnet
