package service

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// ClientHash identifies a connection by its peer address
type ClientHash uint64

// HashPeer derives the ClientHash of a peer address
func HashPeer(addr string) ClientHash {
	return ClientHash(xxhash.Sum64String(addr))
}

func (h ClientHash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// SessionInfo is the process wide view of an active session
type SessionInfo struct {
	SessionID   uuid.UUID
	Peer        string
	ConnectedAt time.Time
}

// --------------------------------------------------------------------------
// Process wide shared state
// --------------------------------------------------------------------------

// ServerShared is shared by all connections of a server
type ServerShared struct {
	Sessions  *xsync.MapOf[ClientHash, SessionInfo]
	StartedAt time.Time
}

// NewServerShared creates empty shared state
func NewServerShared() *ServerShared {
	return &ServerShared{
		Sessions:  xsync.NewMapOf[ClientHash, SessionInfo](),
		StartedAt: time.Now(),
	}
}

// Register records an active session
func (s *ServerShared) Register(client ClientHash, info SessionInfo) {
	s.Sessions.Store(client, info)
}

// Unregister removes a session, unless the entry already belongs to a newer one
func (s *ServerShared) Unregister(client ClientHash, sessionID uuid.UUID) {
	s.Sessions.Compute(client, func(old SessionInfo, loaded bool) (SessionInfo, bool) {
		if !loaded || old.SessionID != sessionID {
			return old, !loaded
		}
		return SessionInfo{}, true
	})
}

// SessionCount returns the number of active sessions
func (s *ServerShared) SessionCount() int {
	return s.Sessions.Size()
}

// Uptime returns the time since the shared state was created
func (s *ServerShared) Uptime() time.Duration {
	return time.Since(s.StartedAt)
}

// --------------------------------------------------------------------------
// Per connection shared state
// --------------------------------------------------------------------------

// ClientShared is the state of one connection handed to every handler
type ClientShared struct {
	ClientID  ClientHash
	Peer      string
	SessionID uuid.UUID
	Logger    logger.ILogger
	Server    *ServerShared
}

// NewClientShared creates the state for a newly promoted connection
func NewClientShared(peer string, sessionID uuid.UUID, log logger.ILogger, server *ServerShared) *ClientShared {
	return &ClientShared{
		ClientID:  HashPeer(peer),
		Peer:      peer,
		SessionID: sessionID,
		Logger:    log,
		Server:    server,
	}
}

func (c *ClientShared) String() string {
	return fmt.Sprintf("client %s (%s)", c.ClientID, c.Peer)
}
