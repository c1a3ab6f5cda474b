package session

import (
	"time"

	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/wire"
)

// ClientSession drives the client side of one connection attempt
// (§4.1: Idle → Connecting → Connected → Disconnecting).
type ClientSession struct {
	State    ClientState
	Peer     ids.PeerID
	LastSent time.Time
	LastRecv time.Time
}

// NewClientSession starts a session in Idle.
func NewClientSession() *ClientSession {
	return &ClientSession{State: ClientIdle}
}

// BeginConnect moves to Connecting and returns the handshake request to send.
func (c *ClientSession) BeginConnect(protocolID, clientID uint64, token []byte, now time.Time) wire.HandshakeRequest {
	c.State = ClientConnecting
	c.LastSent = now
	return wire.HandshakeRequest{ProtocolID: protocolID, ClientID: clientID, Token: token}
}

// HandleReply applies the server's handshake reply. A refused reply leaves
// the session in Connecting so the caller can retry with a fresh token, or
// give up after its own attempt budget.
func (c *ClientSession) HandleReply(reply wire.HandshakeReply, now time.Time) bool {
	if reply.Status != wire.StatusAccepted {
		return false
	}
	c.Peer = ids.PeerID(reply.AssignedPeerID)
	c.State = ClientConnected
	c.LastRecv = now
	return true
}

// Touch records inbound traffic, resetting the local timeout clock.
func (c *ClientSession) Touch(now time.Time) {
	c.LastRecv = now
}

// TimedOut reports whether the server has gone quiet longer than timeout.
func (c *ClientSession) TimedOut(now time.Time, timeout time.Duration) bool {
	return c.State == ClientConnected && now.Sub(c.LastRecv) > timeout
}

// Disconnect moves the session into Disconnecting. It sends nothing;
// emitting the disconnect datagram is left to the caller (§4.1, §6).
func (c *ClientSession) Disconnect() {
	if c.State == ClientConnected || c.State == ClientConnecting {
		c.State = ClientDisconnecting
	}
}
