package session

import (
	"time"

	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/wire"
)

// Handle is a short-lived reference to a Session: its PeerID plus the
// generation it was issued for. A cross-reference held elsewhere (a
// channel, a replication baseline) is validated against the live
// session's generation before use, so a stale handle into a reused
// PeerID slot is rejected rather than dereferenced (§9 "cyclic
// references between sessions and channels").
type Handle struct {
	Peer       ids.PeerID
	Generation uint64
}

// Session is one peer's authenticated connection state, server side.
type Session struct {
	Peer       ids.PeerID
	Generation uint64
	ClientID   uint64
	Addr       string

	State    ServerState
	LastSeen time.Time

	disconnectPacketsSent int
}

// Handle returns a short-lived reference to this session.
func (s *Session) Handle() Handle {
	return Handle{Peer: s.Peer, Generation: s.Generation}
}

// Manager tracks every server-side session, mints PeerIDs, and drives
// each session's state machine from handshake through timeout (§4.1).
type Manager struct {
	key               [KeySize]byte
	protocolID        uint64
	clientTimeout     time.Duration
	numDisconnectPkts int

	nextPeer    ids.PeerID
	generation  uint64
	byPeer      map[ids.PeerID]*Session
	byAddr      map[string]*Session
}

// NewManager creates a session manager with the given pre-shared key,
// protocol id, and timeout/redundancy configuration (§6 Configuration Surface).
func NewManager(key [KeySize]byte, protocolID uint64, clientTimeout time.Duration, numDisconnectPackets int) *Manager {
	return &Manager{
		key:               key,
		protocolID:        protocolID,
		clientTimeout:     clientTimeout,
		numDisconnectPkts: numDisconnectPackets,
		nextPeer:          1,
		byPeer:            make(map[ids.PeerID]*Session),
		byAddr:            make(map[string]*Session),
	}
}

// HandshakeOutcome is the result of processing a client's handshake request.
type HandshakeOutcome struct {
	Accepted bool
	Reply    wire.HandshakeReply
	Session  *Session // nil when refused
}

// Handshake validates an inbound request's token and either mints a new
// session or refuses it. A refused attempt creates no Session; its reply
// is a bare StatusRefused, the same for a wrong protocol id and for a bad
// or expired token, so it tells the caller nothing about which check failed.
func (m *Manager) Handshake(addr string, req wire.HandshakeRequest, now time.Time) HandshakeOutcome {
	if req.ProtocolID != m.protocolID {
		return HandshakeOutcome{Accepted: false, Reply: wire.HandshakeReply{Status: wire.StatusRefused}}
	}
	if _, err := Validate(req.Token, m.key, m.protocolID, now); err != nil {
		return HandshakeOutcome{Accepted: false, Reply: wire.HandshakeReply{Status: wire.StatusRefused}}
	}

	if existing, ok := m.byAddr[addr]; ok {
		existing.LastSeen = now
		return HandshakeOutcome{
			Accepted: true,
			Reply:    wire.HandshakeReply{Status: wire.StatusAccepted, AssignedPeerID: uint64(existing.Peer)},
			Session:  existing,
		}
	}

	peer := m.nextPeer
	m.nextPeer++
	m.generation++
	s := &Session{
		Peer:       peer,
		Generation: m.generation,
		ClientID:   req.ClientID,
		Addr:       addr,
		State:      ServerConnected,
		LastSeen:   now,
	}
	m.byPeer[peer] = s
	m.byAddr[addr] = s

	return HandshakeOutcome{
		Accepted: true,
		Reply:    wire.HandshakeReply{Status: wire.StatusAccepted, AssignedPeerID: uint64(peer)},
		Session:  s,
	}
}

// Touch records inbound traffic from a peer, resetting its timeout clock.
func (m *Manager) Touch(peer ids.PeerID, now time.Time) {
	if s, ok := m.byPeer[peer]; ok {
		s.LastSeen = now
	}
}

// Lookup resolves a handle to its live session, rejecting stale
// generations (§9).
func (m *Manager) Lookup(h Handle) (*Session, bool) {
	s, ok := m.byPeer[h.Peer]
	if !ok || s.Generation != h.Generation {
		return nil, false
	}
	return s, true
}

// ByAddr resolves a session by remote address, used to route inbound
// datagrams before a PeerID is known to the caller.
func (m *Manager) ByAddr(addr string) (*Session, bool) {
	s, ok := m.byAddr[addr]
	return s, ok
}

// Sessions returns every tracked session, for the tick loop to iterate.
func (m *Manager) Sessions() []*Session {
	out := make([]*Session, 0, len(m.byPeer))
	for _, s := range m.byPeer {
		out = append(out, s)
	}
	return out
}

// CheckTimeouts transitions any session that has gone quiet longer than
// clientTimeout into Disconnecting, and moves a session to Gone on the
// numDisconnectPackets-th call made while it is in Disconnecting
// (§4.1, §7 Session). The Manager only counts these calls; it builds and
// sends no disconnect datagrams itself. Returns the set of sessions that just went Gone so
// the caller can surface disconnected(reason) and reclaim resources.
func (m *Manager) CheckTimeouts(now time.Time) []*Session {
	var gone []*Session
	for _, s := range m.byPeer {
		switch s.State {
		case ServerConnected:
			if now.Sub(s.LastSeen) > m.clientTimeout {
				s.State = ServerDisconnecting
			}
		case ServerDisconnecting:
			s.disconnectPacketsSent++
			if s.disconnectPacketsSent >= m.numDisconnectPkts {
				s.State = ServerGone
				gone = append(gone, s)
			}
		}
	}
	for _, s := range gone {
		delete(m.byPeer, s.Peer)
		delete(m.byAddr, s.Addr)
	}
	return gone
}

// Disconnect immediately drives a session into Disconnecting, e.g. on an
// explicit client-requested teardown (§7 Session).
func (m *Manager) Disconnect(peer ids.PeerID) {
	if s, ok := m.byPeer[peer]; ok && s.State == ServerConnected {
		s.State = ServerDisconnecting
	}
}
