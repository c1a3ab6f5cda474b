package session

import (
	"testing"
	"time"

	"github.com/andersfylling/tickforge/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestClientSessionHappyPath(t *testing.T) {
	c := NewClientSession()
	require.Equal(t, ClientIdle, c.State)

	now := time.Now()
	c.BeginConnect(testProtocolID, 1, []byte("token"), now)
	require.Equal(t, ClientConnecting, c.State)

	ok := c.HandleReply(wire.HandshakeReply{Status: wire.StatusAccepted, AssignedPeerID: 9}, now.Add(time.Millisecond))
	require.True(t, ok)
	require.Equal(t, ClientConnected, c.State)
	require.Equal(t, uint64(9), uint64(c.Peer))
}

func TestClientSessionRefusedStaysConnecting(t *testing.T) {
	c := NewClientSession()
	now := time.Now()
	c.BeginConnect(testProtocolID, 1, []byte("token"), now)

	ok := c.HandleReply(wire.HandshakeReply{Status: wire.StatusRefused}, now)
	require.False(t, ok)
	require.Equal(t, ClientConnecting, c.State)
}

func TestClientSessionTimeout(t *testing.T) {
	c := NewClientSession()
	now := time.Now()
	c.BeginConnect(testProtocolID, 1, []byte("token"), now)
	c.HandleReply(wire.HandshakeReply{Status: wire.StatusAccepted, AssignedPeerID: 1}, now)

	require.False(t, c.TimedOut(now.Add(time.Second), 3*time.Second))
	require.True(t, c.TimedOut(now.Add(4*time.Second), 3*time.Second))
}

func TestClientSessionDisconnect(t *testing.T) {
	c := NewClientSession()
	now := time.Now()
	c.BeginConnect(testProtocolID, 1, []byte("token"), now)
	c.HandleReply(wire.HandshakeReply{Status: wire.StatusAccepted, AssignedPeerID: 1}, now)

	c.Disconnect()
	require.Equal(t, ClientDisconnecting, c.State)
}
