package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andersfylling/tickforge/internal/channels"
	"github.com/andersfylling/tickforge/internal/config"
	"github.com/andersfylling/tickforge/internal/metrics"
	"github.com/andersfylling/tickforge/internal/session"
	"github.com/andersfylling/tickforge/internal/wire"

	"github.com/prometheus/client_golang/prometheus"
)

// TestSingleClientHandshakeAccepted exercises §8 scenario S1: a valid
// handshake from a fresh client address is accepted and replied to well
// within 500ms, and the server spawns an entity for the new peer.
func TestSingleClientHandshakeAccepted(t *testing.T) {
	cfg := config.DefaultServer()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.ProtocolID = 0x1122334455667788

	srv, err := New(cfg, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	serverAddr := srv.socket.LocalAddr().(*net.UDPAddr)

	clientConn, err := net.DialUDP("udp", nil, serverAddr)
	require.NoError(t, err)
	defer clientConn.Close()
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(500*time.Millisecond)))

	key, err := cfg.Key()
	require.NoError(t, err)
	token := session.Mint(key, cfg.ProtocolID, 42, serverAddr.String(), 30*time.Second)

	req := wire.HandshakeRequest{ProtocolID: cfg.ProtocolID, ClientID: 42, Token: token}
	body := wire.Header{}.Encode(nil)
	frame := wire.Frame{Channel: channels.Control, Payload: req.Encode(nil)}
	body, err = frame.Encode(body)
	require.NoError(t, err)

	start := time.Now()
	_, err = clientConn.Write(body)
	require.NoError(t, err)

	buf := make([]byte, wire.MaxDatagramSize)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 500*time.Millisecond)

	_, replyBody, err := wire.DecodeHeader(buf[:n])
	require.NoError(t, err)
	frames, err := wire.DecodeFrames(replyBody)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, channels.Control, frames[0].Channel)

	reply, err := wire.DecodeHandshakeReply(frames[0].Payload)
	require.NoError(t, err)
	require.Equal(t, wire.StatusAccepted, reply.Status)

	require.Eventually(t, func() bool {
		return len(srv.World().Entities()) == 1
	}, 200*time.Millisecond, 5*time.Millisecond)
}

// TestHandshakeWithWrongProtocolIDIsRefused covers the refusal path (§7):
// no entity is spawned and no session is created for a bad protocol id.
func TestHandshakeWithWrongProtocolIDIsRefused(t *testing.T) {
	cfg := config.DefaultServer()
	cfg.ListenAddr = "127.0.0.1:0"

	srv, err := New(cfg, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	serverAddr := srv.socket.LocalAddr().(*net.UDPAddr)
	clientConn, err := net.DialUDP("udp", nil, serverAddr)
	require.NoError(t, err)
	defer clientConn.Close()
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(500*time.Millisecond)))

	key, err := cfg.Key()
	require.NoError(t, err)
	token := session.Mint(key, cfg.ProtocolID, 7, serverAddr.String(), 30*time.Second)

	req := wire.HandshakeRequest{ProtocolID: cfg.ProtocolID ^ 0xFF, ClientID: 7, Token: token}
	body := wire.Header{}.Encode(nil)
	frame := wire.Frame{Channel: channels.Control, Payload: req.Encode(nil)}
	body, err = frame.Encode(body)
	require.NoError(t, err)

	_, err = clientConn.Write(body)
	require.NoError(t, err)

	buf := make([]byte, wire.MaxDatagramSize)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)

	_, replyBody, err := wire.DecodeHeader(buf[:n])
	require.NoError(t, err)
	frames, err := wire.DecodeFrames(replyBody)
	require.NoError(t, err)
	reply, err := wire.DecodeHandshakeReply(frames[0].Payload)
	require.NoError(t, err)
	require.Equal(t, wire.StatusRefused, reply.Status)
	require.Empty(t, srv.World().Entities())
}
