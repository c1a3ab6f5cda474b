package client

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/andersfylling/tickforge/internal/config"
	"github.com/andersfylling/tickforge/internal/metrics"
	"github.com/andersfylling/tickforge/internal/netgame"
	"github.com/andersfylling/tickforge/internal/server"
	"github.com/andersfylling/tickforge/internal/session"
	"github.com/andersfylling/tickforge/internal/tick"
)

func newLoopbackServer(t *testing.T) *server.Server {
	t.Helper()
	cfg := config.DefaultServer()
	cfg.ListenAddr = "127.0.0.1:0"

	srv, err := server.New(cfg, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

func idleAction(tick.Tick) netgame.Action { return netgame.Action{} }

// TestConnectReachesConnectedState exercises §8 scenario S1 through the
// real Client/Server pair over loopback UDP: a valid handshake against a
// freshly bound server assigns a peer id and moves the client session
// from Connecting to Connected within the 500ms S1 bound.
func TestConnectReachesConnectedState(t *testing.T) {
	srv := newLoopbackServer(t)

	clientCfg := config.DefaultClient()
	clientCfg.ServerAddr = srv.LocalAddr().String()

	c, err := New(clientCfg, metrics.New(prometheus.NewRegistry()), idleAction)
	require.NoError(t, err)
	defer c.socket.Close()

	require.Equal(t, session.ClientIdle, c.State())

	start := time.Now()
	err = c.Connect(42, [session.KeySize]byte{}, 500*time.Millisecond)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 500*time.Millisecond)

	require.Equal(t, session.ClientConnected, c.State())
	require.Equal(t, uint64(42), uint64(c.sess.Peer))
}

// TestConnectRejectsWrongKey covers §7's auth failure path: a token
// minted with the wrong pre-shared key fails the server's MAC check, so
// the reply carries StatusRefused and Connect reports a handshake error
// without ever reaching ClientConnected.
func TestConnectRejectsWrongKey(t *testing.T) {
	srv := newLoopbackServer(t)

	clientCfg := config.DefaultClient()
	clientCfg.ServerAddr = srv.LocalAddr().String()

	c, err := New(clientCfg, metrics.New(prometheus.NewRegistry()), idleAction)
	require.NoError(t, err)
	defer c.socket.Close()

	wrongKey := [session.KeySize]byte{1}
	err = c.Connect(7, wrongKey, 200*time.Millisecond)
	require.Error(t, err)
	require.NotEqual(t, session.ClientConnected, c.State())
}

// TestRunPredictsOwnedEntityAfterReplication drives the client's Run loop
// against a live server long enough for a replication frame naming its
// owned entity to arrive, and checks that the prediction engine then
// produces a local snapshot (§4.6 "AwaitingInitial -> Predicting"
// transition requires at least one authoritative snapshot).
func TestRunPredictsOwnedEntityAfterReplication(t *testing.T) {
	srv := newLoopbackServer(t)

	clientCfg := config.DefaultClient()
	clientCfg.ServerAddr = srv.LocalAddr().String()

	c, err := New(clientCfg, metrics.New(prometheus.NewRegistry()), idleAction)
	require.NoError(t, err)

	require.NoError(t, c.Connect(99, [session.KeySize]byte{}, 500*time.Millisecond))

	go c.Run()
	defer c.Stop()

	require.Eventually(t, func() bool {
		_, ok := c.LocalSnapshot()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
