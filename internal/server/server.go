// Package server implements the authoritative game server (§4): the
// tick-synchronized loop that accepts connections, simulates the world,
// and replicates it to every peer. It replaces the teacher's
// TCP/game.World server (internal/server/server.go in the original tree)
// but keeps its Start/StartBlocking/Stop shape, configured through
// config.Server.
package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/andersfylling/tickforge/internal/channels"
	"github.com/andersfylling/tickforge/internal/config"
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/logging"
	"github.com/andersfylling/tickforge/internal/metrics"
	"github.com/andersfylling/tickforge/internal/netgame"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/replication"
	"github.com/andersfylling/tickforge/internal/session"
	"github.com/andersfylling/tickforge/internal/tick"
	"github.com/andersfylling/tickforge/internal/trace"
	"github.com/andersfylling/tickforge/internal/transport"
	"github.com/andersfylling/tickforge/internal/wire"
)

var log = logging.Get("server")

// Server is the authoritative game server: one UDP socket, one session
// Manager, one netgame.World, and one peer per connected client.
type Server struct {
	cfg     config.Server
	reg     *registry.Registry
	world   *netgame.World
	source  netgame.Source
	engine  *replication.Engine
	metrics *metrics.Metrics

	sessions *session.Manager
	socket   transport.Socket
	clock    *tick.Clock
	tracer   *trace.Recorder

	mu      sync.Mutex
	peers   map[ids.PeerID]*peer
	running bool

	quitCh chan struct{}
	doneCh chan struct{}
}

// New binds the listening socket and builds a server ready to Start.
func New(cfg config.Server, m *metrics.Metrics) (*Server, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	socket, err := transport.Listen(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", cfg.ListenAddr, err)
	}

	reg := registry.New()
	netgame.RegisterAll(reg)
	world := netgame.NewWorld()

	var tracer *trace.Recorder
	if cfg.TraceFile != "" {
		tracer, err = trace.Open(cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("server: open trace file %s: %w", cfg.TraceFile, err)
		}
	}

	return &Server{
		cfg:      cfg,
		reg:      reg,
		world:    world,
		source:   netgame.Source{World: world},
		engine:   replication.NewEngine(reg),
		metrics:  m,
		sessions: session.NewManager(key, cfg.ProtocolID, time.Duration(cfg.ClientTimeoutSecs)*time.Second, cfg.NumDisconnectPackets),
		socket:   socket,
		clock:    tick.NewClock(cfg.TickDuration()),
		tracer:   tracer,
		peers:    make(map[ids.PeerID]*peer),
		quitCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// World exposes the authoritative world, e.g. for a demo mode that seeds
// entities before Start.
func (s *Server) World() *netgame.World { return s.world }

// LocalAddr reports the bound UDP address, e.g. for a test harness that
// started the server on an ephemeral port.
func (s *Server) LocalAddr() net.Addr { return s.socket.LocalAddr() }

// Start launches the receive loop and tick loop on background goroutines.
func (s *Server) Start() error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	go s.receiveLoop()
	go s.runTickLoop()
	return nil
}

// StartBlocking runs the receive loop in the background and the tick
// loop on the calling goroutine, returning once Stop is called.
func (s *Server) StartBlocking() error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	go s.receiveLoop()
	s.runTickLoop()
	return nil
}

// Stop gracefully shuts down the server and releases the socket.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.quitCh)
	<-s.doneCh
	s.socket.Close()
	if s.tracer != nil {
		s.tracer.Close()
	}
}

// recordTrace appends one event to the session recorder, a no-op when
// cfg.TraceFile was left empty (§6 Configuration Surface).
func (s *Server) recordTrace(kind trace.Kind, peer ids.PeerID, t tick.Tick, detail string) {
	if s.tracer == nil {
		return
	}
	_ = s.tracer.Write(trace.Record{At: time.Now(), Kind: kind, Peer: uint64(peer), Tick: uint16(t), Detail: detail})
}

// Tick returns the current simulation tick.
func (s *Server) Tick() tick.Tick {
	return s.clock.Current()
}

// IsRunning reports whether the server's tick loop is active.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) runTickLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.clock.Duration())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-s.quitCh:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			start := s.clock.Current()
			steps := s.clock.Accumulate(elapsed)
			for i := 0; i < steps; i++ {
				s.simulateTick(tick.Add(start, int32(i+1)), now)
			}
			s.checkTimeouts(now)
			s.updateSessionMetrics()
		}
	}
}

// simulateTick applies one tick of buffered input to every connected
// peer's entity, steps the world, then replicates the result (§4.3-§4.5).
func (s *Server) simulateTick(current tick.Tick, now time.Time) {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		action, starved := p.inputs.Lookup(current)
		if starved {
			s.metrics.StarvedInputs.Inc()
		}
		s.world.ApplyInput(p.entity, netgame.DecodeAction(action))
		p.inputs.Discard(current)
	}

	s.world.Step(s.clock.Duration().Seconds())

	for _, p := range peers {
		s.replicateTo(p, current, now)
	}
}

func (s *Server) replicateTo(p *peer, t tick.Tick, now time.Time) {
	dg, err := s.engine.Build(uint16(t), s.source, p.handle.Peer, p.baseline)
	if err != nil {
		log.Warningf("peer %d: build replication datagram: %v", p.handle.Peer, err)
		return
	}
	if len(dg.Frames) == 0 {
		return
	}

	header := p.endpoint.NextHeader(uint16(t), now)
	body := header.Encode(nil)
	var sends []channelSend
	for _, raw := range dg.Frames {
		frame, cs := p.buildFrame(raw.Channel, raw.Payload, now)
		sends = append(sends, cs)
		body, err = frame.Encode(body)
		if err != nil {
			log.Warningf("peer %d: encode replication frame: %v", p.handle.Peer, err)
			return
		}
	}
	if _, err := s.socket.WriteTo(body, p.addr); err != nil {
		log.Warningf("peer %d: write replication datagram: %v", p.handle.Peer, err)
		return
	}
	s.recordTrace(trace.KindReplication, p.handle.Peer, t, fmt.Sprintf("frames=%d", len(dg.Frames)))
	p.recordPacket(header.Seq, sends, now)
}

func (s *Server) checkTimeouts(now time.Time) {
	gone := s.sessions.CheckTimeouts(now)
	if len(gone) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range gone {
		if p, ok := s.peers[sess.Peer]; ok {
			s.world.Despawn(p.entity)
			delete(s.peers, sess.Peer)
			log.Infof("peer %d (%s) disconnected: timeout", sess.Peer, sess.Addr)
		}
	}
}

// updateSessionMetrics refreshes the per-state session gauge (§4.1).
func (s *Server) updateSessionMetrics() {
	counts := map[string]float64{
		session.ServerHandshaking.String():   0,
		session.ServerConnected.String():     0,
		session.ServerDisconnecting.String(): 0,
	}
	for _, sess := range s.sessions.Sessions() {
		counts[sess.State.String()]++
	}
	for state, n := range counts {
		s.metrics.SessionsByState.WithLabelValues(state).Set(n)
	}
}

func (s *Server) receiveLoop() {
	buf := make([]byte, wire.MaxDatagramSize)
	for {
		select {
		case <-s.quitCh:
			return
		default:
		}

		n, addr, err := s.socket.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.quitCh:
				return
			default:
				log.Warningf("read: %v", err)
				continue
			}
		}
		s.handleDatagram(buf[:n], addr, time.Now())
	}
}

func (s *Server) handleDatagram(raw []byte, addr net.Addr, now time.Time) {
	header, body, err := wire.DecodeHeader(raw)
	if err != nil {
		s.metrics.DroppedFrames.WithLabelValues("corrupt").Inc()
		return
	}
	frames, err := wire.DecodeFrames(body)
	if err != nil {
		s.metrics.DroppedFrames.WithLabelValues("corrupt").Inc()
		return
	}

	sess, known := s.sessions.ByAddr(addr.String())

	for _, f := range frames {
		if f.Channel == channels.Control && !known {
			s.handleControl(f, addr, now)
			continue
		}
		if !known {
			s.metrics.DroppedFrames.WithLabelValues("unknown_peer").Inc()
			continue
		}
		s.handlePeerFrame(sess, f, header, now)
	}
}

func (s *Server) handleControl(f wire.Frame, addr net.Addr, now time.Time) {
	if len(f.Payload) == 0 {
		return
	}
	if wire.MsgKind(f.Payload[0]) != wire.MsgHandshakeRequest {
		return
	}
	req, err := wire.DecodeHandshakeRequest(f.Payload)
	if err != nil {
		s.metrics.DroppedFrames.WithLabelValues("corrupt").Inc()
		return
	}

	outcome := s.sessions.Handshake(addr.String(), req, now)
	reply := outcome.Reply.Encode(nil)
	body := wire.Header{}.Encode(nil)
	frame := wire.Frame{Channel: channels.Control, Payload: reply}
	body, _ = frame.Encode(body)
	if _, err := s.socket.WriteTo(body, addr); err != nil {
		log.Warningf("handshake reply to %s: %v", addr, err)
	}

	if !outcome.Accepted {
		s.metrics.DroppedFrames.WithLabelValues("auth").Inc()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.peers[outcome.Session.Peer]; exists {
		return
	}
	entity := s.world.Spawn(outcome.Session.Peer, 0, 0)
	s.peers[outcome.Session.Peer] = newPeer(outcome.Session.Handle(), addr, entity, s.cfg.InputRedundancyWindow, s.cfg.PredictionHistoryCapTicks)
	log.Infof("peer %d (%s) connected", outcome.Session.Peer, addr)
}

func (s *Server) handlePeerFrame(sess *session.Session, f wire.Frame, header wire.Header, now time.Time) {
	s.sessions.Touch(sess.Peer, now)

	s.mu.Lock()
	p, ok := s.peers[sess.Peer]
	s.mu.Unlock()
	if !ok {
		return
	}

	acked := p.endpoint.Observe(header, now)
	p.ackPackets(acked)
	s.metrics.SetPeerTiming(sess.Addr, p.endpoint.RTT.Estimate(), p.endpoint.RTT.RTO())

	for _, payload := range p.deliver(f) {
		s.handleChannelPayload(p, f.Channel, payload, now)
	}
}

func (s *Server) handleChannelPayload(p *peer, ch wire.ChannelID, payload []byte, now time.Time) {
	switch ch {
	case channels.Input:
		in, err := wire.DecodeInputFrame(payload)
		if err != nil {
			s.metrics.DroppedFrames.WithLabelValues("corrupt").Inc()
			return
		}
		// Deposit oldest first: the buffer discards anything behind the
		// highest tick it has seen, so newest-first would drop the window.
		for i := len(in.Samples) - 1; i >= 0; i-- {
			t := tick.Add(tick.Tick(in.TickNewest), -int32(i))
			p.inputs.Deposit(t, in.Samples[i])
		}
		s.recordTrace(trace.KindInput, p.handle.Peer, tick.Tick(in.TickNewest), fmt.Sprintf("window=%d", len(in.Samples)))
	case channels.AckPiggyback:
		entries, err := wire.DecodeAcks(payload)
		if err != nil {
			s.metrics.DroppedFrames.WithLabelValues("corrupt").Inc()
			return
		}
		for _, e := range entries {
			p.baseline.Ack(e.GroupID, e.LastSeenTick)
		}
	case channels.Control:
		if len(payload) == 0 {
			return
		}
		switch wire.MsgKind(payload[0]) {
		case wire.MsgDisconnect:
			s.sessions.Disconnect(p.handle.Peer)
		}
	}
}
