// Package client implements the client side of the protocol (§4): the
// handshake, predicted local simulation, reconciliation against
// authoritative updates, and interpolated rendering of remote entities.
// It replaces the teacher's internal/client (internal/client/client.go,
// prediction.go, reconciler.go in the original tree) but keeps its
// New/Connect/Run/Disconnect shape, configured through config.Client.
package client

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/andersfylling/tickforge/internal/channel"
	"github.com/andersfylling/tickforge/internal/channels"
	"github.com/andersfylling/tickforge/internal/config"
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/input"
	"github.com/andersfylling/tickforge/internal/interpolation"
	"github.com/andersfylling/tickforge/internal/logging"
	"github.com/andersfylling/tickforge/internal/metrics"
	"github.com/andersfylling/tickforge/internal/netgame"
	"github.com/andersfylling/tickforge/internal/prediction"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/replication"
	"github.com/andersfylling/tickforge/internal/session"
	"github.com/andersfylling/tickforge/internal/tick"
	"github.com/andersfylling/tickforge/internal/trace"
	"github.com/andersfylling/tickforge/internal/transport"
	"github.com/andersfylling/tickforge/internal/wire"
)

var log = logging.Get("client")

// ActionProvider supplies the local player's intent for the tick about
// to be predicted. A headless/demo run can return a canned or scripted
// action; a real front-end would read its own input device here.
type ActionProvider func(t tick.Tick) netgame.Action

// Client drives one connection to a tickforge server: handshake, one
// predicted local entity, and interpolated views of every remote entity
// named by replication (§4.6, §4.7).
type Client struct {
	cfg config.Client
	reg *registry.Registry

	sess     *session.ClientSession
	socket   *transport.UDPSocket
	endpoint *transport.Endpoint

	out map[wire.ChannelID]*channel.Outbound
	in  map[wire.ChannelID]*channel.Inbound

	predicted *tick.PredictedTimeline
	offset    *tick.OffsetController
	interp    *tick.InterpolationTimeline

	inputs     *input.Buffer
	history    *prediction.History
	reconciler *prediction.Reconciler

	localEntity    ids.EntityID
	haveLocal      bool
	localSnapshot  prediction.Snapshot
	remoteBaseline *replication.ClientBaseline
	remoteBuffers  map[ids.EntityID]*interpolation.Buffer

	actionFn ActionProvider
	metrics  *metrics.Metrics
	tracer   *trace.Recorder

	packetSends  map[uint16][]channelSend
	packetSentAt map[uint16]time.Time

	mu      sync.Mutex
	running bool
	quitCh  chan struct{}
	doneCh  chan struct{}
}

// channelSend mirrors internal/server/peer.go's bookkeeping: it remembers
// which (channel, channel-sequence) pairs rode in a given outbound packet
// sequence, so that once the transport layer reports that packet
// sequence acknowledged, the matching channel.Outbound can retire it.
type channelSend struct {
	ch  wire.ChannelID
	seq uint16
}

// encodeChannelSeq/decodeChannelSeq prefix a channel-level sequence number
// onto an application payload, mirroring internal/server/peer.go's
// encodeChannelPayload/decodeChannelPayload: wire.Frame carries only a
// channel id, not a sequence, so every non-handshake frame needs this to
// round-trip through channel.Outbound/Inbound on the other end.
func encodeChannelSeq(seq uint16, payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], seq)
	copy(out[2:], payload)
	return out
}

func decodeChannelSeq(buf []byte) (seq uint16, payload []byte, ok bool) {
	if len(buf) < 2 {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint16(buf[0:2]), buf[2:], true
}

// recordPacket remembers which channel sends rode in packet seq, pruning
// stale entries once the map grows large.
func (c *Client) recordPacket(seq uint16, sends []channelSend, now time.Time) {
	if len(sends) == 0 {
		return
	}
	c.packetSends[seq] = sends
	c.packetSentAt[seq] = now
	if len(c.packetSends) > 1024 {
		for s, t := range c.packetSentAt {
			if now.Sub(t) > 5*time.Second {
				delete(c.packetSends, s)
				delete(c.packetSentAt, s)
			}
		}
	}
}

// ackPackets retires every channel send that rode in one of the newly
// acknowledged packet sequences.
func (c *Client) ackPackets(acked []uint16) {
	for _, seq := range acked {
		for _, cs := range c.packetSends[seq] {
			c.out[cs.ch].Ack(cs.seq)
		}
		delete(c.packetSends, seq)
		delete(c.packetSentAt, seq)
	}
}

// New dials the server and prepares a client ready to Connect.
func New(cfg config.Client, m *metrics.Metrics, actionFn ActionProvider) (*Client, error) {
	socket, err := transport.Dial(cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.ServerAddr, err)
	}

	reg := registry.New()
	netgame.RegisterAll(reg)

	var tracer *trace.Recorder
	if cfg.TraceFile != "" {
		tracer, err = trace.Open(cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("client: open trace file %s: %w", cfg.TraceFile, err)
		}
	}

	c := &Client{
		cfg:            cfg,
		reg:            reg,
		sess:           session.NewClientSession(),
		socket:         socket,
		endpoint:       transport.NewEndpoint(nil),
		out:            make(map[wire.ChannelID]*channel.Outbound),
		in:             make(map[wire.ChannelID]*channel.Inbound),
		predicted:      tick.NewPredictedTimeline(cfg.TickDuration(), 2),
		offset:         tick.NewOffsetController(2),
		interp:         tick.NewInterpolationTimeline(cfg.TickDuration(), int32(cfg.InterpolationDelayTicks)),
		inputs:         input.NewBuffer(cfg.InputRedundancyWindow),
		history:        prediction.NewHistory(cfg.PredictionHistoryCapTicks),
		remoteBaseline: replication.NewClientBaseline(),
		remoteBuffers:  make(map[ids.EntityID]*interpolation.Buffer),
		actionFn:       actionFn,
		metrics:        m,
		tracer:         tracer,
		packetSends:    make(map[uint16][]channelSend),
		packetSentAt:   make(map[uint16]time.Time),
		quitCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	c.reconciler = prediction.NewReconciler(reg, c.history, netgame.StepEntity)
	for _, cid := range []wire.ChannelID{channels.Control, channels.Replication, channels.Input, channels.Messages, channels.AckPiggyback} {
		mode := channels.ModeOf(cid)
		c.out[cid] = channel.NewOutbound(mode)
		c.in[cid] = channel.NewInbound(mode)
	}
	return c, nil
}

// Connect performs the handshake and blocks (up to timeout) for the
// server's reply (§4.1, §8 scenario S1).
func (c *Client) Connect(clientID uint64, key [session.KeySize]byte, timeout time.Duration) error {
	now := time.Now()
	token := session.Mint(key, c.cfg.ProtocolID, clientID, c.cfg.ServerAddr, time.Duration(c.cfg.TokenExpireSecs)*time.Second)
	req := c.sess.BeginConnect(c.cfg.ProtocolID, clientID, token, now)

	payload := req.Encode(nil)
	body := wire.Header{}.Encode(nil)
	frame := wire.Frame{Channel: channels.Control, Payload: payload}
	body, err := frame.Encode(body)
	if err != nil {
		return fmt.Errorf("client: encode handshake request: %w", err)
	}
	if _, err := c.socket.WriteTo(body, nil); err != nil {
		return fmt.Errorf("client: send handshake request: %w", err)
	}

	buf := make([]byte, wire.MaxDatagramSize)
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("client: handshake timed out after %s", timeout)
		}
		n, _, err := c.socket.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("client: read handshake reply: %w", err)
		}
		_, body, err := wire.DecodeHeader(buf[:n])
		if err != nil {
			continue
		}
		frames, err := wire.DecodeFrames(body)
		if err != nil {
			continue
		}
		for _, f := range frames {
			if f.Channel != channels.Control || len(f.Payload) == 0 {
				continue
			}
			if wire.MsgKind(f.Payload[0]) != wire.MsgHandshakeReply {
				continue
			}
			reply, err := wire.DecodeHandshakeReply(f.Payload)
			if err != nil {
				continue
			}
			if !c.sess.HandleReply(reply, time.Now()) {
				return fmt.Errorf("client: handshake refused")
			}
			log.Infof("connected: assigned peer id %d", c.sess.Peer)
			return nil
		}
	}
}

// Run starts the receive loop and the predicted tick loop, blocking
// until Disconnect/Stop.
func (c *Client) Run() error {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	go c.receiveLoop()
	c.runTickLoop()
	return nil
}

// Stop halts the client's loops and releases the socket.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.quitCh)
	<-c.doneCh
	c.socket.Close()
	if c.tracer != nil {
		c.tracer.Close()
	}
}

// recordTrace appends one event to the session recorder, a no-op when
// cfg.TraceFile was left empty (§6 Configuration Surface).
func (c *Client) recordTrace(kind trace.Kind, t tick.Tick, detail string) {
	if c.tracer == nil {
		return
	}
	_ = c.tracer.Write(trace.Record{At: time.Now(), Kind: kind, Peer: uint64(c.sess.Peer), Tick: uint16(t), Detail: detail})
}

// Disconnect sends an explicit disconnect and moves the session into
// Disconnecting (§4.1, §7).
func (c *Client) Disconnect() {
	c.sess.Disconnect()
	now := time.Now()
	payload := wire.EncodeDisconnect(wire.ReasonClientRequested)
	seq := c.out[channels.Control].Send(payload, now)
	header := c.endpoint.NextHeader(uint16(c.predicted.Tick()), now)
	body := header.Encode(nil)
	frame := wire.Frame{Channel: channels.Control, Payload: encodeChannelSeq(seq, payload)}
	body, err := frame.Encode(body)
	if err != nil {
		return
	}
	c.recordPacket(header.Seq, []channelSend{{ch: channels.Control, seq: seq}}, now)
	_, _ = c.socket.WriteTo(body, nil)
}

// State reports the client session's current state.
func (c *Client) State() session.ClientState { return c.sess.State }

// Tick returns the client's predicted tick.
func (c *Client) Tick() tick.Tick { return c.predicted.Tick() }

func (c *Client) runTickLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.predicted.Clock().Duration())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-c.quitCh:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			steps := c.predicted.Advance(elapsed, 0)
			for i := 0; i < steps; i++ {
				c.predictOneTick(now)
			}
			c.sendInput(now)
		}
	}
}

func (c *Client) predictOneTick(now time.Time) {
	if c.sess.State != session.ClientConnected {
		return
	}
	t := c.predicted.Tick()
	action := netgame.Action{}
	if c.actionFn != nil {
		action = c.actionFn(t)
	}
	encoded := action.Encode()
	c.inputs.Record(t, encoded)

	if !c.haveLocal {
		return // local entity not yet named by a replication frame (§4.6)
	}
	c.localSnapshot = c.reconciler.Predict(c.localSnapshot, t, encoded, int64(c.predicted.Clock().Duration()))
}

func (c *Client) sendInput(now time.Time) {
	if c.sess.State != session.ClientConnected {
		return
	}
	window := c.inputs.Window(c.predicted.Tick())
	if len(window) == 0 {
		return
	}
	samples := make([][]byte, len(window))
	for i, s := range window {
		samples[len(window)-1-i] = s // Window is oldest first; the wire wants newest first
	}
	in := wire.InputFrame{TickNewest: uint16(c.predicted.Tick()), Samples: samples}
	payload, err := in.Encode(nil)
	if err != nil {
		return
	}
	seq := c.out[channels.Input].Send(payload, now)
	header := c.endpoint.NextHeader(uint16(c.predicted.Tick()), now)
	body := header.Encode(nil)
	frame := wire.Frame{Channel: channels.Input, Payload: encodeChannelSeq(seq, payload)}
	body, err = frame.Encode(body)
	if err != nil {
		return
	}
	_, _ = c.socket.WriteTo(body, nil)
	c.recordTrace(trace.KindInput, c.predicted.Tick(), fmt.Sprintf("window=%d", len(window)))
}

func (c *Client) receiveLoop() {
	buf := make([]byte, wire.MaxDatagramSize)
	for {
		select {
		case <-c.quitCh:
			return
		default:
		}
		n, _, err := c.socket.ReadFrom(buf)
		if err != nil {
			select {
			case <-c.quitCh:
				return
			default:
				continue
			}
		}
		c.handleDatagram(buf[:n], time.Now())
	}
}

func (c *Client) handleDatagram(raw []byte, now time.Time) {
	header, body, err := wire.DecodeHeader(raw)
	if err != nil {
		return
	}
	frames, err := wire.DecodeFrames(body)
	if err != nil {
		return
	}

	acked := c.endpoint.Observe(header, now)
	c.ackPackets(acked)
	c.sess.Touch(now)
	c.metrics.SetPeerTiming(c.cfg.ServerAddr, c.endpoint.RTT.Estimate(), c.endpoint.RTT.RTO())

	for _, f := range frames {
		in, ok := c.in[f.Channel]
		if !ok {
			continue
		}
		seq, payload, ok := decodeChannelSeq(f.Payload)
		if !ok {
			continue
		}
		for _, deliverable := range in.Deliver(seq, payload) {
			switch f.Channel {
			case channels.Replication:
				c.handleReplication(deliverable, now)
			case channels.Control:
				c.handleControl(deliverable)
			}
		}
	}
}

func (c *Client) handleControl(payload []byte) {
	if len(payload) == 0 {
		return
	}
	if wire.MsgKind(payload[0]) == wire.MsgDisconnect {
		reason, err := wire.DecodeDisconnect(payload)
		if err == nil {
			log.Infof("server closed connection: reason %d", reason)
		}
	}
}

func (c *Client) handleReplication(payload []byte, now time.Time) {
	rf, err := wire.DecodeReplicationFrame(payload)
	if err != nil {
		c.metrics.DroppedFrames.WithLabelValues("corrupt").Inc()
		return
	}
	applied, err := replication.Apply(c.reg, c.remoteBaseline, rf)
	if err != nil {
		c.metrics.DroppedFrames.WithLabelValues("corrupt").Inc()
		return
	}
	c.recordTrace(trace.KindReplication, tick.Tick(rf.Tick), fmt.Sprintf("components=%d", len(applied)))

	byEntity := make(map[ids.EntityID]map[ids.ComponentID]interface{})
	for _, a := range applied {
		if byEntity[a.Entity] == nil {
			byEntity[a.Entity] = make(map[ids.ComponentID]interface{})
		}
		byEntity[a.Entity][a.Component] = a.Value
	}

	for entity, comps := range byEntity {
		owner, isOwned := comps[netgame.ComponentOwner].(netgame.Owner)
		if isOwned && c.sess.State == session.ClientConnected && owner.Peer == c.sess.Peer {
			c.applyAuthoritative(entity, comps, tick.Tick(rf.Tick))
			continue
		}
		buf, ok := c.remoteBuffers[entity]
		if !ok {
			buf = interpolation.NewBuffer(c.cfg.PredictionHistoryCapTicks)
			c.remoteBuffers[entity] = buf
		}
		snap := make(prediction.Snapshot, len(comps))
		for cid, v := range comps {
			snap[cid] = v
		}
		buf.Add(interpolation.Sample{Tick: tick.Tick(rf.Tick), Components: snap})
	}
}

func (c *Client) applyAuthoritative(entity ids.EntityID, comps map[ids.ComponentID]interface{}, tAuth tick.Tick) {
	if !c.haveLocal {
		c.localEntity = entity
		c.haveLocal = true
		c.localSnapshot = make(prediction.Snapshot, len(comps))
		for cid, v := range comps {
			c.localSnapshot[cid] = v
		}
		return
	}
	if entity != c.localEntity {
		return
	}
	auth := make(prediction.Snapshot, len(comps))
	for cid, v := range comps {
		auth[cid] = v
	}
	next, result := c.reconciler.Reconcile(auth, tAuth, c.localSnapshot, c.predicted.Tick(), int64(c.predicted.Clock().Duration()))
	c.localSnapshot = next
	c.metrics.ObserveRollback(fmt.Sprintf("%d", entity), result.RolledBack, result.ReplayedTicks, result.ForcedResync)
	c.recordTrace(trace.KindReconcile, tAuth, fmt.Sprintf("rolled_back=%t replayed=%d forced_resync=%t", result.RolledBack, result.ReplayedTicks, result.ForcedResync))
}

// LocalSnapshot returns the current predicted state of the local entity,
// if one has been assigned yet.
func (c *Client) LocalSnapshot() (prediction.Snapshot, bool) {
	return c.localSnapshot, c.haveLocal
}

// RemoteView renders one remote entity's interpolated state at the
// current render instant (§4.7).
func (c *Client) RemoteView(entity ids.EntityID, fracIntoTick float64) (map[ids.ComponentID]interface{}, interpolation.Outcome) {
	buf, ok := c.remoteBuffers[entity]
	if !ok {
		return nil, interpolation.Outcome{}
	}
	renderTick := c.interp.RenderInstant(c.predicted.Tick())
	out, outcome := interpolation.Render(c.reg, buf, renderTick, fracIntoTick, c.predicted.Clock().Duration())
	if outcome.Stalled {
		c.metrics.InterpStalls.WithLabelValues(fmt.Sprintf("%d", entity)).Inc()
	}
	result := make(map[ids.ComponentID]interface{}, len(out))
	for k, v := range out {
		result[k] = v
	}
	return result, outcome
}
