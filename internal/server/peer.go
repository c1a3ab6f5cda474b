package server

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/andersfylling/tickforge/internal/channel"
	"github.com/andersfylling/tickforge/internal/channels"
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/input"
	"github.com/andersfylling/tickforge/internal/replication"
	"github.com/andersfylling/tickforge/internal/session"
	"github.com/andersfylling/tickforge/internal/transport"
	"github.com/andersfylling/tickforge/internal/wire"
)

// Handle re-exports session.Handle so callers of this package don't need
// a direct import of internal/session just to hold a peer reference.
type Handle = session.Handle

// channelSend remembers which (channel, channel-sequence) pairs rode in a
// given outbound datagram, so that once the transport layer reports the
// datagram's packet sequence acknowledged (§4.2), the matching
// channel.Outbound can retire it from its own retransmission queue (§3).
// The wire header only carries one ack/bitfield pair for the whole
// connection, not one per logical channel, so this mapping is the glue
// between packet-level and channel-level acknowledgement.
type channelSend struct {
	ch  wire.ChannelID
	seq uint16
}

// peer bundles every piece of per-connection state the orchestrator
// drives each tick: the channel send/receive machinery, the replication
// baseline, the buffered inputs, and the world entity this connection owns.
type peer struct {
	handle   Handle
	addr     net.Addr
	entity   ids.EntityID
	endpoint *transport.Endpoint

	out map[wire.ChannelID]*channel.Outbound
	in  map[wire.ChannelID]*channel.Inbound

	baseline *replication.Baseline
	inputs   *input.ServerBuffer

	packetSends map[uint16][]channelSend
	packetSentAt map[uint16]time.Time
}

func newPeer(h Handle, addr net.Addr, entity ids.EntityID, inputWindow, historyCap int) *peer {
	p := &peer{
		handle:       h,
		addr:         addr,
		entity:       entity,
		endpoint:     transport.NewEndpoint(addr),
		out:          make(map[wire.ChannelID]*channel.Outbound),
		in:           make(map[wire.ChannelID]*channel.Inbound),
		baseline:     replication.NewBaseline(),
		inputs:       input.NewServerBuffer(historyCap),
		packetSends:  make(map[uint16][]channelSend),
		packetSentAt: make(map[uint16]time.Time),
	}
	for _, cid := range []wire.ChannelID{channels.Control, channels.Replication, channels.Input, channels.Messages, channels.AckPiggyback} {
		mode := channels.ModeOf(cid)
		p.out[cid] = channel.NewOutbound(mode)
		p.in[cid] = channel.NewInbound(mode)
	}
	return p
}

// encodeChannelPayload prefixes a channel-level sequence number onto an
// application payload, since wire.Frame carries only a channel id and
// length, not a sequence (that belongs to channel.Outbound/Inbound, not
// the wire layer, per their separation of concerns).
func encodeChannelPayload(seq uint16, payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], seq)
	copy(out[2:], payload)
	return out
}

func decodeChannelPayload(buf []byte) (seq uint16, payload []byte, ok bool) {
	if len(buf) < 2 {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint16(buf[0:2]), buf[2:], true
}

// buildFrame assigns this peer's next sequence on channel ch and wraps
// payload for the wire.
func (p *peer) buildFrame(ch wire.ChannelID, payload []byte, now time.Time) (wire.Frame, channelSend) {
	seq := p.out[ch].Send(payload, now)
	return wire.Frame{Channel: ch, Payload: encodeChannelPayload(seq, payload)}, channelSend{ch: ch, seq: seq}
}

// deliver feeds one inbound wire frame through this peer's channel state,
// returning the application payloads now ready for processing, in
// delivery order.
func (p *peer) deliver(f wire.Frame) [][]byte {
	in, ok := p.in[f.Channel]
	if !ok {
		return nil
	}
	seq, payload, ok := decodeChannelPayload(f.Payload)
	if !ok {
		return nil
	}
	return in.Deliver(seq, payload)
}

// recordPacket remembers which channel sends rode in packet seq, pruning
// the oldest entries once the map grows large, mirroring
// transport.Endpoint's own bound on its sentAt bookkeeping.
func (p *peer) recordPacket(seq uint16, sends []channelSend, now time.Time) {
	if len(sends) == 0 {
		return
	}
	p.packetSends[seq] = sends
	p.packetSentAt[seq] = now
	if len(p.packetSends) > 1024 {
		for s, t := range p.packetSentAt {
			if now.Sub(t) > 5*time.Second {
				delete(p.packetSends, s)
				delete(p.packetSentAt, s)
			}
		}
	}
}

// ackPackets retires every channel send that rode in one of the newly
// acknowledged packet sequences.
func (p *peer) ackPackets(acked []uint16) {
	for _, seq := range acked {
		for _, cs := range p.packetSends[seq] {
			p.out[cs.ch].Ack(cs.seq)
		}
		delete(p.packetSends, seq)
		delete(p.packetSentAt, seq)
	}
}
