// Package transport implements the UDP datagram layer: socket I/O, the
// per-packet header (sequence, ack, ack bitfield, send tick) and the RTT
// sampling that feeds channel.RTTEstimator. It replaces the teacher's
// TCP-based network.Transport with the unreliable, packet-boundary
// transport the tick-synchronized protocol requires (§4.2).
package transport

import (
	"net"
	"time"

	"github.com/andersfylling/tickforge/internal/channel"
	"github.com/andersfylling/tickforge/internal/wire"
)

// Socket is the minimal datagram I/O surface, mirroring the teacher's
// Transport/Connection split but over connectionless UDP: one Socket per
// bound port, addressed per-call rather than per-connection.
type Socket interface {
	// ReadFrom blocks for the next datagram.
	ReadFrom(buf []byte) (n int, addr net.Addr, err error)

	// WriteTo sends a datagram to addr.
	WriteTo(buf []byte, addr net.Addr) (int, error)

	// LocalAddr returns the bound local address.
	LocalAddr() net.Addr

	// Close releases the socket.
	Close() error
}

// UDPSocket implements Socket over *net.UDPConn.
type UDPSocket struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket for server use.
func Listen(addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPSocket{conn: conn}, nil
}

// Dial binds an ephemeral UDP socket for client use, with the remote
// address as the default peer for Write.
func Dial(addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPSocket{conn: conn}, nil
}

func (s *UDPSocket) ReadFrom(buf []byte) (int, net.Addr, error) {
	return s.conn.ReadFrom(buf)
}

func (s *UDPSocket) WriteTo(buf []byte, addr net.Addr) (int, error) {
	if addr == nil {
		return s.conn.Write(buf)
	}
	return s.conn.WriteTo(buf, addr)
}

func (s *UDPSocket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

func (s *UDPSocket) Close() error { return s.conn.Close() }

// Endpoint tracks per-remote packet sequencing: the next outbound sequence
// number, the highest inbound sequence received, a bitfield
// of the 32 sequences preceding it, and the RTT estimator those acks feed
// (§4.2).
type Endpoint struct {
	Addr net.Addr

	nextSeq      uint16
	remoteAck    uint16
	remoteAckBit uint32
	haveRemote   bool

	sentAt map[uint16]time.Time
	RTT    *channel.RTTEstimator
}

// NewEndpoint creates tracking state for one remote peer.
func NewEndpoint(addr net.Addr) *Endpoint {
	return &Endpoint{
		Addr:   addr,
		sentAt: make(map[uint16]time.Time),
		RTT:    channel.NewRTTEstimator(),
	}
}

// NextHeader builds the header for the next outbound packet, recording its
// send time for later RTT sampling once it is acknowledged.
func (e *Endpoint) NextHeader(sendTick uint16, now time.Time) wire.Header {
	seq := e.nextSeq
	e.nextSeq++
	e.sentAt[seq] = now
	if len(e.sentAt) > 1024 {
		e.pruneSentAt()
	}
	return wire.Header{
		Seq:         seq,
		Ack:         e.remoteAck,
		AckBitfield: e.remoteAckBit,
		SendTick:    sendTick,
	}
}

func (e *Endpoint) pruneSentAt() {
	for seq, t := range e.sentAt {
		if time.Since(t) > 5*time.Second {
			delete(e.sentAt, seq)
		}
	}
}

// Observe folds an inbound header into this endpoint's ack state and RTT
// estimate, returning the set of newly-acknowledged outbound sequences.
func (e *Endpoint) Observe(h wire.Header, now time.Time) (acked []uint16) {
	e.advanceRemote(h.Seq)

	if t, ok := e.sentAt[h.Ack]; ok {
		e.RTT.Sample(now.Sub(t))
		delete(e.sentAt, h.Ack)
		acked = append(acked, h.Ack)
	}
	for i := uint32(0); i < 32; i++ {
		if h.AckBitfield&(1<<i) == 0 {
			continue
		}
		seq := h.Ack - uint16(i+1)
		if t, ok := e.sentAt[seq]; ok {
			e.RTT.Sample(now.Sub(t))
			delete(e.sentAt, seq)
			acked = append(acked, seq)
		}
	}
	return acked
}

func (e *Endpoint) advanceRemote(seq uint16) {
	if !e.haveRemote {
		e.remoteAck = seq
		e.remoteAckBit = 0
		e.haveRemote = true
		return
	}
	diff := int16(seq - e.remoteAck)
	switch {
	case diff > 0:
		if diff <= 32 {
			e.remoteAckBit = (e.remoteAckBit << uint(diff)) | (1 << uint(diff-1))
		} else {
			e.remoteAckBit = 0
		}
		e.remoteAck = seq
	case diff < 0:
		back := uint(-diff)
		if back <= 32 {
			e.remoteAckBit |= 1 << (back - 1)
		}
	default:
		// duplicate of the current highest sequence, ignore
	}
}
