package transport

import (
	"net"
	"testing"
	"time"

	"github.com/andersfylling/tickforge/internal/wire"
	"github.com/stretchr/testify/require"
)

func dummyAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5001}
}

func TestEndpointSamplesRTTOnDirectAck(t *testing.T) {
	e := NewEndpoint(dummyAddr())
	now := time.Now()

	h0 := e.NextHeader(1, now)
	require.Equal(t, uint16(0), h0.Seq)

	acked := e.Observe(wire.Header{Ack: h0.Seq}, now.Add(20*time.Millisecond))
	require.Contains(t, acked, h0.Seq)
	require.InDelta(t, 20*time.Millisecond, e.RTT.Estimate(), float64(5*time.Millisecond))
}

func TestEndpointAckBitfieldCoversEarlierSequences(t *testing.T) {
	e := NewEndpoint(dummyAddr())
	now := time.Now()

	seqs := make([]uint16, 5)
	for i := range seqs {
		h := e.NextHeader(1, now)
		seqs[i] = h.Seq
	}

	// Ack the newest, with bit 0 set meaning "newest-1 also seen".
	acked := e.Observe(wire.Header{Ack: seqs[4], AckBitfield: 1 << 0}, now.Add(10*time.Millisecond))
	require.Contains(t, acked, seqs[4])
	require.Contains(t, acked, seqs[3])
}

func TestAdvanceRemoteTracksOutOfOrderArrivals(t *testing.T) {
	e := NewEndpoint(dummyAddr())
	e.advanceRemote(10)
	require.Equal(t, uint16(10), e.remoteAck)

	e.advanceRemote(8) // arrives late, behind current highest
	require.NotZero(t, e.remoteAckBit)

	e.advanceRemote(12) // new highest, shifts bitfield forward
	require.Equal(t, uint16(12), e.remoteAck)
}
