package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Seq: 1001, Ack: 998, AckBitfield: 0xDEADBEEF, SendTick: 42}
	buf := h.Encode(nil)
	require.Len(t, buf, HeaderSize)

	got, rest, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, h, got)
}

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{Channel: 3, Payload: []byte("hello world")}
	buf, err := f.Encode(nil)
	require.NoError(t, err)

	got, rest, err := DecodeFrame(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, f.Channel, got.Channel)
	require.Equal(t, f.Payload, got.Payload)
}

func TestDecodeFramesDropsOnCorruption(t *testing.T) {
	f1 := Frame{Channel: 1, Payload: []byte("a")}
	buf, _ := f1.Encode(nil)
	buf = append(buf, 5, 0xFF, 0xFF) // channel 5, length 65535, no payload: truncated

	frames, err := DecodeFrames(buf)
	require.Error(t, err)
	require.Len(t, frames, 1) // first frame decoded fine; caller drops the whole datagram anyway
}

func TestHandshakeRequestRoundTrip(t *testing.T) {
	req := HandshakeRequest{ProtocolID: 0x1122334455667788, ClientID: 42, Token: []byte{1, 2, 3, 4}}
	buf := req.Encode(nil)

	got, err := DecodeHandshakeRequest(buf)
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestHandshakeReplyRoundTrip(t *testing.T) {
	rep := HandshakeReply{Status: StatusAccepted, AssignedPeerID: 42}
	buf := rep.Encode(nil)

	got, err := DecodeHandshakeReply(buf)
	require.NoError(t, err)
	require.Equal(t, rep, got)
}

func TestDisconnectRoundTrip(t *testing.T) {
	buf := EncodeDisconnect(ReasonTimeout)
	got, err := DecodeDisconnect(buf)
	require.NoError(t, err)
	require.Equal(t, ReasonTimeout, got)
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40}
	for _, v := range values {
		buf := AppendVarint(nil, v)
		got, rest, err := ReadVarint(buf)
		require.NoError(t, err)
		require.Empty(t, rest)
		require.Equal(t, v, got)
	}
}

func TestReplicationFrameRoundTrip(t *testing.T) {
	f := ReplicationFrame{
		Tick:    1002,
		GroupID: 7,
		Entities: []EncodedEntity{
			{
				ID: 99,
				Components: []EncodedComponent{
					{WireID: 1, Data: []byte{1, 2, 3, 4}},
					{WireID: 2, IsDelta: true, Data: []byte{5, 6}},
				},
			},
		},
	}
	buf, err := f.Encode(nil)
	require.NoError(t, err)

	got, err := DecodeReplicationFrame(buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestReplicationFrameRejectsWireIDCollidingWithDeltaFlag(t *testing.T) {
	f := ReplicationFrame{
		Tick:    1,
		GroupID: 1,
		Entities: []EncodedEntity{
			{ID: 1, Components: []EncodedComponent{{WireID: deltaFlag, Data: []byte{1}}}},
		},
	}
	_, err := f.Encode(nil)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestInputFrameRoundTrip(t *testing.T) {
	f := InputFrame{
		TickNewest: 2000,
		Samples:    [][]byte{{1}, {0}, {1}, {1}},
	}
	buf, err := f.Encode(nil)
	require.NoError(t, err)

	got, err := DecodeInputFrame(buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestAcksRoundTrip(t *testing.T) {
	entries := []AckEntry{{GroupID: 1, LastSeenTick: 500}, {GroupID: 2, LastSeenTick: 510}}
	buf := EncodeAcks(nil, entries)

	got, err := DecodeAcks(buf)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestRemainingNeverNegative(t *testing.T) {
	require.Equal(t, 0, Remaining(MaxDatagramSize*2))
}
