// Package wire implements the bit-level datagram framing from the wire
// protocol contract (§6): little-endian packet headers, channel frames,
// and the handshake/keepalive/disconnect control messages. Every layout
// here is dictated by the specification byte-for-byte, so it is hand-rolled
// with encoding/binary rather than a general-purpose codec (see DESIGN.md).
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a decode call runs past the end of its input.
var ErrShortBuffer = errors.New("wire: short buffer")

// ErrFrameTooLarge is returned when a value does not fit its length or
// count field on the wire (a payload over 0xFFFF bytes, more than 255
// components or samples, a wire id that collides with the delta flag).
// Encoders do not check the total against MaxDatagramSize.
var ErrFrameTooLarge = errors.New("wire: frame exceeds datagram size")

// MaxDatagramSize bounds a single UDP payload to avoid IP fragmentation (§4.1).
const MaxDatagramSize = 1200

// HeaderSize is the fixed size of the packet header preceding channel frames.
const HeaderSize = 2 + 2 + 4 + 2

// Header carries transport-level sequencing and RTT/reliability bookkeeping,
// present on every datagram (§6):
//
//	u16 seq | u16 ack | u32 ack_bitfield | u16 send_tick
type Header struct {
	Seq         uint16
	Ack         uint16
	AckBitfield uint32
	SendTick    uint16
}

// Encode appends the header's wire representation to buf.
func (h Header) Encode(buf []byte) []byte {
	var tmp [HeaderSize]byte
	binary.LittleEndian.PutUint16(tmp[0:2], h.Seq)
	binary.LittleEndian.PutUint16(tmp[2:4], h.Ack)
	binary.LittleEndian.PutUint32(tmp[4:8], h.AckBitfield)
	binary.LittleEndian.PutUint16(tmp[8:10], h.SendTick)
	return append(buf, tmp[:]...)
}

// DecodeHeader reads a Header from the front of buf, returning the
// remaining bytes after the header.
func DecodeHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, ErrShortBuffer
	}
	h := Header{
		Seq:         binary.LittleEndian.Uint16(buf[0:2]),
		Ack:         binary.LittleEndian.Uint16(buf[2:4]),
		AckBitfield: binary.LittleEndian.Uint32(buf[4:8]),
		SendTick:    binary.LittleEndian.Uint16(buf[8:10]),
	}
	return h, buf[HeaderSize:], nil
}

// ChannelID identifies the logical channel a frame's payload belongs to.
type ChannelID uint8

// Frame is one channel frame within a datagram: a 1-byte channel id, a
// 2-byte payload length, and the payload itself (§6).
type Frame struct {
	Channel ChannelID
	Payload []byte
}

// FrameHeaderSize is the fixed overhead of one channel frame before its payload.
const FrameHeaderSize = 1 + 2

// Encode appends the frame's wire representation to buf. Returns
// ErrFrameTooLarge if the payload length does not fit in a uint16.
func (f Frame) Encode(buf []byte) ([]byte, error) {
	if len(f.Payload) > 0xFFFF {
		return nil, ErrFrameTooLarge
	}
	buf = append(buf, byte(f.Channel))
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(f.Payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, f.Payload...)
	return buf, nil
}

// DecodeFrame reads one frame from the front of buf, returning the
// remaining bytes. A corrupt (truncated) frame returns ErrShortBuffer;
// callers must drop the whole datagram on this error (§4.1).
func DecodeFrame(buf []byte) (Frame, []byte, error) {
	if len(buf) < FrameHeaderSize {
		return Frame{}, nil, ErrShortBuffer
	}
	channel := ChannelID(buf[0])
	length := binary.LittleEndian.Uint16(buf[1:3])
	rest := buf[3:]
	if len(rest) < int(length) {
		return Frame{}, nil, ErrShortBuffer
	}
	return Frame{Channel: channel, Payload: rest[:length]}, rest[length:], nil
}

// DecodeFrames decodes every frame in a datagram's body (after the
// header). A truncated trailing frame drops the whole datagram and is
// reported via the returned error; frames decoded up to that point are
// still returned since they have no observable side effect on their own.
func DecodeFrames(body []byte) ([]Frame, error) {
	var frames []Frame
	for len(body) > 0 {
		f, rest, err := DecodeFrame(body)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		body = rest
	}
	return frames, nil
}

// Remaining reports how many bytes are left in a datagram budget after
// accounting for the fixed header and n already-placed frames of total
// framedBytes size (header + per-frame overhead + payload).
func Remaining(framedBytes int) int {
	r := MaxDatagramSize - HeaderSize - framedBytes
	if r < 0 {
		return 0
	}
	return r
}
