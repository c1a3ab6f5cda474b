package wire

import "encoding/binary"

// MsgKind tags the first byte of a control-channel payload (§6).
type MsgKind uint8

const (
	MsgHandshakeRequest MsgKind = 0x01
	MsgHandshakeReply   MsgKind = 0x02
	MsgKeepalive        MsgKind = 0x03
	MsgDisconnect       MsgKind = 0x04
)

// HandshakeStatus is the accept/refuse outcome carried in a handshake reply.
type HandshakeStatus uint8

const (
	StatusAccepted HandshakeStatus = 0
	StatusRefused  HandshakeStatus = 1
)

// HandshakeRequest is the client's connection attempt payload:
//
//	u8 kind=0x01 | u64 protocol_id | u64 client_id | u32 token_len | token[]
type HandshakeRequest struct {
	ProtocolID uint64
	ClientID   uint64
	Token      []byte
}

// Encode appends the wire representation to buf.
func (r HandshakeRequest) Encode(buf []byte) []byte {
	buf = append(buf, byte(MsgHandshakeRequest))
	buf = appendUint64(buf, r.ProtocolID)
	buf = appendUint64(buf, r.ClientID)
	buf = appendUint32(buf, uint32(len(r.Token)))
	buf = append(buf, r.Token...)
	return buf
}

// DecodeHandshakeRequest parses a handshake request payload (kind byte included).
func DecodeHandshakeRequest(buf []byte) (HandshakeRequest, error) {
	if len(buf) < 1+8+8+4 || MsgKind(buf[0]) != MsgHandshakeRequest {
		return HandshakeRequest{}, ErrShortBuffer
	}
	protocolID := binary.LittleEndian.Uint64(buf[1:9])
	clientID := binary.LittleEndian.Uint64(buf[9:17])
	tokenLen := binary.LittleEndian.Uint32(buf[17:21])
	rest := buf[21:]
	if uint32(len(rest)) < tokenLen {
		return HandshakeRequest{}, ErrShortBuffer
	}
	return HandshakeRequest{
		ProtocolID: protocolID,
		ClientID:   clientID,
		Token:      append([]byte(nil), rest[:tokenLen]...),
	}, nil
}

// HandshakeReply is the server's accept/refuse response:
//
//	u8 kind=0x02 | u8 status | u64 assigned_peer_id
type HandshakeReply struct {
	Status         HandshakeStatus
	AssignedPeerID uint64
}

// Encode appends the wire representation to buf.
func (r HandshakeReply) Encode(buf []byte) []byte {
	buf = append(buf, byte(MsgHandshakeReply), byte(r.Status))
	buf = appendUint64(buf, r.AssignedPeerID)
	return buf
}

// DecodeHandshakeReply parses a handshake reply payload (kind byte included).
func DecodeHandshakeReply(buf []byte) (HandshakeReply, error) {
	if len(buf) < 1+1+8 || MsgKind(buf[0]) != MsgHandshakeReply {
		return HandshakeReply{}, ErrShortBuffer
	}
	return HandshakeReply{
		Status:         HandshakeStatus(buf[1]),
		AssignedPeerID: binary.LittleEndian.Uint64(buf[2:10]),
	}, nil
}

// EncodeKeepalive returns the single-byte keepalive payload.
func EncodeKeepalive() []byte { return []byte{byte(MsgKeepalive)} }

// DisconnectReason explains why a session was torn down, for the
// disconnected(reason) event surfaced to callers (§7).
type DisconnectReason uint8

const (
	ReasonUnknown         DisconnectReason = 0
	ReasonClientRequested DisconnectReason = 1
	ReasonTimeout         DisconnectReason = 2
	ReasonServerShutdown  DisconnectReason = 3
	ReasonProtocolError   DisconnectReason = 4
)

// EncodeDisconnect returns the wire payload for a disconnect datagram:
// u8 kind=0x04 | u8 reason.
func EncodeDisconnect(reason DisconnectReason) []byte {
	return []byte{byte(MsgDisconnect), byte(reason)}
}

// DecodeDisconnect parses a disconnect payload (kind byte included).
func DecodeDisconnect(buf []byte) (DisconnectReason, error) {
	if len(buf) < 2 || MsgKind(buf[0]) != MsgDisconnect {
		return 0, ErrShortBuffer
	}
	return DisconnectReason(buf[1]), nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}
