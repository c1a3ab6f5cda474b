// Package session implements peer authentication and the per-peer
// connection state machine (§4.1). Handshake tokens are authenticated with
// a keyed BLAKE2b-256 MAC (golang.org/x/crypto/blake2b) rather than stdlib
// crypto/hmac, matching the pack's preference for x/crypto primitives
// (see DESIGN.md); only the final constant-time comparison stays stdlib.
package session

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"time"

	"github.com/rs/xid"
	"golang.org/x/crypto/blake2b"
)

// KeySize is the pre-shared key length (§4.1).
const KeySize = 32

// ErrTokenExpired is returned by Validate for a token past its expiry.
var ErrTokenExpired = errors.New("session: token expired")

// ErrTokenInvalid is returned by Validate for a MAC or protocol-id mismatch.
// The caller must treat this identically to ErrTokenExpired externally: an
// attacker must gain no information from which failure occurred (§7 Auth).
var ErrTokenInvalid = errors.New("session: token invalid")

// Token binds a client id, protocol id, server address and expiry under a
// MAC derived from the pre-shared key (§4.1).
type Token struct {
	ProtocolID uint64
	ClientID   uint64
	ServerAddr string
	Nonce      xid.ID
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Mint creates and MAC-seals a token, returning its wire bytes.
func Mint(key [KeySize]byte, protocolID, clientID uint64, serverAddr string, validity time.Duration) []byte {
	now := time.Now()
	t := Token{
		ProtocolID: protocolID,
		ClientID:   clientID,
		ServerAddr: serverAddr,
		Nonce:      xid.New(),
		IssuedAt:   now,
		ExpiresAt:  now.Add(validity),
	}
	body := t.encodeBody()
	mac := computeMAC(key, body)
	return append(body, mac...)
}

// Validate checks a token's MAC (constant-time) and expiry against the
// given key, protocol id and current time. The two failure modes return
// distinct errors, ErrTokenInvalid and ErrTokenExpired; callers must not
// let the distinction leak onto the wire (§4.1, §7).
func Validate(raw []byte, key [KeySize]byte, protocolID uint64, now time.Time) (Token, error) {
	const macSize = blake2b.Size256
	if len(raw) < macSize {
		return Token{}, ErrTokenInvalid
	}
	body, mac := raw[:len(raw)-macSize], raw[len(raw)-macSize:]

	want := computeMAC(key, body)
	if subtle.ConstantTimeCompare(mac, want) != 1 {
		return Token{}, ErrTokenInvalid
	}

	t, err := decodeBody(body)
	if err != nil {
		return Token{}, ErrTokenInvalid
	}
	if t.ProtocolID != protocolID {
		return Token{}, ErrTokenInvalid
	}
	if now.After(t.ExpiresAt) {
		return Token{}, ErrTokenExpired
	}
	return t, nil
}

func computeMAC(key [KeySize]byte, body []byte) []byte {
	h, err := blake2b.New256(key[:])
	if err != nil {
		// Only returns an error for a bad key size, which KeySize guarantees against.
		panic(err)
	}
	h.Write(body)
	return h.Sum(nil)
}

func (t Token) encodeBody() []byte {
	buf := make([]byte, 0, 8+8+2+len(t.ServerAddr)+12+8+8)
	buf = appendU64(buf, t.ProtocolID)
	buf = appendU64(buf, t.ClientID)
	buf = appendU16(buf, uint16(len(t.ServerAddr)))
	buf = append(buf, t.ServerAddr...)
	nonceBytes, _ := t.Nonce.MarshalText()
	buf = appendU16(buf, uint16(len(nonceBytes)))
	buf = append(buf, nonceBytes...)
	buf = appendU64(buf, uint64(t.IssuedAt.UnixNano()))
	buf = appendU64(buf, uint64(t.ExpiresAt.UnixNano()))
	return buf
}

func decodeBody(buf []byte) (Token, error) {
	if len(buf) < 18 {
		return Token{}, ErrTokenInvalid
	}
	t := Token{}
	t.ProtocolID = binary.LittleEndian.Uint64(buf[0:8])
	t.ClientID = binary.LittleEndian.Uint64(buf[8:16])
	addrLen := binary.LittleEndian.Uint16(buf[16:18])
	rest := buf[18:]
	if len(rest) < int(addrLen)+2 {
		return Token{}, ErrTokenInvalid
	}
	t.ServerAddr = string(rest[:addrLen])
	rest = rest[addrLen:]
	nonceLen := binary.LittleEndian.Uint16(rest[0:2])
	rest = rest[2:]
	if len(rest) < int(nonceLen)+16 {
		return Token{}, ErrTokenInvalid
	}
	var nonce xid.ID
	if err := nonce.UnmarshalText(rest[:nonceLen]); err != nil {
		return Token{}, ErrTokenInvalid
	}
	t.Nonce = nonce
	rest = rest[nonceLen:]
	t.IssuedAt = time.Unix(0, int64(binary.LittleEndian.Uint64(rest[0:8])))
	t.ExpiresAt = time.Unix(0, int64(binary.LittleEndian.Uint64(rest[8:16])))
	return t, nil
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}
