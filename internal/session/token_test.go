package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMintValidateRoundTrip(t *testing.T) {
	key := testKey()
	now := time.Now()
	raw := Mint(key, testProtocolID, 7, "127.0.0.1:5001", 30*time.Second)

	tok, err := Validate(raw, key, testProtocolID, now)
	require.NoError(t, err)
	require.Equal(t, uint64(testProtocolID), tok.ProtocolID)
	require.Equal(t, uint64(7), tok.ClientID)
	require.Equal(t, "127.0.0.1:5001", tok.ServerAddr)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	key := testKey()
	var other [KeySize]byte
	for i := range other {
		other[i] = byte(255 - i)
	}
	raw := Mint(key, testProtocolID, 7, "127.0.0.1:5001", 30*time.Second)

	_, err := Validate(raw, other, testProtocolID, time.Now())
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateRejectsExpired(t *testing.T) {
	key := testKey()
	now := time.Now()
	raw := Mint(key, testProtocolID, 7, "127.0.0.1:5001", time.Millisecond)

	_, err := Validate(raw, key, testProtocolID, now.Add(time.Second))
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRejectsTruncated(t *testing.T) {
	key := testKey()
	raw := Mint(key, testProtocolID, 7, "127.0.0.1:5001", 30*time.Second)

	_, err := Validate(raw[:4], key, testProtocolID, time.Now())
	require.ErrorIs(t, err, ErrTokenInvalid)
}
