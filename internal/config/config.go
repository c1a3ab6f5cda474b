// Package config loads the Server/Client configuration surface (§6) from
// TOML files using github.com/BurntSushi/toml, the format
// xendarboh-katzenpost (a pack repo) carries for this kind of endpoint
// configuration. The teacher itself has no config *file* format — its
// server.Config/client.Config are plain structs built by a
// DefaultConfig() constructor and filled in by the caller — so we keep
// that constructor pattern and add a TOML loader on top of it.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Server is every knob the Configuration Surface table (§6) assigns to
// the server process.
type Server struct {
	ListenAddr string `toml:"listen_addr"`

	ProtocolID uint64 `toml:"protocol_id"`
	KeyHex     string `toml:"key_hex"` // 32 bytes, hex-encoded pre-shared key (§4.1)

	TickHz                    int `toml:"tick_hz"`
	ClientTimeoutSecs         int `toml:"client_timeout_secs"`
	TokenExpireSecs           int `toml:"token_expire_secs"`
	KeepaliveHz               int `toml:"keepalive_hz"`
	NumDisconnectPackets      int `toml:"num_disconnect_packets"`
	ReplicationSendIntervalMs int `toml:"replication_send_interval_ms"`
	InputRedundancyWindow     int `toml:"input_redundancy_window"`
	PredictionHistoryCapTicks int `toml:"prediction_history_cap_ticks"`
	InterpolationDelayTicks   int `toml:"interpolation_delay_ticks"`

	MetricsAddr string `toml:"metrics_addr"` // empty disables the /metrics endpoint
	TraceFile   string `toml:"trace_file"`    // empty disables session recording (internal/trace)
}

// Client is every knob the Configuration Surface table (§6) assigns to
// the client process.
type Client struct {
	ServerAddr string `toml:"server_addr"`
	ClientID   uint64 `toml:"client_id"`

	ProtocolID uint64 `toml:"protocol_id"`
	KeyHex     string `toml:"key_hex"`

	TickHz                    int `toml:"tick_hz"`
	ClientTimeoutSecs         int `toml:"client_timeout_secs"`
	TokenExpireSecs           int `toml:"token_expire_secs"`
	KeepaliveHz               int `toml:"keepalive_hz"`
	InputRedundancyWindow     int `toml:"input_redundancy_window"`
	PredictionHistoryCapTicks int `toml:"prediction_history_cap_ticks"`
	InterpolationDelayTicks   int `toml:"interpolation_delay_ticks"`

	TraceFile string `toml:"trace_file"`
}

// DefaultServer returns the Configuration Surface table's defaults (§6),
// mirroring the teacher's DefaultConfig() constructor pattern
// (internal/server/server.go, internal/client/client.go).
func DefaultServer() Server {
	return Server{
		ListenAddr:                "0.0.0.0:5001",
		ProtocolID:                0x1122334455667788,
		TickHz:                    64,
		ClientTimeoutSecs:         3,
		TokenExpireSecs:           30,
		KeepaliveHz:               10,
		NumDisconnectPackets:      10,
		ReplicationSendIntervalMs: 100,
		InputRedundancyWindow:     8,
		PredictionHistoryCapTicks: 64,
		InterpolationDelayTicks:   2,
	}
}

// DefaultClient returns the client-side defaults (§6).
func DefaultClient() Client {
	return Client{
		ServerAddr:                "127.0.0.1:5001",
		ProtocolID:                0x1122334455667788,
		TickHz:                    64,
		ClientTimeoutSecs:         3,
		TokenExpireSecs:           30,
		KeepaliveHz:               10,
		InputRedundancyWindow:     8,
		PredictionHistoryCapTicks: 64,
		InterpolationDelayTicks:   2,
	}
}

// LoadServer starts from DefaultServer and overlays any field present in
// the TOML file at path, leaving every other field at its default —
// BurntSushi/toml's decode-into-prefilled-struct behavior makes this work
// without a separate merge step.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Server{}, fmt.Errorf("config: load server config: %w", err)
	}
	return cfg, nil
}

// LoadClient starts from DefaultClient and overlays any field present in
// the TOML file at path.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Client{}, fmt.Errorf("config: load client config: %w", err)
	}
	return cfg, nil
}

// TickDuration converts TickHz into the fixed per-tick duration the
// tick.Clock needs (§4.3).
func (s Server) TickDuration() time.Duration { return tickDuration(s.TickHz) }

// TickDuration converts TickHz into the fixed per-tick duration the
// tick.Clock needs (§4.3).
func (c Client) TickDuration() time.Duration { return tickDuration(c.TickHz) }

func tickDuration(hz int) time.Duration {
	if hz <= 0 {
		hz = 64
	}
	return time.Second / time.Duration(hz)
}

// Key decodes KeyHex into the fixed-size pre-shared key session.Mint/
// session.Validate require. An empty KeyHex decodes to the all-zero key
// (the literal key used by §8 scenario S1).
func (s Server) Key() ([32]byte, error) { return decodeKey(s.KeyHex) }

// Key decodes KeyHex into the fixed-size pre-shared key.
func (c Client) Key() ([32]byte, error) { return decodeKey(c.KeyHex) }

func decodeKey(hexKey string) ([32]byte, error) {
	var key [32]byte
	if hexKey == "" {
		return key, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return key, fmt.Errorf("config: key_hex: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("config: key_hex: want %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
