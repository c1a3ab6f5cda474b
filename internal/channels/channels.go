// Package channels assigns the fixed wire channel IDs used by the core
// (§6 Wire Formats) to their reliability mode (§4.1), so the transport,
// replication and input packages agree on both without importing each
// other.
package channels

import (
	"github.com/andersfylling/tickforge/internal/channel"
	"github.com/andersfylling/tickforge/internal/wire"
)

const (
	Control      wire.ChannelID = 0 // handshake, keepalive, disconnect
	Replication  wire.ChannelID = 1
	Input        wire.ChannelID = 2
	Messages     wire.ChannelID = 3 // application chat/event messages
	AckPiggyback wire.ChannelID = 4
)

// ModeOf returns the reliability mode a given wire channel uses.
func ModeOf(id wire.ChannelID) channel.Mode {
	switch id {
	case Replication:
		return channel.SequencedUnreliable
	case Input:
		return channel.UnorderedUnreliable
	case Messages:
		return channel.OrderedReliable
	case AckPiggyback:
		return channel.UnorderedUnreliable
	default:
		return channel.UnorderedReliable
	}
}
