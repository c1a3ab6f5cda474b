package wire

import (
	"encoding/binary"

	"github.com/andersfylling/tickforge/internal/ids"
)

// deltaFlag is reserved as the high bit of the on-wire component_wire_id,
// distinguishing a delta-encoded payload from a full one without widening
// the frame layout (§4.5 step 4, §9 Open Questions: the distilled wire
// format is silent on this, so the registry's existing 16-bit id space is
// split 15 bits of id / 1 bit of flag rather than adding a byte per
// component).
const deltaFlag ids.ComponentID = 1 << 15

// EncodedComponent is one (component_wire_id, u16 len, bytes) triple within
// an entity's component list (§6). IsDelta records whether Data was
// produced by the descriptor's DeltaEncode (true) or Serialize (false).
type EncodedComponent struct {
	WireID  ids.ComponentID
	IsDelta bool
	Data    []byte
}

// EncodedEntity is one entity's component list within a replication frame.
type EncodedEntity struct {
	ID         ids.EntityID
	Components []EncodedComponent
}

// ReplicationFrame is the payload of one replication-channel frame:
//
//	u16 tick | u16 group_id | varint entity_count |
//	(entity_id, u8 component_count, (component_wire_id, u16 len, bytes)*)*
type ReplicationFrame struct {
	Tick     uint16
	GroupID  ids.GroupID
	Entities []EncodedEntity
}

// Encode appends the frame's wire representation to buf. Returns
// ErrFrameTooLarge if any component count exceeds a byte.
func (f ReplicationFrame) Encode(buf []byte) ([]byte, error) {
	buf = appendUint16(buf, f.Tick)
	buf = appendUint16(buf, uint16(f.GroupID))
	buf = AppendVarint(buf, uint64(len(f.Entities)))
	for _, e := range f.Entities {
		if len(e.Components) > 0xFF {
			return nil, ErrFrameTooLarge
		}
		buf = appendUint64(buf, uint64(e.ID))
		buf = append(buf, byte(len(e.Components)))
		for _, c := range e.Components {
			if len(c.Data) > 0xFFFF {
				return nil, ErrFrameTooLarge
			}
			if c.WireID&deltaFlag != 0 {
				return nil, ErrFrameTooLarge
			}
			wireID := c.WireID
			if c.IsDelta {
				wireID |= deltaFlag
			}
			buf = appendUint16(buf, uint16(wireID))
			buf = appendUint16(buf, uint16(len(c.Data)))
			buf = append(buf, c.Data...)
		}
	}
	return buf, nil
}

// DecodeReplicationFrame parses a replication frame payload.
func DecodeReplicationFrame(buf []byte) (ReplicationFrame, error) {
	if len(buf) < 4 {
		return ReplicationFrame{}, ErrShortBuffer
	}
	f := ReplicationFrame{
		Tick:    binary.LittleEndian.Uint16(buf[0:2]),
		GroupID: ids.GroupID(binary.LittleEndian.Uint16(buf[2:4])),
	}
	rest := buf[4:]
	count, rest, err := ReadVarint(rest)
	if err != nil {
		return ReplicationFrame{}, err
	}
	for i := uint64(0); i < count; i++ {
		if len(rest) < 9 {
			return ReplicationFrame{}, ErrShortBuffer
		}
		entityID := ids.EntityID(binary.LittleEndian.Uint64(rest[0:8]))
		componentCount := rest[8]
		rest = rest[9:]

		entity := EncodedEntity{ID: entityID}
		for j := byte(0); j < componentCount; j++ {
			if len(rest) < 4 {
				return ReplicationFrame{}, ErrShortBuffer
			}
			rawID := ids.ComponentID(binary.LittleEndian.Uint16(rest[0:2]))
			isDelta := rawID&deltaFlag != 0
			wireID := rawID &^ deltaFlag
			dataLen := binary.LittleEndian.Uint16(rest[2:4])
			rest = rest[4:]
			if len(rest) < int(dataLen) {
				return ReplicationFrame{}, ErrShortBuffer
			}
			entity.Components = append(entity.Components, EncodedComponent{
				WireID:  wireID,
				IsDelta: isDelta,
				Data:    append([]byte(nil), rest[:dataLen]...),
			})
			rest = rest[dataLen:]
		}
		f.Entities = append(f.Entities, entity)
	}
	return f, nil
}

// InputFrame is the payload of an input-channel datagram: a redundancy
// window of the last `window` action-state samples, newest first (§6, §4.4).
//
//	u16 tick_newest | u8 window | (u16 len | action_state bytes)*
type InputFrame struct {
	TickNewest uint16
	Samples    [][]byte // index 0 = tick_newest, index 1 = tick_newest-1, ...
}

// Encode appends the frame's wire representation to buf. Each sample is
// length-prefixed, so samples may differ in length (an empty one included).
func (f InputFrame) Encode(buf []byte) ([]byte, error) {
	if len(f.Samples) > 0xFF {
		return nil, ErrFrameTooLarge
	}
	buf = appendUint16(buf, f.TickNewest)
	buf = append(buf, byte(len(f.Samples)))
	for _, s := range f.Samples {
		buf = appendUint16(buf, uint16(len(s)))
		buf = append(buf, s...)
	}
	return buf, nil
}

// DecodeInputFrame parses an input frame payload.
func DecodeInputFrame(buf []byte) (InputFrame, error) {
	if len(buf) < 3 {
		return InputFrame{}, ErrShortBuffer
	}
	f := InputFrame{TickNewest: binary.LittleEndian.Uint16(buf[0:2])}
	window := buf[2]
	rest := buf[3:]
	for i := byte(0); i < window; i++ {
		if len(rest) < 2 {
			return InputFrame{}, ErrShortBuffer
		}
		n := binary.LittleEndian.Uint16(rest[0:2])
		rest = rest[2:]
		if len(rest) < int(n) {
			return InputFrame{}, ErrShortBuffer
		}
		f.Samples = append(f.Samples, append([]byte(nil), rest[:n]...))
		rest = rest[n:]
	}
	return f, nil
}

// AckEntry is one (group_id, last_seen_tick) pair piggybacked on input
// datagrams so the server can advance delta-compression baselines (§4.5).
type AckEntry struct {
	GroupID      ids.GroupID
	LastSeenTick uint16
}

// EncodeAcks appends a sequence of ack entries to buf.
func EncodeAcks(buf []byte, entries []AckEntry) []byte {
	for _, e := range entries {
		buf = appendUint16(buf, uint16(e.GroupID))
		buf = appendUint16(buf, e.LastSeenTick)
	}
	return buf
}

// DecodeAcks parses a sequence of ack entries from the entirety of buf.
func DecodeAcks(buf []byte) ([]AckEntry, error) {
	var entries []AckEntry
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, ErrShortBuffer
		}
		entries = append(entries, AckEntry{
			GroupID:      ids.GroupID(binary.LittleEndian.Uint16(buf[0:2])),
			LastSeenTick: binary.LittleEndian.Uint16(buf[2:4]),
		})
		buf = buf[4:]
	}
	return entries, nil
}
