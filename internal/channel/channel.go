// Package channel implements the four logical channel modes layered over
// the transport sequence (§3, §4.2): UnorderedUnreliable, UnorderedReliable,
// OrderedReliable, and Sequenced-Unreliable (latest-wins).
package channel

import "time"

// Mode is a channel's ordering/reliability contract (§3).
type Mode uint8

const (
	UnorderedUnreliable Mode = iota
	UnorderedReliable
	OrderedReliable
	SequencedUnreliable
)

// Outbound is the send-side state of one channel. Every mode assigns a
// monotonic per-channel sequence; only the two reliable modes keep a
// retransmission queue, UnorderedUnreliable and SequencedUnreliable have none.
type Outbound struct {
	mode    Mode
	nextSeq uint16
	queue   *sendQueue // nil for UnorderedUnreliable and SequencedUnreliable
}

// NewOutbound creates the send side of a channel in the given mode.
func NewOutbound(mode Mode) *Outbound {
	o := &Outbound{mode: mode}
	if mode == UnorderedReliable || mode == OrderedReliable {
		o.queue = newSendQueue()
	}
	return o
}

// Send assigns the next channel sequence to a payload. For reliable
// modes it also enqueues the message for retransmission tracking.
func (o *Outbound) Send(payload []byte, now time.Time) uint16 {
	seq := o.nextSeq
	o.nextSeq++
	if o.queue != nil {
		o.queue.enqueue(seq, payload, now)
	}
	return seq
}

// Ack marks a previously sent sequence as acknowledged, removing it from
// the retransmission queue (no-op on non-reliable modes).
func (o *Outbound) Ack(seq uint16) {
	if o.queue != nil {
		o.queue.ack(seq)
	}
}

// DueForResend returns messages whose RTO has elapsed and bumps their
// retry count and backed-off deadline. No-op on non-reliable modes.
func (o *Outbound) DueForResend(now time.Time, rtt time.Duration) []ResendMessage {
	if o.queue == nil {
		return nil
	}
	return o.queue.due(now, rtt)
}

// ResendMessage is one message ready for retransmission.
type ResendMessage struct {
	Seq     uint16
	Payload []byte
	Retries int
}

// Inbound is the receive-side state of one channel.
type Inbound struct {
	mode Mode

	// OrderedReliable / UnorderedReliable dedup + (ordered only) reorder buffering.
	expected uint16
	seen     map[uint16]struct{}
	pending  map[uint16][]byte

	// SequencedUnreliable latest-wins tracking.
	haveLatest bool
	latestSeq  uint16
}

// NewInbound creates the receive side of a channel in the given mode.
func NewInbound(mode Mode) *Inbound {
	return &Inbound{
		mode: mode,
		seen: make(map[uint16]struct{}),
		pending: make(map[uint16][]byte),
	}
}

// Deliver processes one received (seq, payload) pair and returns the
// payloads that are now deliverable to the application, in delivery
// order. A duplicate or superseded-sequence payload yields nothing (§4.2,
// §8.2, §8.3).
func (in *Inbound) Deliver(seq uint16, payload []byte) [][]byte {
	switch in.mode {
	case UnorderedUnreliable:
		return [][]byte{payload}

	case SequencedUnreliable:
		if in.haveLatest && !seqNewer(seq, in.latestSeq) {
			return nil // older-sequence payload after a newer one: dropped
		}
		in.haveLatest = true
		in.latestSeq = seq
		return [][]byte{payload}

	case UnorderedReliable:
		if _, dup := in.seen[seq]; dup {
			return nil
		}
		in.seen[seq] = struct{}{}
		return [][]byte{payload}

	case OrderedReliable:
		if _, dup := in.seen[seq]; dup {
			return nil
		}
		in.seen[seq] = struct{}{}
		if seq != in.expected {
			in.pending[seq] = payload
			return nil
		}
		var out [][]byte
		out = append(out, payload)
		in.expected++
		for {
			next, ok := in.pending[in.expected]
			if !ok {
				break
			}
			delete(in.pending, in.expected)
			out = append(out, next)
			in.expected++
		}
		return out

	default:
		return nil
	}
}

// seqNewer reports whether a is strictly newer than b under 16-bit
// sequence wraparound, using the same signed-distance rule as tick.Sub.
func seqNewer(a, b uint16) bool {
	d := int32(a) - int32(b)
	if d > 1<<15 {
		d -= 1 << 16
	} else if d < -(1 << 15) {
		d += 1 << 16
	}
	return d > 0
}
