package channel

import "time"

// MinRTO is the floor on the retransmission timeout (§5 "Timeouts").
const MinRTO = 20 * time.Millisecond

// MaxRTO caps the exponential backoff (§5).
const MaxRTO = 1 * time.Second

// pendingMessage tracks one reliable-channel message in flight
// (Queued → InFlight(t_sent) → {Acked | Resending} → Acked, §4.8).
type pendingMessage struct {
	payload  []byte
	sentAt   time.Time
	retries  int
	deadline time.Time
}

// sendQueue is the retransmission queue for one reliable channel: one
// entry per unacknowledged message, each with its own backed-off deadline.
type sendQueue struct {
	pending map[uint16]*pendingMessage
}

func newSendQueue() *sendQueue {
	return &sendQueue{pending: make(map[uint16]*pendingMessage)}
}

func (q *sendQueue) enqueue(seq uint16, payload []byte, now time.Time) {
	q.pending[seq] = &pendingMessage{
		payload:  payload,
		sentAt:   now,
		deadline: now.Add(MinRTO),
	}
}

func (q *sendQueue) ack(seq uint16) {
	delete(q.pending, seq)
}

// due returns every message whose deadline has passed, incrementing its
// retry count and advancing its deadline by RTO = max(MinRTO, 2*RTT)
// doubled once per earlier retry, capped at MaxRTO (§4.2, §5).
func (q *sendQueue) due(now time.Time, rtt time.Duration) []ResendMessage {
	rto := 2 * rtt
	if rto < MinRTO {
		rto = MinRTO
	}
	if rto > MaxRTO {
		rto = MaxRTO
	}

	var out []ResendMessage
	for seq, msg := range q.pending {
		if now.Before(msg.deadline) {
			continue
		}
		msg.retries++
		backoff := rto
		for i := 1; i < msg.retries && backoff < MaxRTO; i++ {
			backoff *= 2
		}
		if backoff > MaxRTO {
			backoff = MaxRTO
		}
		msg.deadline = now.Add(backoff)
		out = append(out, ResendMessage{Seq: seq, Payload: msg.payload, Retries: msg.retries})
	}
	return out
}

// Len reports the number of messages still awaiting acknowledgement.
func (q *sendQueue) Len() int { return len(q.pending) }
