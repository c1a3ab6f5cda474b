package netgame

import (
	"encoding/binary"
	"math"

	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
)

// Wire ids for the demo component set. Stable once assigned (§3 "the
// wire id, not the Go type, is the durable identity").
const (
	ComponentPosition ids.ComponentID = iota + 1
	ComponentVelocity
	ComponentGrounded
	ComponentOwner
)

// positionRollbackTolerance bounds how far a predicted position may
// diverge from the authoritative one before a rollback is forced (§4.6
// step 3). At 0.05 world units it is about half of one tick's motion at
// moveSpeed and 64 Hz; positions travel as exact float64 values, so the
// delta codec itself adds no error.
const positionRollbackTolerance = 0.05

func encodeFloat64(v float64, out []byte) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return append(out, buf[:]...)
}

func decodeFloat64(in []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(in))
}

// RegisterAll installs descriptors for every netgame component into reg.
// Call once at startup on both client and server registries (§5 "Shared
// resources": the registry is immutable configuration from then on).
func RegisterAll(reg *registry.Registry) {
	reg.Register(registry.Descriptor{
		WireID: ComponentPosition,
		Mode:   registry.Full,
		Serialize: func(v registry.Value, out []byte) []byte {
			p := v.(Position)
			out = encodeFloat64(p.X, out)
			out = encodeFloat64(p.Y, out)
			return out
		},
		Deserialize: func(in []byte) (registry.Value, error) {
			if len(in) < 16 {
				return nil, registry.ErrShortBuffer
			}
			return Position{X: decodeFloat64(in[0:8]), Y: decodeFloat64(in[8:16])}, nil
		},
		DeltaEncode: func(old, new registry.Value, out []byte) []byte {
			o, n := old.(Position), new.(Position)
			if o == n {
				return out // unchanged: zero-length delta (§4.5 step 4 convention)
			}
			out = encodeFloat64(n.X, out)
			out = encodeFloat64(n.Y, out)
			return out
		},
		DeltaDecode: func(old registry.Value, in []byte) (registry.Value, error) {
			if len(in) == 0 {
				return old, nil
			}
			if len(in) < 16 {
				return nil, registry.ErrShortBuffer
			}
			return Position{X: decodeFloat64(in[0:8]), Y: decodeFloat64(in[8:16])}, nil
		},
		ShouldRollback: func(old, new registry.Value) bool {
			o, n := old.(Position), new.(Position)
			dx, dy := o.X-n.X, o.Y-n.Y
			return dx*dx+dy*dy > positionRollbackTolerance*positionRollbackTolerance
		},
		Interpolate: func(a, b registry.Value, u float64) registry.Value {
			pa, pb := a.(Position), b.(Position)
			return Position{X: pa.X + (pb.X-pa.X)*u, Y: pa.Y + (pb.Y-pa.Y)*u}
		},
		Correct: func(from, to registry.Value, u float64) registry.Value {
			pa, pb := from.(Position), to.(Position)
			return Position{X: pa.X + (pb.X-pa.X)*u, Y: pa.Y + (pb.Y-pa.Y)*u}
		},
	})

	reg.Register(registry.Descriptor{
		WireID: ComponentVelocity,
		Mode:   registry.Full,
		Serialize: func(v registry.Value, out []byte) []byte {
			vel := v.(Velocity)
			out = encodeFloat64(vel.X, out)
			out = encodeFloat64(vel.Y, out)
			return out
		},
		Deserialize: func(in []byte) (registry.Value, error) {
			if len(in) < 16 {
				return nil, registry.ErrShortBuffer
			}
			return Velocity{X: decodeFloat64(in[0:8]), Y: decodeFloat64(in[8:16])}, nil
		},
		Interpolate: func(a, b registry.Value, u float64) registry.Value {
			va, vb := a.(Velocity), b.(Velocity)
			return Velocity{X: va.X + (vb.X-va.X)*u, Y: va.Y + (vb.Y-va.Y)*u}
		},
	})

	reg.Register(registry.Descriptor{
		WireID: ComponentGrounded,
		Mode:   registry.Full,
		Serialize: func(v registry.Value, out []byte) []byte {
			g := v.(Grounded)
			b := byte(0)
			if g.OnGround {
				b = 1
			}
			return append(out, b)
		},
		Deserialize: func(in []byte) (registry.Value, error) {
			if len(in) < 1 {
				return nil, registry.ErrShortBuffer
			}
			return Grounded{OnGround: in[0] != 0}, nil
		},
		// No ShouldRollback: a boolean differs bit-exact or not at all,
		// so the reconciler's default bit-exact fallback is correct here.
	})

	reg.Register(registry.Descriptor{
		WireID: ComponentOwner,
		Mode:   registry.Once, // assigned at spawn, never changes (§3)
		Serialize: func(v registry.Value, out []byte) []byte {
			o := v.(Owner)
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(o.Peer))
			return append(out, buf[:]...)
		},
		Deserialize: func(in []byte) (registry.Value, error) {
			if len(in) < 8 {
				return nil, registry.ErrShortBuffer
			}
			return Owner{Peer: ids.PeerID(binary.LittleEndian.Uint64(in[0:8]))}, nil
		},
	})
}
