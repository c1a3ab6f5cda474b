package registry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// vec2 is a stand-in "Position"-shaped component for registry tests.
type vec2 struct{ X, Y float64 }

func vec2Descriptor() Descriptor {
	return Descriptor{
		WireID: 1,
		Mode:   Full,
		Serialize: func(v Value, out []byte) []byte {
			p := v.(vec2)
			var tmp [16]byte
			binary.LittleEndian.PutUint64(tmp[0:8], math.Float64bits(p.X))
			binary.LittleEndian.PutUint64(tmp[8:16], math.Float64bits(p.Y))
			return append(out, tmp[:]...)
		},
		Deserialize: func(in []byte) (Value, error) {
			if len(in) < 16 {
				return nil, ErrUnknownComponent
			}
			return vec2{
				X: math.Float64frombits(binary.LittleEndian.Uint64(in[0:8])),
				Y: math.Float64frombits(binary.LittleEndian.Uint64(in[8:16])),
			}, nil
		},
		ShouldRollback: func(old, new Value) bool {
			o, n := old.(vec2), new.(vec2)
			dx, dy := o.X-n.X, o.Y-n.Y
			return dx*dx+dy*dy > 2.0*2.0
		},
		Interpolate: func(a, b Value, u float64) Value {
			p0, p1 := a.(vec2), b.(vec2)
			return vec2{X: p0.X + (p1.X-p0.X)*u, Y: p0.Y + (p1.Y-p0.Y)*u}
		},
	}
}

func TestRoundTripSerialization(t *testing.T) {
	r := New()
	r.Register(vec2Descriptor())

	want := vec2{X: 12.5, Y: -3.25}
	encoded, isDelta, err := r.Encode(1, want, nil, false, nil)
	require.NoError(t, err)
	require.False(t, isDelta)

	got, err := r.Decode(1, encoded, nil, false)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestUnknownComponentErrors(t *testing.T) {
	r := New()
	_, _, err := r.Encode(99, vec2{}, nil, false, nil)
	require.ErrorIs(t, err, ErrUnknownComponent)

	_, err = r.Decode(99, nil, nil, false)
	require.ErrorIs(t, err, ErrUnknownComponent)
}

func TestShouldRollbackThreshold(t *testing.T) {
	d := vec2Descriptor()
	require.False(t, d.ShouldRollback(vec2{X: 10}, vec2{X: 9.5})) // S6: diff 0.5 < threshold 2.0
	require.True(t, d.ShouldRollback(vec2{X: 10}, vec2{X: 5}))
}

func TestInterpolateMonotonic(t *testing.T) {
	d := vec2Descriptor()
	a, b := vec2{X: 0}, vec2{X: 100}
	prevX := -1.0
	for u := 0.0; u <= 1.0; u += 0.1 {
		v := d.Interpolate(a, b, u).(vec2)
		require.Greater(t, v.X, prevX)
		prevX = v.X
	}
}
