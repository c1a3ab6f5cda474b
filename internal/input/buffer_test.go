package input

import (
	"testing"

	"github.com/andersfylling/tickforge/internal/tick"
	"github.com/stretchr/testify/require"
)

func TestBufferWindowReturnsNewestFirstReversedOldestFirst(t *testing.T) {
	b := NewBuffer(4)
	for i := tick.Tick(100); i < 104; i++ {
		b.Record(i, []byte{byte(i)})
	}

	win := b.Window(103)
	require.Len(t, win, 4)
	require.Equal(t, []byte{100}, win[0])
	require.Equal(t, []byte{103}, win[3])
}

func TestBufferWindowHandlesGaps(t *testing.T) {
	b := NewBuffer(4)
	b.Record(100, []byte{1})
	b.Record(103, []byte{2})

	win := b.Window(103)
	require.Nil(t, win[1])
	require.Nil(t, win[2])
	require.Equal(t, []byte{1}, win[0])
	require.Equal(t, []byte{2}, win[3])
}

func TestBufferGetReplaysHistoricalTick(t *testing.T) {
	b := NewBuffer(8)
	b.Record(500, []byte("x"))

	a, ok := b.Get(500)
	require.True(t, ok)
	require.Equal(t, []byte("x"), a)

	_, ok = b.Get(501)
	require.False(t, ok)
}

func TestServerBufferStarvesOnMissingTick(t *testing.T) {
	sb := NewServerBuffer(64)
	sb.Deposit(10, []byte("a"))

	a, starved := sb.Lookup(10)
	require.False(t, starved)
	require.Equal(t, []byte("a"), a)

	a, starved = sb.Lookup(11)
	require.True(t, starved)
	require.Equal(t, []byte("a"), a) // extrapolated from last received
}

func TestServerBufferDiscardsStaleArrivals(t *testing.T) {
	sb := NewServerBuffer(64)
	sb.Deposit(20, []byte("newer"))
	sb.Deposit(10, []byte("stale"))

	_, ok := sb.samples[10]
	require.False(t, ok, "an input arriving after a later tick must be silently discarded")
}

func TestServerBufferToleratesDroppedRedundancyWindow(t *testing.T) {
	const redundancy = 8
	sb := NewServerBuffer(64)

	// Only every 8th datagram "arrives"; each carries a window of the
	// last `redundancy` samples, so every tick still gets deposited.
	for base := tick.Tick(0); base < 64; base += redundancy {
		for i := 0; i < redundancy; i++ {
			sb.Deposit(base+tick.Tick(i), []byte{byte(base + tick.Tick(i))})
		}
	}

	for i := tick.Tick(0); i < 64; i++ {
		_, starved := sb.Lookup(i)
		require.False(t, starved, "tick %d should not starve with full redundancy coverage", i)
	}
}
