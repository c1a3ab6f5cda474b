package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveRollbackIncrementsRollbacksAndHistogram(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRollback("e1", true, 3, false)

	require.Equal(t, 1.0, counterValue(t, m.Rollbacks.WithLabelValues("e1")))

	var hist dto.Metric
	require.NoError(t, m.ReplayedTicks.Write(&hist))
	require.EqualValues(t, 1, hist.GetHistogram().GetSampleCount())
}

func TestObserveRollbackForcedResyncSkipsRollbackCounter(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRollback("e1", true, 70, true)

	require.Equal(t, 0.0, counterValue(t, m.Rollbacks.WithLabelValues("e1")))
	require.Equal(t, 1.0, counterValue(t, m.ForcedResyncs.WithLabelValues("e1")))
}

func TestSetPeerTimingRecordsSeconds(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetPeerTiming("peer-1", 45*time.Millisecond, 90*time.Millisecond)

	var rtt dto.Metric
	require.NoError(t, m.PeerRTT.WithLabelValues("peer-1").Write(&rtt))
	require.InDelta(t, 0.045, rtt.GetGauge().GetValue(), 1e-9)
}
