// Package metrics exposes the counters and gauges the spec names
// explicitly — the "starved" input metric (§4.4), the "interp-stall"
// metric (§4.7), rollback counts and replay depth (§4.6), and per-peer
// RTT/RTO (§4.2) — through github.com/prometheus/client_golang, the
// metrics library carried by runZeroInc-conniver, runZeroInc-sockstats
// and xendarboh-katzenpost. The teacher has no metrics surface at all;
// this package gives its go.mod's prometheus dependency a home.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide set of collectors, registered once at
// startup and treated as immutable configuration thereafter (§5 "Shared
// resources"): every field is safe for concurrent use via the underlying
// prometheus collectors' own locking.
type Metrics struct {
	DroppedFrames   *prometheus.CounterVec // by reason: corrupt, unknown_peer, auth
	StarvedInputs   prometheus.Counter     // §4.4 "starved" metric
	InterpStalls    *prometheus.CounterVec // by entity id, §4.7 "interp-stall" metric
	Rollbacks       *prometheus.CounterVec // by entity id, §4.6
	ForcedResyncs   *prometheus.CounterVec // by entity id, §4.6 "History retention"
	ReplayedTicks   prometheus.Histogram   // §8 property 7 "rollback bound"
	PeerRTT         *prometheus.GaugeVec   // seconds, by peer
	PeerRTO         *prometheus.GaugeVec   // seconds, by peer
	SessionsByState *prometheus.GaugeVec   // by ServerState string, §4.1
}

// New creates and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests) or
// prometheus.DefaultRegisterer to expose on the process-wide /metrics
// endpoint (cmd/tickforge-server).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DroppedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickforge_dropped_frames_total",
			Help: "Datagrams dropped before any session effect (§7 Protocol/Auth errors), by reason.",
		}, []string{"reason"}),
		StarvedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickforge_starved_input_ticks_total",
			Help: "Server ticks simulated with an extrapolated (non-fresh) input sample (§4.4).",
		}),
		InterpStalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickforge_interp_stall_total",
			Help: "Render passes where the newest snapshot trailed the render instant (§4.7), by entity.",
		}, []string{"entity"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickforge_rollbacks_total",
			Help: "Reconciliations that triggered a rollback and replay (§4.6), by entity.",
		}, []string{"entity"}),
		ForcedResyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickforge_forced_resyncs_total",
			Help: "Reconciliations that overflowed the prediction history cap and forced a full resync (§4.6), by entity.",
		}, []string{"entity"}),
		ReplayedTicks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickforge_replayed_ticks",
			Help:    "Ticks replayed per rollback (§8 property 7).",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		PeerRTT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tickforge_peer_rtt_seconds",
			Help: "EWMA round-trip time estimate per peer (§4.2).",
		}, []string{"peer"}),
		PeerRTO: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tickforge_peer_rto_seconds",
			Help: "Current reliable-channel retransmission timeout per peer (§4.2, §5).",
		}, []string{"peer"}),
		SessionsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tickforge_sessions",
			Help: "Server-side sessions by state (§4.1).",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.DroppedFrames, m.StarvedInputs, m.InterpStalls, m.Rollbacks,
		m.ForcedResyncs, m.ReplayedTicks, m.PeerRTT, m.PeerRTO, m.SessionsByState,
	)
	return m
}

// ObserveRollback folds one Reconcile outcome into the rollback/resync
// counters and the replay-depth histogram, for a given entity label.
func (m *Metrics) ObserveRollback(entity string, rolledBack bool, replayedTicks int, forcedResync bool) {
	if forcedResync {
		m.ForcedResyncs.WithLabelValues(entity).Inc()
		return
	}
	if rolledBack {
		m.Rollbacks.WithLabelValues(entity).Inc()
		m.ReplayedTicks.Observe(float64(replayedTicks))
	}
}

// SetPeerTiming records the current RTT/RTO estimate for a peer label.
func (m *Metrics) SetPeerTiming(peer string, rtt, rto time.Duration) {
	m.PeerRTT.WithLabelValues(peer).Set(rtt.Seconds())
	m.PeerRTO.WithLabelValues(peer).Set(rto.Seconds())
}

// ServeHTTP starts a blocking HTTP server exposing /metrics via
// promhttp.Handler, the same handler exporter_example1/exporter_example2
// (runZeroInc-sockstats) register before calling ListenAndServe.
func ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
