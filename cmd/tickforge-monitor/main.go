// Command tickforge-monitor is a read-only terminal dashboard for a
// running tickforge-server: it polls the server's Prometheus /metrics
// endpoint and renders per-peer RTT/RTO with a loss heat-map (§6 "CLI
// surface... documented for completeness"). It is not a game client —
// the network operations console internal/monitor describes, not the
// teacher's terminal renderer.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/gdamore/tcell/v2"

	"github.com/andersfylling/tickforge/internal/monitor"
)

func main() {
	var (
		metricsAddr = flag.String("metrics-addr", "127.0.0.1:9000", "host:port of the server's /metrics endpoint")
		interval    = flag.Duration("interval", time.Second, "refresh interval")
	)
	flag.Parse()

	dash, err := monitor.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickforge-monitor: %v\n", err)
		os.Exit(1)
	}
	defer dash.Close()

	url := fmt.Sprintf("http://%s/metrics", *metricsAddr)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-dash.Events():
			if isQuit(ev) {
				return
			}
		case <-ticker.C:
			peers, err := scrape(url)
			if err != nil {
				continue
			}
			dash.Render(peers)
		}
	}
}

// isQuit reports whether ev is the 'q', Escape, or Ctrl-C keypress the
// dashboard exits on.
func isQuit(ev tcell.Event) bool {
	key, ok := ev.(*tcell.EventKey)
	if !ok {
		return false
	}
	switch key.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return key.Rune() == 'q'
	}
	return false
}

// scrape fetches the server's /metrics endpoint and folds the peer-keyed
// RTT/RTO gauges into one row per peer, sorted by name for a stable
// display order.
func scrape(url string) ([]monitor.PeerStat, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, err
	}

	byPeer := make(map[string]*monitor.PeerStat)
	get := func(peer string) *monitor.PeerStat {
		p, ok := byPeer[peer]
		if !ok {
			p = &monitor.PeerStat{Name: peer, State: "connected"}
			byPeer[peer] = p
		}
		return p
	}

	if f, ok := families["tickforge_peer_rtt_seconds"]; ok {
		for _, m := range f.GetMetric() {
			get(labelValue(m, "peer")).RTT = secondsToDuration(m.GetGauge().GetValue())
		}
	}
	if f, ok := families["tickforge_peer_rto_seconds"]; ok {
		for _, m := range f.GetMetric() {
			get(labelValue(m, "peer")).RTO = secondsToDuration(m.GetGauge().GetValue())
		}
	}

	peers := make([]monitor.PeerStat, 0, len(byPeer))
	for _, p := range byPeer {
		peers = append(peers, *p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })
	return peers, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func secondsToDuration(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
