// Package monitor is a read-only network-operations console for
// `cmd/tickforge-monitor` (§6): a tcell dashboard listing connected
// peers with their RTT/RTO and loss, heat-mapped with go-colorful and
// laid out with uniseg for width-safe name truncation. It is not the
// game renderer (§1 Non-goals) — it never touches netgame state, only
// the session/transport stats a caller feeds it each refresh. The
// screen lifecycle (Init/pollEvents/Close) follows the teacher's
// TcellRenderer in internal/render/tcell.go; its terminal-capability
// probe (internal/render/detect.go in the teacher's tree) is folded in
// here as colorCapability/detectColorCapability, trimmed to the one
// decision this dashboard makes with it (RGB loss heat-map vs. basic
// ANSI fallback in lossColor).
package monitor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"
)

// colorCapability records whether the terminal can render the RGB loss
// heat-map lossColor produces, or must fall back to the basic ANSI
// palette.
type colorCapability struct {
	truecolor bool
	color256  bool
}

// detectColorCapability probes COLORTERM/TERM the way the teacher's
// render.Detect did, trimmed to the truecolor/256-color signal
// lossColor actually branches on.
func detectColorCapability() colorCapability {
	var cap colorCapability
	colorterm := os.Getenv("COLORTERM")
	if colorterm == "truecolor" || colorterm == "24bit" {
		cap.truecolor = true
		cap.color256 = true
	}
	if strings.Contains(os.Getenv("TERM"), "256color") {
		cap.color256 = true
	}
	return cap
}

// PeerStat is one row of the dashboard, supplied by the caller (the
// server orchestrator reading session.Manager + transport stats).
type PeerStat struct {
	Name  string
	State string
	RTT   time.Duration
	RTO   time.Duration
	Loss  float64 // fraction in [0,1], unacked/sent over a recent window
}

// Dashboard owns a tcell screen and redraws a peer table on demand.
type Dashboard struct {
	screen tcell.Screen
	cap    colorCapability
	quitCh chan struct{}
	events chan tcell.Event
}

// Open initializes the terminal screen. Callers should defer Close.
func Open() (*Dashboard, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	d := &Dashboard{
		screen: screen,
		cap:    detectColorCapability(),
		quitCh: make(chan struct{}),
		events: make(chan tcell.Event, 32),
	}
	go d.pollEvents()
	return d, nil
}

func (d *Dashboard) pollEvents() {
	for {
		select {
		case <-d.quitCh:
			return
		default:
			ev := d.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case d.events <- ev:
			default:
			}
		}
	}
}

// Events exposes the underlying tcell event stream, so a caller's main
// loop can watch for tcell.EventKey (e.g. 'q' to quit) alongside its
// refresh ticker.
func (d *Dashboard) Events() <-chan tcell.Event { return d.events }

// Close tears down the screen and stops the poller.
func (d *Dashboard) Close() {
	close(d.quitCh)
	if d.screen != nil {
		d.screen.Fini()
	}
}

const nameColumnWidth = 20

// Render redraws the full peer table. Rows are sorted by the caller;
// Render only lays them out.
func (d *Dashboard) Render(peers []PeerStat) {
	d.screen.Clear()

	d.drawText(0, 0, tcell.StyleDefault.Bold(true), "PEER")
	d.drawText(nameColumnWidth, 0, tcell.StyleDefault.Bold(true), "STATE      RTT       RTO       LOSS")

	for i, p := range peers {
		row := i + 1
		name := truncateName(p.Name, nameColumnWidth-1)
		d.drawText(0, row, tcell.StyleDefault, name)

		lossStyle := tcell.StyleDefault.Foreground(lossColor(d.cap, p.Loss))
		line := fmt.Sprintf("%-10s %-9s %-9s %5.1f%%", p.State, p.RTT.Round(time.Millisecond), p.RTO.Round(time.Millisecond), p.Loss*100)
		d.drawText(nameColumnWidth, row, lossStyle, line)
	}

	d.screen.Show()
}

func (d *Dashboard) drawText(x, y int, style tcell.Style, text string) {
	col := x
	for _, r := range text {
		d.screen.SetContent(col, y, r, nil, style)
		col++
	}
}

// truncateName trims name to width grapheme clusters rather than runes,
// so combining marks never split. Each cluster counts as one cell;
// double-width glyphs are not accounted for and can overrun the column.
func truncateName(name string, width int) string {
	if width <= 0 {
		return ""
	}
	gr := uniseg.NewGraphemes(name)
	var out []byte
	cells := 0
	for gr.Next() && cells < width {
		out = append(out, []byte(gr.Str())...)
		cells++
	}
	return string(out)
}

// lossColor heat-maps a loss fraction from green (0) to red (1). When
// the terminal lacks truecolor/256-color support, it degrades to the
// basic ANSI palette instead of picking an unsupported RGB value.
func lossColor(cap colorCapability, loss float64) tcell.Color {
	if loss < 0 {
		loss = 0
	}
	if loss > 1 {
		loss = 1
	}
	good, _ := colorful.Hex("#2ecc71")
	bad, _ := colorful.Hex("#e74c3c")
	blended := good.BlendLuv(bad, loss)

	if cap.truecolor || cap.color256 {
		r, g, b := blended.RGB255()
		return tcell.NewRGBColor(int32(r), int32(g), int32(b))
	}
	switch {
	case loss < 0.1:
		return tcell.ColorGreen
	case loss < 0.4:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}
