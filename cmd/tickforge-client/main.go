// Command tickforge-client is the client process (§6): it connects to a
// tickforge-server, predicts its own entity, and renders nothing by
// default (headless demo mode). It replaces the teacher's cmd/rayman
// banner stub; the teacher's terminal rendering pipeline proper stays
// out of scope (§1) and is exercised instead by cmd/tickforge-monitor.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/andersfylling/tickforge/internal/config"
	tfLogging "github.com/andersfylling/tickforge/internal/logging"
	"github.com/andersfylling/tickforge/internal/metrics"
	"github.com/andersfylling/tickforge/internal/netgame"
	"github.com/andersfylling/tickforge/internal/session"
	"github.com/andersfylling/tickforge/internal/tick"

	tfclient "github.com/andersfylling/tickforge/internal/client"

	"github.com/prometheus/client_golang/prometheus"
)

// Version is set at build time.
var Version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to a client TOML config file (defaults used if empty)")
		clientID    = flag.Uint64("client-id", 1, "numeric client id presented at handshake")
		headless    = flag.Bool("headless", true, "run without a local terminal renderer (the only mode this binary implements)")
		autoconnect = flag.Bool("autoconnect", true, "connect to the configured server address on startup")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	fmt.Printf("tickforge-client %s\n", Version)

	level := logging.INFO
	if *verbose {
		level = logging.DEBUG
	}
	tfLogging.Init(level)

	cfg := config.DefaultClient()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadClient(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tickforge-client: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.ClientID = *clientID
	_ = headless // reserved: this binary never opens a terminal renderer regardless of the flag

	m := metrics.New(prometheus.NewRegistry())
	key, err := cfg.Key()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickforge-client: %v\n", err)
		os.Exit(1)
	}

	c, err := tfclient.New(cfg, m, scriptedAction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickforge-client: %v\n", err)
		os.Exit(1)
	}

	if *autoconnect {
		if err := c.Connect(cfg.ClientID, key, 5*time.Second); err != nil {
			fmt.Fprintf(os.Stderr, "tickforge-client: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("connected to %s as client %d\n", cfg.ServerAddr, cfg.ClientID)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if c.State() == session.ClientConnected {
			c.Disconnect()
		}
		c.Stop()
	}()

	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tickforge-client: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("tickforge-client: stopped")
	os.Exit(0)
}

// scriptedAction is the headless demo's ActionProvider: walk right for
// two seconds out of every four, otherwise stand still.
func scriptedAction(t tick.Tick) netgame.Action {
	if (uint16(t)/128)%2 == 0 {
		return netgame.Action{Move: 1}
	}
	return netgame.Action{}
}
