// Command tickforge-server is the dedicated, authoritative game server
// (§6). It replaces the teacher's cmd/rayserver banner stub.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/andersfylling/tickforge/internal/config"
	tfLogging "github.com/andersfylling/tickforge/internal/logging"
	"github.com/andersfylling/tickforge/internal/metrics"
	"github.com/andersfylling/tickforge/internal/server"

	"github.com/prometheus/client_golang/prometheus"
)

// Version is set at build time.
var Version = "dev"

func main() {
	var (
		configPath = flag.String("config", "", "path to a server TOML config file (defaults used if empty)")
		headless   = flag.Bool("headless", true, "run without a local terminal monitor attached")
		demo       = flag.Bool("demo", false, "seed a few demo entities before accepting connections")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	fmt.Printf("tickforge-server %s\n", Version)

	level := logging.INFO
	if *verbose {
		level = logging.DEBUG
	}
	tfLogging.Init(level)

	cfg := config.DefaultServer()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadServer(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tickforge-server: %v\n", err)
			os.Exit(1)
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.ServeHTTP(cfg.MetricsAddr); err != nil {
				fmt.Fprintf(os.Stderr, "tickforge-server: metrics endpoint: %v\n", err)
			}
		}()
	}

	srv, err := server.New(cfg, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickforge-server: %v\n", err)
		os.Exit(1)
	}

	if *demo {
		seedDemoWorld(srv)
	}
	_ = headless // reserved: headless is the only mode a dedicated server process supports

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "tickforge-server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("listening on %s\n", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	srv.Stop()
	fmt.Println("tickforge-server: stopped")
	os.Exit(0)
}

func seedDemoWorld(srv *server.Server) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 3; i++ {
		srv.World().Spawn(0, r.Float64()*10, 0)
	}
}
