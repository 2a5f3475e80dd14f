package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"netwatch/internal/cluster"
	"netwatch/internal/config"
	"netwatch/internal/locale"
	"netwatch/internal/monitor"
	"netwatch/internal/netiface"
	"netwatch/internal/probe"
	"netwatch/internal/server"
	"netwatch/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", ":8080", "address for the web server")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.New(cfg.DataDirectory, cfg.HistoryLimit)
	if err != nil {
		log.Fatalf("initialise storage: %v", err)
	}

	catalog, err := locale.LoadCatalog(cfg.LocaleFile)
	if err != nil {
		log.Fatalf("load locale catalog: %v", err)
	}

	prober, err := probe.New(cfg.Probe)
	if err != nil {
		log.Fatalf("configure prober: %v", err)
	}

	watcher := netiface.NewWatcher(netiface.System, time.Duration(cfg.IfacePollSec)*time.Second, clock.New())
	watcher.Start()
	defer watcher.Stop()

	mon := monitor.New(monitor.Options{
		Query:    netiface.System,
		Prober:   prober,
		Events:   watcher.Events(),
		Recorder: store,
		Interval: time.Duration(cfg.Probe.IntervalSeconds) * time.Second,
		Timeout:  time.Duration(cfg.Probe.TimeoutSeconds) * time.Second,
	})
	mon.Start()
	defer mon.Close()

	node := cluster.Node{ID: cfg.NodeID, Name: cfg.NodeName}
	clusterSvc := cluster.NewService(node, mon, store, cfg)
	clusterSvc.Start()
	defer clusterSvc.Stop()

	srv := server.New(*addr, node, mon, store, catalog, clusterSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("netwatch %s listening on %s (probe %s/%s every %ds)",
		cfg.NodeID, *addr, cfg.Probe.Mode, cfg.Probe.Target, cfg.Probe.IntervalSeconds)
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
