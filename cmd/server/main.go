package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/matst80/relayguard/internal/console"
	"github.com/matst80/relayguard/internal/eventlog"
	"github.com/matst80/relayguard/internal/obs"
	"github.com/matst80/relayguard/internal/registry"
	"github.com/matst80/relayguard/internal/relay"
)

func main() {
	flag.Parse()
	if cfg.Debug {
		obs.EnableDebug(true)
	}
	obs.Info("server.start", obs.Fields{"listen": cfg.ListenAddr, "backend": cfg.BackendAddr, "metrics": cfg.MetricsAddr})

	events, err := eventlog.Open(cfg.LogFile, os.Stdout)
	if err != nil {
		obs.Error("eventlog.open", obs.Fields{"err": err.Error(), "path": cfg.LogFile})
		os.Exit(1)
	}
	defer events.Close()

	store, err := registry.NewStore(cfg.AllowListFile, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		obs.Error("allowlist.store", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	reg := registry.New(store)
	if err := reg.Load(); err != nil {
		// Degrade to an empty registry; the console can rebuild the list.
		obs.Warn("allowlist.load", obs.Fields{"err": err.Error()})
		events.Append(fmt.Sprintf("Error loading allowed IPs: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		obs.Error("listen", obs.Fields{"err": err.Error(), "addr": cfg.ListenAddr})
		os.Exit(1)
	}
	defer ln.Close()

	go startMetricsServer(cfg.MetricsAddr, reg, func() bool { return ctx.Err() == nil })

	r := relay.New(reg, cfg.BackendAddr, cfg.DialTimeout, events)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); r.Serve(ctx, ln) }()

	// The console goroutine is not waited on: a scanner blocked on stdin has
	// nothing to unblock it, and the loop holds no resources worth draining.
	cons := console.New(reg, os.Stdin, os.Stdout, events, stop)
	go cons.Run(ctx)

	events.Append(fmt.Sprintf("Proxy listening on %s -> %s", cfg.ListenAddr, cfg.BackendAddr))
	obs.Info("server.ready", obs.Fields{})

	<-ctx.Done()
	obs.Info("server.shutdown.signal", obs.Fields{})
	_ = ln.Close()
	wg.Wait()
	events.Append("Server stopped.")
	obs.Info("server.shutdown.complete", obs.Fields{})
}
