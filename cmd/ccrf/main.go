package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ccio/ccrf/ccrf"
	"github.com/ccio/ccrf/internal/devspec"
	"github.com/ccio/ccrf/internal/metrics"
)

func main() {
	cfg, sub, subArgs, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("ccrf %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	if sub == "" {
		fmt.Fprintln(os.Stderr, "usage: ccrf [flags] <command> [args]")
		fmt.Fprintln(os.Stderr, "commands: status, echo, rainbow, peer, send, recv, addr, reboot, fota, ping, monitor, flush, reset")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	opts := []ccrf.Option{
		ccrf.WithReadTimeout(cfg.readTimeout),
		ccrf.WithCallTimeout(cfg.callTimeout),
	}
	if cfg.baud > 0 {
		opts = append(opts, ccrf.WithBaud(cfg.baud))
	}

	dev, err := ccrf.Open(cfg.device, opts...)
	if err != nil {
		l.Error("device_open_error", "device", cfg.device, "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	if target, perr := devspec.Parse(cfg.device); perr == nil && target.Kind == devspec.KindProxyServer {
		cleanupMDNS, merr := startMDNS(ctx, cfg, target.SocketPath)
		if merr != nil {
			l.Warn("mdns_start_failed", "error", merr)
		} else {
			defer cleanupMDNS()
		}
		l.Info("proxy_serving", "socket", target.SocketPath)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cmdDone := make(chan error, 1)
	go func() { cmdDone <- runCommand(ctx, dev, sub, subArgs) }()

	select {
	case err := <-cmdDone:
		cancel()
		wg.Wait()
		if err != nil {
			l.Error("command_error", "command", sub, "error", err)
			os.Exit(1)
		}
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
		wg.Wait()
	}
}
