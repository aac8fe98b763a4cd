package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ccio/ccrf/internal/metrics"
)

// startMetricsLogger periodically logs a metrics snapshot, for deployments
// without a Prometheus scraper. No-op when interval <= 0.
func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"frame_rx", snap.FrameRx,
					"frame_tx", snap.FrameTx,
					"malformed", snap.Malformed,
					"unknown_code", snap.UnknownCode,
					"unsolicited", snap.Unsolicited,
					"rendezvous_timeouts", snap.RendezvousTimeout,
					"errors", snap.Errors,
					"proxy_clients", snap.ProxyClients,
					"proxy_fanout", snap.ProxyFanout,
					"proxy_drops", snap.ProxyDrops,
					"recv_count", snap.RecvCount,
					"recv_size", snap.RecvSize,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
