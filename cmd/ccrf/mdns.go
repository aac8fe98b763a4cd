package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// mdnsServiceType advertises a running proxy daemon, not the RF device
// itself; the daemon's actual listener is a unix domain socket, which has
// no network port to advertise, so the registered port is a fixed
// placeholder and the real connection detail (socketPath) travels in the
// TXT record instead. This only helps operators on the same host discover
// that a daemon is running; it does not make the socket reachable from
// elsewhere on the LAN.
const mdnsServiceType = "_ccrf._tcp"
const mdnsPlaceholderPort = 1

// startMDNS registers the proxy daemon via mDNS and returns a cleanup
// function. Safe to call when disabled (no-op).
func startMDNS(ctx context.Context, cfg *appConfig, socketPath string) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	instance := cfg.mdnsName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("ccrf-%s", host)
	}
	meta := []string{
		"socket=" + socketPath,
		"version=" + version,
		"commit=" + commit,
	}
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", mdnsPlaceholderPort, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
