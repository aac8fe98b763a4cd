// Package ccrf is the high-level façade over the Cloud Chaser command
// catalogue: it owns the subscription queues unsolicited frames feed, the
// cached address/cell derived from status, and exposes one method per
// catalogue command plus the iterator-shaped Recv/RecvMAC/Evnt.
package ccrf

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ccio/ccrf/internal/asyncq"
	"github.com/ccio/ccrf/internal/devspec"
	"github.com/ccio/ccrf/internal/link"
	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/proto"
	"github.com/ccio/ccrf/internal/proxy"
)

// RecvRecord is one received datagram, as delivered to Recv's iterator.
type RecvRecord = proto.RecvRecord

// MACRecvRecord is one received MAC-layer datagram.
type MACRecvRecord = proto.MACRecvRecord

// Event is one link/peer event, as delivered to Evnt's iterator.
type Event = proto.Event

// Device is a connection to one Cloud Chaser board, direct or proxied.
type Device struct {
	cfg      deviceConfig
	registry *proto.Registry
	invoker  proto.Invoker
	closer   func() error

	recvQ *asyncq.Queue[RecvRecord]
	macQ  *asyncq.Queue[MACRecvRecord]
	evntQ *asyncq.Queue[Event]

	mu     sync.Mutex
	status *proto.StatusReply
}

// Open resolves spec per the device-spec grammar (spec.md §6) and opens a
// direct serial link or a proxy client connection to it.
func Open(spec string, opts ...Option) (*Device, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	target, err := devspec.Parse(spec)
	if err != nil {
		return nil, err
	}

	registry := proto.Catalogue()
	d := &Device{
		cfg:      cfg,
		registry: registry,
		recvQ:    asyncq.NewBounded[RecvRecord](cfg.subscriptionN, asyncq.Overwrite),
		macQ:     asyncq.NewBounded[MACRecvRecord](cfg.subscriptionN, asyncq.Overwrite),
		evntQ:    asyncq.NewBounded[Event](cfg.subscriptionN, asyncq.Overwrite),
	}
	d.wireHandlers()

	switch target.Kind {
	case devspec.KindProxyClient:
		client, err := proxy.Dial(target.SocketPath, registry)
		if err != nil {
			return nil, err
		}
		d.invoker = client
		d.closer = client.Close
		return d, nil

	case devspec.KindProxyServer:
		path, err := devspec.Resolve(target, globTTYCandidates, d.probe(cfg))
		if err != nil {
			return nil, err
		}
		srv, err := proxy.NewServer(path, target.SocketPath, registry, linkOptions(cfg))
		if err != nil {
			return nil, err
		}
		go func() {
			if err := srv.Serve(context.Background()); err != nil {
				logging.L().Error("proxy_serve_error", "error", err)
			}
		}()
		d.invoker = srv.Link()
		d.closer = srv.Close
		return d, nil

	case devspec.KindPath, devspec.KindAny, devspec.KindSerial, devspec.KindCellAddr:
		path, err := devspec.Resolve(target, globTTYCandidates, d.probe(cfg))
		if err != nil {
			return nil, err
		}
		lk, err := link.Open(path, registry, linkOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		d.invoker = lk
		d.closer = lk.Close
		return d, nil

	default:
		return nil, fmt.Errorf("ccrf: unhandled device spec kind for %q", spec)
	}
}

func linkOptions(cfg deviceConfig) []link.Option {
	opts := []link.Option{link.WithReadTimeout(cfg.readTimeout)}
	if cfg.baud > 0 {
		opts = append(opts, link.WithBaud(cfg.baud))
	}
	return opts
}

// globTTYCandidates lists /dev/ttyACM* as enumeration candidates. Full USB
// vendor/product-id matching is the external tty-enumeration helper's job
// (spec.md §1 Non-goals); this is the workable glob-based default.
func globTTYCandidates() ([]string, error) {
	return filepath.Glob("/dev/ttyACM*")
}

// probe opens path briefly via the link engine, reads status, and closes.
func (d *Device) probe(cfg deviceConfig) devspec.Prober {
	return func(path string) (*proto.StatusReply, error) {
		lk, err := link.Open(path, proto.Catalogue(), link.WithReadTimeout(cfg.readTimeout))
		if err != nil {
			return nil, err
		}
		defer lk.Close()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.callTimeout)
		defer cancel()
		val, err := lk.Call(ctx, "status", cfg.callTimeout)
		if err != nil {
			return nil, err
		}
		st, _ := val.(proto.StatusReply)
		return &st, nil
	}
}

func (d *Device) wireHandlers() {
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("ccrf: wiring handler: %v", err))
		}
	}
	must(d.registry.SetHandler("recv", func(v any) {
		if rec, ok := v.(RecvRecord); ok {
			d.recvQ.Push(rec)
		}
	}))
	must(d.registry.SetHandler("mac_recv", func(v any) {
		if rec, ok := v.(MACRecvRecord); ok {
			d.macQ.Push(rec)
		}
	}))
	must(d.registry.SetHandler("evnt", func(v any) {
		if ev, ok := v.(Event); ok {
			d.evntQ.Push(ev)
		}
	}))
	must(d.registry.SetHandler("_echo_reply", func(v any) {
		logging.L().Info("echo_reply", "data", v)
	}))
}

// Close tears down the underlying link or proxy connection.
func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

func (d *Device) call(ctx context.Context, name string, timeout time.Duration, args ...any) (any, error) {
	if timeout <= 0 {
		timeout = d.cfg.callTimeout
	}
	return d.invoker.Call(ctx, name, timeout, args...)
}

func (d *Device) callMulti(ctx context.Context, name string, timeout time.Duration, args ...any) (func(func(any, error) bool), error) {
	if timeout <= 0 {
		timeout = d.cfg.callTimeout
	}
	return d.invoker.CallMulti(ctx, name, timeout, args...)
}

func (d *Device) clearStatus() {
	d.mu.Lock()
	d.status = nil
	d.mu.Unlock()
}
