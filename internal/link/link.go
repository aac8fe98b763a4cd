// Package link implements the link engine: it owns one serial connection to
// a Cloud Chaser board and runs the reader/writer/dispatcher goroutine triad
// that turns raw bytes into decoded frames routed to rendezvous points or
// handlers, and decoded requests into framed bytes on the wire.
package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ccio/ccrf/internal/asyncq"
	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/metrics"
	"github.com/ccio/ccrf/internal/proto"
)

// writeQueueCapacity is the bounded write queue's minimum slot count.
const writeQueueCapacity = 1024

// reopenSettle is how long Reopen sleeps between close and open, allowing
// the board's USB enumeration to settle.
const reopenSettle = 1500 * time.Millisecond

// writeItem is either a framed (code, body) request or a raw byte sequence
// injected directly onto the wire (used by Flush's bare resync write).
type writeItem struct {
	code uint8
	body []byte
	raw  []byte
}

// dispatchItem is a decoded frame waiting for sequential handler invocation.
type dispatchItem struct {
	cmd  *proto.Command
	body []byte
}

// Option configures a Link at construction time.
type Option func(*Link)

// WithBaud overrides the default 115200 baud rate.
func WithBaud(baud int) Option { return func(l *Link) { l.baud = baud } }

// WithReadTimeout overrides the reader's per-read timeout (default 200ms).
// Reopen passes the closed link's timeout on to the new link.
func WithReadTimeout(d time.Duration) Option { return func(l *Link) { l.readTimeout = d } }

// WithPort injects a Port directly, bypassing tarm/serial and the tty lock;
// used by tests.
func WithPort(p Port) Option {
	return func(l *Link) {
		l.port = p
		l.skipOpen = true
		l.skipLock = true
	}
}

// WithoutLock disables the advisory tty flock, used by tests that open a
// real file but don't want exclusivity semantics.
func WithoutLock() Option { return func(l *Link) { l.skipLock = true } }

// WithProxyTap enables raw-frame forwarding: every resolved request/response
// frame is additionally delivered to the registry's raw rendezvous points
// (so proto.Registry.CallRawOnce/CallRawMulti callers see it), and every
// decoded frame that is NOT a request/response reply (an unsolicited
// command such as recv/mac_recv/evnt, or a code no command claims) is
// handed to tap as well as
// going through the normal dispatch queue. Used exclusively by the proxy
// server, which needs the still-encoded wire bytes to forward to its
// clients rather than a decoded value.
func WithProxyTap(tap func(code uint8, body []byte)) Option {
	return func(l *Link) {
		l.rawForward = true
		l.unsolicitedTap = tap
	}
}

// Link owns one serial connection and its three worker goroutines.
type Link struct {
	path        string
	baud        int
	readTimeout time.Duration
	registry    *proto.Registry

	skipOpen bool
	skipLock bool

	rawForward     bool
	unsolicitedTap func(code uint8, body []byte)

	mu     sync.Mutex
	port   Port
	lock   *ttyLock
	closed bool

	writeQ    *asyncq.Queue[writeItem]
	dispatchQ *asyncq.Queue[dispatchItem]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open opens path at the configured baud rate, takes an exclusive advisory
// lock on it, and starts the reader/writer/dispatcher goroutines. registry
// must already hold every command this link will route.
func Open(path string, registry *proto.Registry, opts ...Option) (*Link, error) {
	l := &Link{
		path:        path,
		baud:        DefaultBaud,
		readTimeout: 200 * time.Millisecond,
		registry:    registry,
		writeQ:      asyncq.NewBounded[writeItem](writeQueueCapacity, asyncq.Block),
		dispatchQ:   asyncq.New[dispatchItem](),
	}
	for _, opt := range opts {
		opt(l)
	}

	if !l.skipLock {
		lk, err := lockTTY(path)
		if err != nil {
			return nil, err
		}
		l.lock = lk
	}

	if !l.skipOpen {
		port, err := openPort(path, l.baud, l.readTimeout)
		if err != nil {
			if l.lock != nil {
				_ = l.lock.Unlock()
			}
			return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
		}
		l.port = port
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	l.wg.Add(3)
	go l.runDispatcher(ctx)
	go l.runWriter(ctx)
	go l.runReader(ctx)

	logging.L().Info("link_open", "path", path, "baud", l.baud)
	return l, nil
}

// Write implements proto.Writer: it frames (code, body) and enqueues it on
// the bounded write queue, blocking until there is room or ctx is done.
func (l *Link) Write(ctx context.Context, code uint8, body []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return l.writeQ.SendBounded(ctx, writeItem{code: code, body: body})
}

// Call issues a single-reply (or fire-and-forget) command through this
// link's registry.
func (l *Link) Call(ctx context.Context, name string, timeout time.Duration, args ...any) (any, error) {
	return l.registry.Call(ctx, l, name, timeout, args...)
}

// CallMulti issues a multi-reply command through this link's registry.
func (l *Link) CallMulti(ctx context.Context, name string, timeout time.Duration, args ...any) (func(func(any, error) bool), error) {
	return l.registry.CallMulti(ctx, l, name, timeout, args...)
}

// Flush injects a bare resync write (two 0x00 delimiters) directly onto the
// wire, bypassing framing, to nudge a confused firmware parser back into
// sync with the host.
func (l *Link) Flush(ctx context.Context) error {
	return l.writeQ.SendBounded(ctx, writeItem{raw: []byte{0x00, 0x00}})
}

// Close idempotently tears down the link: dispatcher, writer, reader, then
// the tty itself, in that order, then releases the advisory lock.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	port := l.port
	l.mu.Unlock()

	l.cancel()
	l.dispatchQ.Close()
	l.writeQ.Close()
	l.wg.Wait()

	var err error
	if port != nil {
		err = port.Close()
	}
	if l.lock != nil {
		if uerr := l.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}
	logging.L().Info("link_close", "path", l.path)
	if err != nil {
		metrics.IncError(mapErrToMetric(fmt.Errorf("%w: %v", ErrIO, err)))
		return fmt.Errorf("%w: close %s: %v", ErrIO, l.path, err)
	}
	return nil
}

// Reopen closes the link, sleeps to let the board's USB enumeration settle,
// then opens it again with the same path/baud. Returns a fresh *Link; the
// receiver is left closed.
func (l *Link) Reopen() (*Link, error) {
	path, baud, readTimeout, registry := l.path, l.baud, l.readTimeout, l.registry
	if err := l.Close(); err != nil {
		logging.L().Warn("link_reopen_close_error", "path", path, "error", err)
	}
	time.Sleep(reopenSettle)
	return Open(path, registry, WithBaud(baud), WithReadTimeout(readTimeout))
}
