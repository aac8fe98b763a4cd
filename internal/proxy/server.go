package proxy

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ccio/ccrf/internal/link"
	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/metrics"
	"github.com/ccio/ccrf/internal/proto"
)

const defaultCallTimeout = 5 * time.Second
const defaultSubBuf = 64

// ServerOption configures a Server at construction time, mirroring the
// functional-options shape used throughout this module (link.Option,
// ccrf.Option).
type ServerOption func(*Server)

// WithCallTimeout overrides the default per-request rendezvous timeout.
func WithCallTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithSubscriberBuffer overrides each client's broadcast outbox depth.
func WithSubscriberBuffer(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.subBuf = n
		}
	}
}

// WithLogger overrides the server's logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// clientConn is one connected proxy client: its socket, its broadcast
// subscription, and a write mutex shared by the reply path and the
// broadcast-fanout writer so the two never interleave bytes on the wire.
type clientConn struct {
	conn    net.Conn
	sub     *subscriber
	writeMu sync.Mutex
}

func (c *clientConn) writeLocked(tag byte, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeEnvelope(c.conn, tag, payload)
}

// Server owns a Cloud Chaser link exclusively and multiplexes it across
// many unix-socket clients, generalized from the teacher's server.Server
// TCP accept loop to net.Listen("unix", ...) with a request/reply/broadcast
// envelope in place of a raw CAN frame stream.
type Server struct {
	socketPath string
	link       *link.Link
	registry   *proto.Registry
	subs       *subscriberTable

	callTimeout time.Duration
	subBuf      int
	logger      *slog.Logger

	mu        sync.Mutex
	listener  net.Listener
	closed    bool
	readyOnce sync.Once
	readyCh   chan struct{}

	clientsMu sync.Mutex
	clients   map[*clientConn]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer opens ttyPath exclusively (via internal/link, with the registry
// already populated by proto.Catalogue) and returns a Server ready to
// Serve() on socketPath. linkOpts are forwarded to link.Open verbatim; the
// proxy's raw-frame tap is always added last so it cannot be overridden.
func NewServer(ttyPath, socketPath string, registry *proto.Registry, linkOpts []link.Option, opts ...ServerOption) (*Server, error) {
	s := &Server{
		socketPath:  socketPath,
		registry:    registry,
		subs:        newSubscriberTable(),
		callTimeout: defaultCallTimeout,
		subBuf:      defaultSubBuf,
		logger:      logging.L(),
		readyCh:     make(chan struct{}),
		clients:     make(map[*clientConn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	allOpts := append(append([]link.Option{}, linkOpts...), link.WithProxyTap(s.onUnsolicited))
	lk, err := link.Open(ttyPath, registry, allOpts...)
	if err != nil {
		return nil, err
	}
	s.link = lk
	return s, nil
}

// Link returns the underlying link, usable directly as a proto.Invoker by
// a local ccrf.Device on the same host as the proxy server.
func (s *Server) Link() *link.Link { return s.link }

func (s *Server) onUnsolicited(code uint8, body []byte) {
	s.subs.broadcast(broadcast{Code: code, Body: body})
}

// Ready closes once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Serve accepts clients on socketPath until ctx is cancelled. The socket
// path is unlinked first if stale, per the lifecycle spec.
func (s *Server) Serve(ctx context.Context) error {
	_ = os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		return wrap
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("proxy_listen", "socket", s.socketPath)

	go func() { <-runCtx.Done(); _ = ln.Close() }()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-runCtx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("%w: %v", ErrListen, err)
		}
		s.handleAccept(runCtx, conn)
	}
}

func (s *Server) handleAccept(ctx context.Context, conn net.Conn) {
	cc := &clientConn{conn: conn, sub: newSubscriber(s.subBuf)}
	s.subs.add(cc.sub)

	s.clientsMu.Lock()
	s.clients[cc] = struct{}{}
	s.clientsMu.Unlock()

	s.wg.Add(2)
	go s.runClientBroadcastWriter(ctx, cc)
	go s.runClientReader(ctx, cc)
}

func (s *Server) runClientBroadcastWriter(ctx context.Context, cc *clientConn) {
	defer s.wg.Done()
	for {
		select {
		case bc := <-cc.sub.out:
			if err := cc.writeLocked(tagBroadcast, encodeBroadcast(bc)); err != nil {
				s.disconnect(cc)
				return
			}
		case <-cc.sub.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) runClientReader(ctx context.Context, cc *clientConn) {
	defer s.wg.Done()
	defer s.disconnect(cc)

	r := bufio.NewReader(cc.conn)
	for {
		tag, payload, err := readEnvelope(r)
		if err != nil {
			return
		}
		if tag != tagRequest {
			s.logger.Warn("proxy_unexpected_tag", "tag", tag)
			continue
		}
		req, err := decodeRequest(payload)
		if err != nil {
			s.logger.Warn("proxy_request_decode_error", "error", err)
			continue
		}
		go s.handleRequest(ctx, cc, req)
	}
}

func (s *Server) disconnect(cc *clientConn) {
	s.clientsMu.Lock()
	_, existed := s.clients[cc]
	delete(s.clients, cc)
	s.clientsMu.Unlock()
	if !existed {
		return
	}
	s.subs.remove(cc.sub)
	_ = cc.conn.Close()
}

func (s *Server) handleRequest(ctx context.Context, cc *clientConn, req request) {
	cmd, ok := s.registry.ByName(req.Name)
	if !ok {
		s.writeReply(cc, reply{Name: req.Name, Err: remoteErrorOf(fmt.Errorf("%w: %s", ErrUnknownCommand, req.Name))})
		metrics.IncError(metrics.ErrInvalidArg)
		return
	}

	if cmd.Multi {
		seq, err := s.registry.CallRawMulti(ctx, s.link, req.Name, s.callTimeout, req.Body)
		if err != nil {
			s.writeReply(cc, reply{Name: req.Name, Err: remoteErrorOf(err)})
			return
		}
		var results [][]byte
		var callErr error
		for v, err := range seq {
			if err != nil {
				callErr = err
				break
			}
			results = append(results, v)
		}
		if callErr != nil {
			s.writeReply(cc, reply{Name: req.Name, Err: remoteErrorOf(callErr)})
			return
		}
		s.writeReply(cc, reply{Name: req.Name, Results: results})
		return
	}

	v, err := s.registry.CallRawOnce(ctx, s.link, req.Name, s.callTimeout, req.Body)
	if err != nil {
		s.writeReply(cc, reply{Name: req.Name, Err: remoteErrorOf(err)})
		return
	}
	var results [][]byte
	if v != nil {
		results = [][]byte{v}
	}
	s.writeReply(cc, reply{Name: req.Name, Results: results})
}

func (s *Server) writeReply(cc *clientConn, rep reply) {
	if err := cc.writeLocked(tagReply, encodeReply(rep)); err != nil {
		s.logger.Warn("proxy_reply_write_error", "error", err)
	}
}

// Close tears down the server: listener, then each client, then unlinks the
// socket path, then the underlying link, in that order per the lifecycle
// spec.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if ln != nil {
		_ = ln.Close()
	}

	s.clientsMu.Lock()
	for cc := range s.clients {
		_ = cc.conn.Close()
		s.subs.remove(cc.sub)
	}
	s.clients = make(map[*clientConn]struct{})
	s.clientsMu.Unlock()

	s.wg.Wait()
	_ = os.Remove(s.socketPath)

	if s.link != nil {
		return s.link.Close()
	}
	return nil
}
