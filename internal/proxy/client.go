package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ccio/ccrf/internal/asyncq"
	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/proto"
	"github.com/ccio/ccrf/internal/rendezvous"
)

// dispatchItem mirrors link's unexported type: a decoded-but-not-yet-routed
// unsolicited frame waiting for sequential handler invocation.
type dispatchItem struct {
	cmd  *proto.Command
	body []byte
}

// Client dials a proxy Server's unix socket and implements proto.Invoker,
// so a ccrf.Device is constructed identically whether backed by this or a
// direct link.Link. Only one call may be in flight per command name at a
// time, matching the serialization a single rendezvous.Point enforces for a
// direct link.
type Client struct {
	registry *proto.Registry
	conn     net.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan reply
	cmdMu   map[string]*sync.Mutex
	closed  bool

	dispatchQ *asyncq.Queue[dispatchItem]

	wg sync.WaitGroup
}

// Dial connects to a proxy server already listening on socketPath. registry
// must be the same catalogue (proto.Catalogue()) the caller will use to
// SetHandler unsolicited commands on, exactly as with a direct link.Link.
func Dial(socketPath string, registry *proto.Registry) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrDisconnected, socketPath, err)
	}
	c := &Client{
		registry:  registry,
		conn:      conn,
		pending:   make(map[string]chan reply),
		cmdMu:     make(map[string]*sync.Mutex),
		dispatchQ: asyncq.New[dispatchItem](),
	}
	c.wg.Add(2)
	go c.readLoop()
	go c.runDispatcher()
	return c, nil
}

func (c *Client) lockCmd(name string) *sync.Mutex {
	c.mu.Lock()
	m, ok := c.cmdMu[name]
	if !ok {
		m = &sync.Mutex{}
		c.cmdMu[name] = m
	}
	c.mu.Unlock()
	return m
}

func (c *Client) send(name string, body []byte) error {
	payload := encodeRequest(request{Name: name, Body: body})
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeEnvelope(c.conn, tagRequest, payload)
}

// roundTrip sends a request for cmd and waits for its matching reply.
// Fire-and-forget commands (RespCode == nil) return immediately after the
// write succeeds.
func (c *Client) roundTrip(ctx context.Context, cmd *proto.Command, timeout time.Duration, body []byte) (reply, error) {
	if cmd.RespCode == nil {
		return reply{}, c.send(cmd.Name, body)
	}

	m := c.lockCmd(cmd.Name)
	m.Lock()
	defer m.Unlock()

	ch := make(chan reply, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return reply{}, ErrDisconnected
	}
	c.pending[cmd.Name] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, cmd.Name)
		c.mu.Unlock()
	}()

	if err := c.send(cmd.Name, body); err != nil {
		return reply{}, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutCh = t.C
	}

	select {
	case rep, ok := <-ch:
		if !ok {
			return reply{}, ErrDisconnected
		}
		return rep, nil
	case <-timeoutCh:
		return reply{}, rendezvous.ErrTimeout
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

// Call implements proto.Invoker.
func (c *Client) Call(ctx context.Context, name string, timeout time.Duration, args ...any) (any, error) {
	cmd, ok := c.registry.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", proto.ErrUnknownName, name)
	}
	if cmd.ReqCode == nil {
		return nil, fmt.Errorf("%w: %s", proto.ErrNotCallable, name)
	}
	if cmd.Multi {
		return nil, fmt.Errorf("%w: %s", proto.ErrNotMulti, name)
	}
	body, err := cmd.Encode(args...)
	if err != nil {
		return nil, err
	}
	rep, err := c.roundTrip(ctx, cmd, timeout, body)
	if err != nil {
		return nil, err
	}
	if cmd.RespCode == nil {
		return nil, nil
	}
	if rep.Err != nil {
		return nil, &RemoteError{Kind: rep.Err.Kind, Message: rep.Err.Message}
	}
	if len(rep.Results) == 0 {
		return nil, nil
	}
	value, _, err := cmd.Decode(rep.Results[0])
	return value, err
}

// CallMulti implements proto.Invoker. The proxy server exhausts a
// multi-reply command fully before replying, so the returned sequence is
// backed by an already-complete result set rather than a live stream.
func (c *Client) CallMulti(ctx context.Context, name string, timeout time.Duration, args ...any) (func(func(any, error) bool), error) {
	cmd, ok := c.registry.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", proto.ErrUnknownName, name)
	}
	if cmd.ReqCode == nil {
		return nil, fmt.Errorf("%w: %s", proto.ErrNotCallable, name)
	}
	if !cmd.Multi {
		return nil, fmt.Errorf("%w: %s", proto.ErrIsMulti, name)
	}
	body, err := cmd.Encode(args...)
	if err != nil {
		return nil, err
	}
	rep, err := c.roundTrip(ctx, cmd, timeout, body)
	if err != nil {
		return nil, err
	}
	if rep.Err != nil {
		remote := &RemoteError{Kind: rep.Err.Kind, Message: rep.Err.Message}
		return func(yield func(any, error) bool) { yield(nil, remote) }, nil
	}
	return func(yield func(any, error) bool) {
		for _, raw := range rep.Results {
			v, _, err := cmd.Decode(raw)
			if !yield(v, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}, nil
}

func (c *Client) readLoop() {
	defer c.teardown()
	r := bufio.NewReader(c.conn)
	for {
		tag, payload, err := readEnvelope(r)
		if err != nil {
			return
		}
		switch tag {
		case tagReply:
			rep, err := decodeReply(payload)
			if err != nil {
				logging.L().Warn("proxy_client_reply_decode_error", "error", err)
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[rep.Name]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- rep:
				default:
				}
			}
		case tagBroadcast:
			bc, err := decodeBroadcast(payload)
			if err != nil {
				logging.L().Warn("proxy_client_broadcast_decode_error", "error", err)
				continue
			}
			resolved, ok := c.registry.Resolve(bc.Code)
			if !ok {
				continue
			}
			c.dispatchQ.Send(dispatchItem{cmd: resolved.Cmd, body: bc.Body})
		default:
			logging.L().Warn("proxy_client_unknown_tag", "tag", tag)
		}
	}
}

func (c *Client) runDispatcher() {
	defer c.wg.Done()
	for item := range c.dispatchQ.Recv(context.Background(), false, 0) {
		value, _, err := item.cmd.Decode(item.body)
		if err != nil {
			logging.L().Warn("proxy_client_dispatch_decode_error", "command", item.cmd.Name, "error", err)
			continue
		}
		if item.cmd.Handle != nil {
			item.cmd.Handle(value)
		}
	}
}

// teardown runs once, whether triggered by a read error/EOF or an explicit
// Close: it unblocks every pending caller with ErrDisconnected instead of
// the original implementation's process-exit-on-disconnect behaviour.
func (c *Client) teardown() {
	c.wg.Done()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]chan reply)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	c.dispatchQ.Close()
	_ = c.conn.Close()
}

// Close disconnects the client and unblocks any in-flight call.
func (c *Client) Close() error {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.mu.Unlock()
	if alreadyClosed {
		return nil
	}
	_ = c.conn.Close()
	c.wg.Wait()
	return nil
}
