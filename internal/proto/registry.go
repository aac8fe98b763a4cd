// Package proto implements the command registry and catalogue: the
// declarative mapping from symbolic command name to wire codes, encoders,
// decoders, handlers and multi-reply behaviour, and the rendezvous-backed
// call path a link uses to expose it.
package proto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ccio/ccrf/internal/rendezvous"
)

var (
	// ErrUnknownName is returned by Call/CallMulti for a name not registered.
	ErrUnknownName = errors.New("proto: unknown command name")
	// ErrUnknownCode is returned by Resolve for a response code no
	// registered command claims.
	ErrUnknownCode = errors.New("proto: unknown response code")
	// ErrNotCallable is returned by Call/CallMulti when the named command
	// has no request code (it is a pure receiver, fire-and-forget only from
	// the firmware's side).
	ErrNotCallable = errors.New("proto: command has no request code")
	// ErrNotMulti is returned by Call when the named command is registered
	// as multi-reply; use CallMulti instead.
	ErrNotMulti = errors.New("proto: command is multi-reply, use CallMulti")
	// ErrIsMulti is the converse of ErrNotMulti.
	ErrIsMulti = errors.New("proto: command is not multi-reply, use Call")
	// ErrDuplicateName is returned by Add when a name is already registered.
	ErrDuplicateName = errors.New("proto: duplicate command name")
	// ErrDuplicateCode is returned by Add when two commands claim the same
	// response code.
	ErrDuplicateCode = errors.New("proto: duplicate response code")
)

// Encoder packs command arguments into a wire body.
type Encoder func(args ...any) ([]byte, error)

// Decoder unpacks a wire body into a structured value. terminal is only
// meaningful for multi-reply commands: it reports whether this reply is the
// batch's end-of-sequence marker (e.g. trxn's empty-address reply), in
// which case value is not delivered to the caller.
type Decoder func(body []byte) (value any, terminal bool, err error)

// Handler is invoked by the link dispatcher for unsolicited frames (commands
// with a response code but no request code, or any command's async events).
type Handler func(value any)

// Command is the immutable descriptor for one named wire command.
type Command struct {
	Name string

	// ReqCode is the code written to the wire to issue this command. Nil
	// for purely-unsolicited commands (recv, mac_recv, evnt, and the
	// response-only "echo reply" entry).
	ReqCode *uint8

	// RespCode is the code the firmware replies with. Nil for
	// fire-and-forget commands (reboot, resp, led, rainbow).
	RespCode *uint8

	Encode Encoder
	Decode Decoder
	Handle Handler
	Multi  bool
}

func u8(v uint8) *uint8 { return &v }

// Writer is the subset of link.Link the registry needs to issue requests.
type Writer interface {
	Write(ctx context.Context, code uint8, body []byte) error
}

// Registry is the set of registered commands, keyed by both name and
// response code, with one rendezvous point per request/response command.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]*Command
	byRespCode map[uint8]*Command
	points     map[string]*rendezvous.Point[any]
	rawPoints  map[string]*rendezvous.Point[[]byte]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:     make(map[string]*Command),
		byRespCode: make(map[uint8]*Command),
		points:     make(map[string]*rendezvous.Point[any]),
		rawPoints:  make(map[string]*rendezvous.Point[[]byte]),
	}
}

// Add registers cmd. Per spec: (ReqCode == nil) requires RespCode != nil;
// a command with both set gets a rendezvous point; a command with RespCode
// set and ReqCode nil is a pure receiver; a command with RespCode nil is
// fire-and-forget.
func (r *Registry) Add(cmd Command) error {
	if cmd.Name == "" {
		return errors.New("proto: command name must not be empty")
	}
	if cmd.ReqCode == nil && cmd.RespCode == nil {
		return fmt.Errorf("proto: %s: must set at least one of ReqCode/RespCode", cmd.Name)
	}
	if cmd.Encode == nil {
		cmd.Encode = func(args ...any) ([]byte, error) { return nil, nil }
	}
	if cmd.Decode == nil {
		cmd.Decode = func(body []byte) (any, bool, error) { return body, false, nil }
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[cmd.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, cmd.Name)
	}
	if cmd.RespCode != nil {
		if _, exists := r.byRespCode[*cmd.RespCode]; exists {
			return fmt.Errorf("%w: %d", ErrDuplicateCode, *cmd.RespCode)
		}
	}

	stored := cmd
	r.byName[cmd.Name] = &stored
	if cmd.RespCode != nil {
		r.byRespCode[*cmd.RespCode] = &stored
	}
	if cmd.ReqCode != nil && cmd.RespCode != nil {
		r.points[cmd.Name] = rendezvous.New[any](cmd.Name)
		r.rawPoints[cmd.Name] = rendezvous.New[[]byte](cmd.Name)
	}
	return nil
}

// Resolved is what the link's reader needs to route one decoded frame: the
// command descriptor, and the rendezvous point to deliver to if this is a
// request/response command (nil otherwise, meaning route to the dispatch
// queue for handler invocation).
type Resolved struct {
	Cmd   *Command
	Point *rendezvous.Point[any]
}

// Resolve looks up the command claiming respCode.
func (r *Registry) Resolve(respCode uint8) (Resolved, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byRespCode[respCode]
	if !ok {
		return Resolved{}, false
	}
	pt := r.points[cmd.Name]
	return Resolved{Cmd: cmd, Point: pt}, true
}

// ByName looks up a command descriptor by name (used by the proxy server to
// validate and dispatch client requests).
func (r *Registry) ByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

// SetHandler rebinds the handler for an already-registered command. The
// catalogue registers recv/mac_recv/evnt/_echo_reply with a no-op handler;
// the façade calls SetHandler once at construction time to wire them to its
// subscription queues. Must be called before the link starts dispatching.
func (r *Registry) SetHandler(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	cmd.Handle = h
	return nil
}

// Call issues a single-reply (or fire-and-forget) command by name. For
// fire-and-forget commands (RespCode == nil) it writes and returns
// (nil, nil) without waiting. timeout of zero waits indefinitely.
func (r *Registry) Call(ctx context.Context, w Writer, name string, timeout time.Duration, args ...any) (any, error) {
	cmd, ok := r.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	if cmd.ReqCode == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, name)
	}
	if cmd.Multi {
		return nil, fmt.Errorf("%w: %s", ErrNotMulti, name)
	}
	body, err := cmd.Encode(args...)
	if err != nil {
		return nil, err
	}

	if cmd.RespCode == nil {
		return nil, w.Write(ctx, *cmd.ReqCode, body)
	}

	r.mu.RLock()
	pt := r.points[name]
	r.mu.RUnlock()

	return pt.WriteWait(ctx, timeout, func() error {
		return w.Write(ctx, *cmd.ReqCode, body)
	})
}

// CallMulti issues a multi-reply command by name, returning a lazy
// sequence of (value, error) pairs terminated by the command's end-of-batch
// marker, a timeout, or ctx cancellation.
func (r *Registry) CallMulti(ctx context.Context, w Writer, name string, timeout time.Duration, args ...any) (func(func(any, error) bool), error) {
	cmd, ok := r.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	if cmd.ReqCode == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, name)
	}
	if !cmd.Multi {
		return nil, fmt.Errorf("%w: %s", ErrIsMulti, name)
	}
	body, err := cmd.Encode(args...)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	pt := r.points[name]
	r.mu.RUnlock()

	return pt.WriteWaitMulti(ctx, timeout, func() error {
		return w.Write(ctx, *cmd.ReqCode, body)
	}), nil
}

// DeliverRaw is called by a link's frame tap for every frame the reader
// decodes, whether or not its code is registered. It re-delivers the frame's raw, still wire-encoded body
// to the command's raw rendezvous point (used by the proxy server, which
// forwards replies to its clients without re-encoding them) and reports
// whether the code belonged to a request/response command at all; the
// caller treats a false return as an unsolicited frame to broadcast
// instead. Decoding here is only to recover the terminal flag for
// multi-reply sequences; the decoded value itself is discarded.
func (r *Registry) DeliverRaw(code uint8, body []byte) bool {
	r.mu.RLock()
	cmd, ok := r.byRespCode[code]
	var pt *rendezvous.Point[[]byte]
	if ok {
		pt = r.rawPoints[cmd.Name]
	}
	r.mu.RUnlock()
	if !ok || pt == nil {
		return false
	}
	_, terminal, err := cmd.Decode(body)
	if err != nil {
		return true
	}
	if terminal {
		pt.Terminate()
	} else {
		pt.Deliver(body)
	}
	return true
}

// CallRawOnce issues a single-reply request/response command using a
// caller-supplied, already wire-encoded body (bypassing cmd.Encode) and
// returns the raw, still wire-encoded reply body (bypassing cmd.Decode).
// Used by the proxy server, whose clients encode the request locally
// before it ever reaches the server.
func (r *Registry) CallRawOnce(ctx context.Context, w Writer, name string, timeout time.Duration, body []byte) ([]byte, error) {
	cmd, ok := r.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	if cmd.ReqCode == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, name)
	}
	if cmd.Multi {
		return nil, fmt.Errorf("%w: %s", ErrNotMulti, name)
	}
	if cmd.RespCode == nil {
		return nil, w.Write(ctx, *cmd.ReqCode, body)
	}

	r.mu.RLock()
	pt := r.rawPoints[name]
	r.mu.RUnlock()

	return pt.WriteWait(ctx, timeout, func() error {
		return w.Write(ctx, *cmd.ReqCode, body)
	})
}

// CallRawMulti is CallRawOnce's multi-reply counterpart: it yields every
// raw reply body in the sequence, in wire-encoded form, terminated the same
// way CallMulti's decoded sequence is.
func (r *Registry) CallRawMulti(ctx context.Context, w Writer, name string, timeout time.Duration, body []byte) (func(func([]byte, error) bool), error) {
	cmd, ok := r.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	if cmd.ReqCode == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, name)
	}
	if !cmd.Multi {
		return nil, fmt.Errorf("%w: %s", ErrIsMulti, name)
	}

	r.mu.RLock()
	pt := r.rawPoints[name]
	r.mu.RUnlock()

	return pt.WriteWaitMulti(ctx, timeout, func() error {
		return w.Write(ctx, *cmd.ReqCode, body)
	}), nil
}
