// Package rendezvous implements the write-then-wait synchronization used by
// request/response commands: a caller writes a request frame and blocks
// until the matching response (or, for streaming commands, a sequence of
// responses terminated by a sentinel) arrives on the link's reader.
//
// Only one writer/waiter pair may be in flight per command at a time; Point
// serializes concurrent callers with a mutex so that responses are never
// delivered to the wrong caller. This mirrors the original WaitSync class,
// generalized with Go generics and range-over-func iterators in place of
// Python's generator-based write_wait_multi.
package rendezvous

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ccio/ccrf/internal/asyncq"
	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/metrics"
)

// ErrTimeout is returned when a write-then-wait call's deadline elapses (or
// its context is cancelled) before a response arrives.
var ErrTimeout = errors.New("rendezvous: timed out waiting for response")

type entry[T any] struct {
	val  T
	done bool
}

// Point is a single command's rendezvous point. The zero value is not
// usable; construct with New.
type Point[T any] struct {
	mu      sync.Mutex
	q       *asyncq.Queue[entry[T]]
	name    string
	waiting atomic.Bool
}

// New creates a rendezvous point for the named command.
func New[T any](name string) *Point[T] {
	return &Point[T]{q: asyncq.New[entry[T]](), name: name}
}

// Deliver makes a decoded response available to a blocked WriteWait or
// WriteWaitMulti caller. Called from the link reader when a frame
// matching this command's response code arrives. If no caller is currently
// waiting (e.g. the request already timed out and released the mutex), the
// reply is logged as unsolicited and discarded rather than queued for the
// next, unrelated caller.
func (p *Point[T]) Deliver(v T) {
	if !p.waiting.Load() {
		metrics.IncUnsolicited()
		logging.L().Warn("unsolicited_reply", "command", p.name)
		return
	}
	p.q.Send(entry[T]{val: v})
}

// Terminate signals the end of a multi-reply sequence (the "empty address"
// convention used by streaming commands such as trxn). Subject
// to the same waiting check as Deliver.
func (p *Point[T]) Terminate() {
	if !p.waiting.Load() {
		metrics.IncUnsolicited()
		logging.L().Warn("unsolicited_reply", "command", p.name)
		return
	}
	p.q.Send(entry[T]{done: true})
}

// dropStale discards anything already queued before a new wait begins. The
// only way an item can be sitting here is a reply that raced a prior call's
// timeout (delivered just before waiting flipped false but never consumed);
// treat it the same as any other unsolicited reply rather than silently
// handing it to this unrelated caller. Must be called with p.mu held.
func (p *Point[T]) dropStale() {
	if n := p.q.Drain(); n > 0 {
		metrics.IncUnsolicited()
		logging.L().Warn("unsolicited_reply", "command", p.name, "stale_queued", n)
	}
}

// WriteWait runs write (typically a frame write to the link), then blocks
// for exactly one decoded response. If write is nil, no frame is sent and
// the call simply waits for the next delivery (used when a caller wants to
// observe one occurrence of an otherwise-async event). timeout of zero
// waits indefinitely for ctx cancellation.
func (p *Point[T]) WriteWait(ctx context.Context, timeout time.Duration, write func() error) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dropStale()

	var zero T
	p.waiting.Store(true)
	defer p.waiting.Store(false)

	if write != nil {
		if err := write(); err != nil {
			return zero, err
		}
	}

	for e := range p.q.Recv(ctx, true, timeout) {
		return e.val, nil
	}
	return zero, ErrTimeout
}

// WriteWaitMulti runs write, then yields every decoded response until the
// link reader calls Terminate, the sequence times out, or ctx is
// cancelled. The mutex is held for the lifetime of the returned sequence,
// so only one multi-reply exchange for this command can be in flight.
func (p *Point[T]) WriteWaitMulti(ctx context.Context, timeout time.Duration, write func() error) func(func(T, error) bool) {
	return func(yield func(T, error) bool) {
		p.mu.Lock()
		defer p.mu.Unlock()

		p.dropStale()

		var zero T
		p.waiting.Store(true)
		defer p.waiting.Store(false)

		if write != nil {
			if err := write(); err != nil {
				yield(zero, err)
				return
			}
		}

		for e := range p.q.Recv(ctx, false, timeout) {
			if e.done {
				return
			}
			if !yield(e.val, nil) {
				return
			}
		}
	}
}
