package proxy

import (
	"sync"

	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/metrics"
)

// subscriber is one connected proxy client's broadcast outbox, adapted from
// the teacher's hub.Client: a buffered channel plus an idempotent close
// signal the writer goroutine selects on.
type subscriber struct {
	out       chan broadcast
	closed    chan struct{}
	closeOnce sync.Once
}

func newSubscriber(bufSize int) *subscriber {
	return &subscriber{out: make(chan broadcast, bufSize), closed: make(chan struct{})}
}

func (s *subscriber) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// subscriberTable is the guarded map of connected proxy clients fanout
// targets unsolicited frames to, generalized from the teacher's hub.Hub.
type subscriberTable struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func newSubscriberTable() *subscriberTable {
	return &subscriberTable{subs: make(map[*subscriber]struct{})}
}

func (t *subscriberTable) add(s *subscriber) {
	t.mu.Lock()
	t.subs[s] = struct{}{}
	n := len(t.subs)
	t.mu.Unlock()
	metrics.SetProxyClients(n)
}

func (t *subscriberTable) remove(s *subscriber) {
	t.mu.Lock()
	_, existed := t.subs[s]
	delete(t.subs, s)
	n := len(t.subs)
	t.mu.Unlock()
	if existed {
		select {
		case <-s.closed:
		default:
			s.Close()
		}
	}
	metrics.SetProxyClients(n)
}

func (t *subscriberTable) snapshot() []*subscriber {
	t.mu.RLock()
	defer t.mu.RUnlock()
	subs := make([]*subscriber, 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	return subs
}

// broadcast fans an unsolicited (code, body) frame to every connected
// client, dropping for any client whose outbox is full rather than
// blocking the link's reader goroutine on a slow client.
func (t *subscriberTable) broadcast(bc broadcast) {
	subs := t.snapshot()
	metrics.SetProxyBroadcastFanout(len(subs))
	for _, s := range subs {
		select {
		case s.out <- bc:
		default:
			metrics.IncProxyBroadcastDrop()
			logging.L().Warn("proxy_broadcast_drop", "code", bc.Code)
		}
	}
}
