package feed

import "sync"

// Subscription is one live view of a conversation feed.
type Subscription struct {
	Key string

	broker *Broker
	ch     chan Snapshot
	done   chan struct{}

	mu     sync.Mutex
	last   uint64
	closed bool
}

func newSubscription(key string, b *Broker) *Subscription {
	return &Subscription{
		Key:    key,
		broker: b,
		ch:     make(chan Snapshot, 1),
		done:   make(chan struct{}),
	}
}

// C returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close ends the subscription and unregisters it. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
	s.mu.Unlock()

	s.broker.remove(s)
}

// offer hands snap to the reader, replacing an unread snapshot. Snapshots
// older than the last one offered are discarded.
func (s *Subscription) offer(seq uint64, snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq < s.last {
		return false
	}
	s.last = seq

	// All sends happen under s.mu, so after draining there is room.
	select {
	case <-s.ch:
		snapshotsTotal.WithLabelValues("replaced").Inc()
	default:
	}
	s.ch <- snap
	if snap.Err == nil {
		snapshotsTotal.WithLabelValues("delivered").Inc()
	}
	return true
}
