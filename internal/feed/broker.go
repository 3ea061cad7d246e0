package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/agrihub-davao/chat-backend/internal/domain"
)

// Broker keeps the live subscriptions of this process and refreshes them
// when the Bus reports a change.
type Broker struct {
	bus  Bus
	load Loader
	now  func() time.Time

	// seq orders snapshot loads so a subscription never replaces a newer
	// snapshot with an older one.
	seq atomic.Uint64

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewBroker returns a broker that reads feeds with load and listens on bus.
func NewBroker(bus Bus, load Loader) *Broker {
	return &Broker{
		bus:  bus,
		load: load,
		now:  time.Now,
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Notify publishes a change of ev.Key. ev.Added may be nil when the new
// message is not known to the caller.
func (b *Broker) Notify(ctx context.Context, ev Event) error {
	return b.bus.Publish(ctx, ev)
}

// Run consumes bus events until ctx is done. It returns nil on a clean stop.
func (b *Broker) Run(ctx context.Context) error {
	events, err := b.bus.Listen(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrBusClosed
			}
			b.refresh(ctx, ev)
		}
	}
}

// Subscribe registers a subscription for key and delivers the current
// snapshot before returning. The subscription ends when ctx is done or
// Close is called.
func (b *Broker) Subscribe(ctx context.Context, key string) (*Subscription, error) {
	if key == "" {
		return nil, errors.New("feed: empty key")
	}
	s := newSubscription(key, b)

	b.mu.Lock()
	set, ok := b.subs[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[key] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()
	subscribersGauge.Inc()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	seq, snap := b.snapshot(ctx, key, nil)
	s.offer(seq, snap)
	return s, nil
}

// Subscribers returns the number of open subscriptions for key.
func (b *Broker) Subscribers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

func (b *Broker) refresh(ctx context.Context, ev Event) {
	b.mu.Lock()
	targets := lo.Keys(b.subs[ev.Key])
	b.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	seq, snap := b.snapshot(ctx, ev.Key, ev.Added)
	if snap.Err != nil {
		log.Warn().Err(snap.Err).Str("conversation_key", ev.Key).Msg("feed: load failed")
	}
	for _, s := range targets {
		s.offer(seq, snap)
	}
}

func (b *Broker) snapshot(ctx context.Context, key string, added *domain.Message) (uint64, Snapshot) {
	seq := b.seq.Add(1)
	msgs, err := b.load(ctx, key)
	snap := Snapshot{Key: key, Messages: msgs, Added: added, Err: err, At: b.now().UTC()}
	if err != nil {
		snap.Messages = nil
		snapshotsTotal.WithLabelValues("error").Inc()
	}
	return seq, snap
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[s.Key]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.Key)
	}
	subscribersGauge.Dec()
}
