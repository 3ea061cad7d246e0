package feed

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("feed bus closed")

// LocalBus is an in-process Bus with a single listener.
type LocalBus struct {
	ch        chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

// NewLocalBus returns a LocalBus buffering up to size events.
func NewLocalBus(size int) *LocalBus {
	if size <= 0 {
		size = 256
	}
	return &LocalBus{ch: make(chan Event, size), closed: make(chan struct{})}
}

// Publish enqueues ev, waiting for buffer space until ctx is done.
func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}
	select {
	case b.ch <- ev:
		return nil
	case <-b.closed:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen forwards queued events until ctx is done or the bus is closed.
func (b *LocalBus) Listen(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case ev := <-b.ch:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-b.closed:
					return
				}
			}
		}
	}()
	return out, nil
}

// Close stops all listeners. It is safe to call more than once.
func (b *LocalBus) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}
