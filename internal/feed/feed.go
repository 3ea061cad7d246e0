// Package feed delivers live conversation feeds. A subscriber to a
// conversation key receives a Snapshot of the newest messages immediately
// and again after every change to that key.
//
// Changes travel as Events over a Bus. The in-process LocalBus is enough for
// a single server; RedisBus fans events out to every instance that shares
// the Redis channel. Each Broker loads the feed once per event and hands the
// result to all local subscribers of the key.
//
// Delivery is latest-wins: a subscription buffers at most one Snapshot, and
// a newer snapshot replaces an unread older one. Since every snapshot holds
// the complete window, a slow reader skips intermediate states but never
// ends up with a stale view.
package feed

import (
	"context"
	"time"

	"github.com/agrihub-davao/chat-backend/internal/domain"
)

// Snapshot is the ordered (newest first) message window of a conversation
// at one point in time.
type Snapshot struct {
	Key      string           `json:"key"`
	Messages []domain.Message `json:"messages"`
	// Added is the message whose arrival produced this snapshot, when known.
	Added *domain.Message `json:"added,omitempty"`
	// Err is set when the feed could not be loaded; Messages is then empty.
	Err error     `json:"-"`
	At  time.Time `json:"at"`
}

// Event announces that the feed of Key changed.
type Event struct {
	Key   string          `json:"key"`
	Added *domain.Message `json:"added,omitempty"`
}

// Loader reads the current message window of a conversation, newest first.
type Loader func(ctx context.Context, key string) ([]domain.Message, error)

// Bus carries Events between the writers and every Broker.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Listen returns a channel of events that is closed when ctx is done
	// or the bus shuts down.
	Listen(ctx context.Context) (<-chan Event, error)
	Close() error
}
