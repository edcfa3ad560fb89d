// Package notify broadcasts lifecycle events to interested listeners on a
// best-effort basis. Delivery is never acknowledged, never replayed, and
// never relied upon for correctness by the publishing side.
package notify

import (
	"fmt"
	"sync"

	"github.com/simlab/simnet/internal/model"
)

// TopicWrapperState is the reserved topic for wrapper lifecycle transitions.
const TopicWrapperState = "wrapper-state-change"

// subscriberBufferSize is the channel buffer for each subscriber. Events are
// dropped for a subscriber that falls this far behind.
const subscriberBufferSize = 64

// Event is a published message: a topic plus a free-form payload map.
type Event struct {
	Topic   string
	Payload map[string]any
}

type subscriber struct {
	topic string // "" subscribes to every topic
	ch    chan Event
}

// Broker fans published events out to subscribers. It is safe for
// concurrent use.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

// NewBroker creates a broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[int]*subscriber),
	}
}

// Subscribe returns a channel receiving events for the given topic and an
// unsubscribe function. An empty topic receives every event.
func (b *Broker) Subscribe(topic string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{topic: topic, ch: make(chan Event, subscriberBufferSize)}
	b.subs[id] = sub

	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish sends an event to all matching subscribers. Events are dropped for
// subscribers whose buffers are full so publishing never blocks.
func (b *Broker) Publish(topic string, payload map[string]any) error {
	if topic == "" {
		return fmt.Errorf("%w: won't publish without one", model.ErrInvalidTopic)
	}

	ev := Event{Topic: topic, Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.topic != "" && sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Drop for slow subscribers; the channel is best-effort.
		}
	}
	return nil
}
