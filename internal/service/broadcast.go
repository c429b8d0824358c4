package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/model"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

// subscriberBuffer is the per-viewer send queue depth. A viewer that cannot
// drain this many frames is treated as disconnected.
const subscriberBuffer = 16

// Subscriber is one live viewer's receive side
type Subscriber struct {
	ch chan []byte
}

// Events returns the channel of serialized event frames for this subscriber
func (s *Subscriber) Events() <-chan []byte {
	return s.ch
}

// Broadcaster fans serialized events out to all connected viewer sessions.
// Delivery is at-most-once and unbuffered beyond the per-subscriber queue: a
// viewer connected after an event fired never sees it.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	logger      *logger.Logger
	done        chan struct{}
	closeOnce   sync.Once
}

// NewBroadcaster creates a broadcaster and starts its heartbeat loop
func NewBroadcaster(heartbeatInterval time.Duration, log *logger.Logger) *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[*Subscriber]struct{}),
		logger:      log,
		done:        make(chan struct{}),
	}
	go b.heartbeatLoop(heartbeatInterval)
	return b
}

// Subscribe registers a new viewer session and queues the initial connected
// acknowledgment
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan []byte, subscriberBuffer)}

	frame, _ := json.Marshal(model.Event{Type: model.EventConnected})

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	sub.ch <- frame
	count := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Debug("Viewer subscribed", "subscribers", count)
	return sub
}

// Unsubscribe removes a viewer session; safe to call more than once
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub.ch)
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Debug("Viewer unsubscribed", "subscribers", count)
}

// Broadcast serializes the event once and pushes it to every subscriber. A
// subscriber whose queue is full is dropped on the spot, which keeps the
// registry self-healing without a separate health-check pass.
func (b *Broadcaster) Broadcast(event model.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to serialize broadcast event", "type", event.Type, "error", err)
		return
	}

	b.mu.Lock()
	for sub := range b.subscribers {
		select {
		case sub.ch <- frame:
		default:
			delete(b.subscribers, sub)
			close(sub.ch)
			b.logger.Warn("Dropped stalled viewer connection", "subscribers", len(b.subscribers))
		}
	}
	b.mu.Unlock()
}

// Len returns the number of connected viewer sessions
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close stops the heartbeat loop and disconnects every subscriber
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		for sub := range b.subscribers {
			delete(b.subscribers, sub)
			close(sub.ch)
		}
		b.mu.Unlock()
	})
}

func (b *Broadcaster) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case t := <-ticker.C:
			b.Broadcast(model.Event{
				Type: model.EventHeartbeat,
				Data: map[string]string{"timestamp": t.UTC().Format(time.RFC3339)},
			})
		}
	}
}
