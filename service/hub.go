package service

import (
	"artemis/models"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Subscription is one subscriber's event stream. Events are buffered per
// subscriber; when the buffer is full the oldest event is dropped and the
// subscription is marked lagged. That may include the initial snapshot, so
// a lagged subscriber needs a fresh one (see Pipeline.Resync) before its
// deltas mean anything again.
type Subscription struct {
	ID string

	hub     *Hub
	events  chan models.Event
	dropped atomic.Uint64
	lagged  atomic.Bool
	once    sync.Once
}

// Events is closed when the subscription is released.
func (s *Subscription) Events() <-chan models.Event {
	return s.events
}

// Dropped counts events discarded because the subscriber fell behind.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Lagged reports whether events were dropped since the last resync.
func (s *Subscription) Lagged() bool {
	return s.lagged.Load()
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// Hub fans events out to subscribers. Publish never blocks on a slow or
// dead subscriber.
type Hub struct {
	subscribers map[string]*Subscription
	bufferSize  int
	mu          sync.RWMutex
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Hub{
		subscribers: make(map[string]*Subscription),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber whose stream starts with the given
// events, followed by everything published afterwards.
func (h *Hub) Subscribe(initial ...models.Event) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		hub:    h,
		events: make(chan models.Event, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, event := range initial {
		deliver(sub, event)
	}
	h.subscribers[sub.ID] = sub
	log.WithField("subscriber", sub.ID).Infof("Subscriber connected (total: %d)", len(h.subscribers))
	return sub
}

// Unsubscribe removes a subscriber and closes its stream. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.ID]; !ok {
		return
	}
	delete(h.subscribers, sub.ID)
	sub.once.Do(func() { close(sub.events) })
	log.WithField("subscriber", sub.ID).Infof("Subscriber disconnected (total: %d)", len(h.subscribers))
}

// Publish delivers an event to every live subscriber.
func (h *Hub) Publish(event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		deliver(sub, event)
	}
	log.WithFields(log.Fields{
		"event":    event.Type,
		"deviceId": event.DeviceID,
	}).Debugf("📡 Published to %d subscribers", len(h.subscribers))
}

// Resync queues a replacement snapshot for one subscriber and clears its
// lagged mark. It reports false if the subscriber is gone.
func (h *Hub) Resync(sub *Subscription, snapshot models.Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.subscribers[sub.ID]; !ok {
		return false
	}
	deliver(sub, snapshot)
	sub.lagged.Store(false)
	log.WithFields(log.Fields{
		"subscriber": sub.ID,
		"dropped":    sub.Dropped(),
	}).Info("Subscriber resynced with a fresh snapshot")
	return true
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close releases every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		sub.once.Do(func() { close(sub.events) })
	}
}

// deliver must be called with h.mu held (read or write) so the channel
// cannot be closed underneath it.
func deliver(sub *Subscription, event models.Event) {
	select {
	case sub.events <- event:
		return
	default:
	}

	// Channel full - drop oldest and try again (backpressure)
	select {
	case <-sub.events:
		sub.dropped.Add(1)
		sub.lagged.Store(true)
	default:
	}
	select {
	case sub.events <- event:
	default:
		sub.dropped.Add(1)
		sub.lagged.Store(true)
		log.WithField("subscriber", sub.ID).Warn("⚠️ Subscriber channel full, skipping event")
	}
}
