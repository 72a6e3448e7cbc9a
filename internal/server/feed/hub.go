// Package feed раздает события изменений контента подписчикам websocket-ленты.
package feed

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/sitekeeper/internal/models"
)

// DefaultBufferSize размер очереди событий одного подписчика
const DefaultBufferSize = 64

// Subscriber is one consumer of the change feed for a topic filter.
// Events() is closed when the subscriber is dropped or unsubscribed.
type Subscriber struct {
	events chan models.ChangeEvent
	ID     string
	Topic  string
	// dropped выставляется, если подписчик не успевал читать события
	dropped bool
}

// Events returns the channel of events for the subscriber
func (s *Subscriber) Events() <-chan models.ChangeEvent {
	return s.events
}

// Dropped reports whether the hub disconnected the subscriber as too slow.
// Valid after Events() is closed.
func (s *Subscriber) Dropped() bool {
	return s.dropped
}

// Hub fans committed change events out to subscribers by topic.
// Publish never blocks: a subscriber with a full queue is dropped and has to resync.
type Hub struct {
	subs       map[*Subscriber]struct{}
	logger     *slog.Logger
	bufferSize int
	mu         sync.Mutex
	closed     bool
}

// NewHub creates a new hub
func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:       make(map[*Subscriber]struct{}),
		logger:     logger,
		bufferSize: bufferSize,
	}
}

// Subscribe registers a subscriber for topic ("" or "*" for all topics).
// Returns nil if the hub is closed.
func (h *Hub) Subscribe(topic string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Topic:  topic,
		events: make(chan models.ChangeEvent, h.bufferSize),
	}
	h.subs[sub] = struct{}{}

	h.logger.Debug("Feed subscriber registered", "id", sub.ID, "topic", topic, "subscribers", len(h.subs))
	return sub
}

// Unsubscribe removes the subscriber. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		h.removeLocked(sub)
		h.logger.Debug("Feed subscriber removed", "id", sub.ID, "topic", sub.Topic)
	}
}

// Publish delivers ev to every subscriber whose filter matches its topic
func (h *Hub) Publish(ev models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if !models.MatchTopic(sub.Topic, ev.Topic) {
			continue
		}

		select {
		case sub.events <- ev.Clone():
		default:
			sub.dropped = true
			h.removeLocked(sub)
			h.logger.Warn("Dropping slow feed subscriber",
				"id", sub.ID,
				"topic", sub.Topic,
				"buffer", h.bufferSize,
			)
		}
	}
}

// Len returns the number of active subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		h.removeLocked(sub)
	}
}

func (h *Hub) removeLocked(sub *Subscriber) {
	delete(h.subs, sub)
	close(sub.events)
}
