// Package registry provides a lightweight handler registry that turns arda
// domain events into notifications for the Kafka relay. Each domain handler
// registers itself via init(), so the consumer needs no change when a new
// event is supported.
package registry

import (
	"encoding/json"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/domain"
)

// Delivery is a domain event rendered as a notification.
type Delivery struct {
	// Recipient is the subject the notification is addressed to; "" reaches everyone.
	Recipient    string
	Notification domain.Notification
}

// EventHandler maps raw Kafka message bytes to a Delivery.
// Returning nil means "skip this event" (no notification to show).
type EventHandler func(data []byte) *Delivery

var (
	mu       sync.RWMutex
	handlers = map[string]EventHandler{}
	topics   = mapset.NewSet[string]()
)

// Register binds a handler to a {topic}:{eventType} key. An empty eventType
// handles every message of the topic.
// Should be called from each domain handler's init() function.
// Panics on duplicate registration to catch config mistakes early.
func Register(topic, eventType string, h EventHandler) {
	mu.Lock()
	defer mu.Unlock()

	key := topic + ":" + eventType
	if _, exists := handlers[key]; exists {
		panic("registry: duplicate handler registered for key: " + key)
	}
	handlers[key] = h
	topics.Add(topic)
}

// Handles reports whether any handler is registered for topic.
func Handles(topic string) bool {
	return topics.Contains(topic)
}

// Topics lists the topics with registered handlers.
func Topics() []string {
	return topics.ToSlice()
}

// Dispatch looks up and calls the handler for the given topic + eventType.
// The eventType is extracted from the "eventType" JSON field in data; topics
// registered without an event type are dispatched as a whole.
// Returns nil if no handler found or data cannot be parsed.
func Dispatch(topic string, data []byte) *Delivery {
	// Extract eventType without full parse
	var probe struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		log.Warn().Str("topic", topic).Err(err).Msg("registry: failed to probe eventType")
		return nil
	}

	mu.RLock()
	h, ok := handlers[topic+":"+probe.EventType]
	if !ok {
		h, ok = handlers[topic+":"]
	}
	mu.RUnlock()

	if !ok {
		log.Debug().Str("topic", topic).Str("event", probe.EventType).Msg("registry: no handler registered")
		return nil
	}
	return h(data)
}
