// Package handlers renders arda domain events as notifications for the Kafka
// relay. Each file registers the events of one domain.
package handlers

import (
	"encoding/json"
	"time"

	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/kafka/registry"
	"vn.io.arda/notifeed/internal/store"
)

// Register binds h to one event type of topic in the shared registry.
func Register(topic, eventType string, h registry.EventHandler) {
	registry.Register(topic, eventType, h)
}

// RegisterDirect registers a handler for topics that don't use eventType routing.
func RegisterDirect(topic string, h registry.EventHandler) {
	registry.Register(topic, "", h)
}

var now = time.Now

// deliver builds a notification keyed by the source event, so a redelivered
// event replaces the earlier copy. These notifications exist only on this
// client; the backend creates its own from the same event.
func deliver(recipient, eventID, title, body, link string) *registry.Delivery {
	n := domain.Notification{
		Title:     title,
		Message:   body,
		Link:      link,
		CreatedAt: now().UTC().Format(time.RFC3339),
	}
	if eventID != "" {
		n.ID = store.LocalID("evt-" + eventID)
	}
	return &registry.Delivery{Recipient: recipient, Notification: n}
}

// decodeEvent reads the common arda envelope {eventType, eventId, tenantKey, payload}.
func decodeEvent[P any](data []byte) (string, P, bool) {
	var env struct {
		EventID string `json:"eventId"`
		Payload P      `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		var zero P
		return "", zero, false
	}
	return env.EventID, env.Payload, true
}
