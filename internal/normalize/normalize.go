// Package normalize converts the loosely-shaped payloads emitted by the push
// transports into typed domain events.
//
// Backends disagree on envelope shape: some send a flat notification, some wrap it
// in {"type": ..., "data": ...}, some double-encode data as a JSON string with
// escaped quotes. Every variant is funneled through Normalize, which never fails;
// shapes it cannot classify come back as domain.KindUnrecognized.
package normalize

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"vn.io.arda/notifeed/internal/domain"
)

// Normalize classifies a raw push message. raw may be a string, []byte,
// json.RawMessage, an already decoded map, or any JSON-marshalable value.
func Normalize(raw any) domain.Event {
	obj, ok := toObject(raw)
	if !ok {
		return domain.UnrecognizedEvent()
	}
	return classify(obj)
}

// NormalizeBinary classifies a binary frame. JSON bodies are accepted as-is,
// anything else is decoded as msgpack.
func NormalizeBinary(b []byte) domain.Event {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '"') {
		return Normalize(trimmed)
	}

	var decoded map[string]any
	if err := msgpack.Unmarshal(b, &decoded); err != nil {
		return domain.UnrecognizedEvent()
	}
	return Normalize(decoded)
}

func classify(obj map[string]any) domain.Event {
	inner, hasInner := innerObject(obj)

	kind, explicit := discriminator(obj)
	if !explicit && hasInner {
		kind, explicit = discriminator(inner)
	}

	if explicit {
		switch kind {
		case domain.KindNotification:
			if hasInner && looksLikeNotification(inner) {
				return domain.NotificationEvent(DecodeNotification(inner))
			}
			if looksLikeNotification(obj) {
				return domain.NotificationEvent(DecodeNotification(obj))
			}
			return domain.UnrecognizedEvent()
		case domain.KindUnreadCount:
			if n, ok := countFrom(obj, inner); ok {
				return domain.UnreadCountEvent(n)
			}
			return domain.UnrecognizedEvent()
		case domain.KindRefresh:
			return domain.RefreshEvent()
		}
	}

	// No discriminator, or one we do not know: fall back to the payload shape.
	if hasInner && looksLikeNotification(inner) {
		return domain.NotificationEvent(DecodeNotification(inner))
	}
	if looksLikeNotification(obj) {
		return domain.NotificationEvent(DecodeNotification(obj))
	}
	return domain.UnrecognizedEvent()
}

var discriminatorKeys = []string{"type", "eventType", "event"}

// discriminator reports the event kind named by the object's type key.
// explicit is false when no key is present or its value is unknown.
func discriminator(obj map[string]any) (domain.EventKind, bool) {
	for _, key := range discriminatorKeys {
		v, ok := Lookup(obj, key)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if kind, ok := kindOf(s); ok {
			return kind, true
		}
	}
	return "", false
}

func kindOf(s string) (domain.EventKind, bool) {
	switch canonical(s) {
	case "notification", "newnotification", "notificationcreated", "notify":
		return domain.KindNotification, true
	case "unreadcount", "unread", "badge", "count":
		return domain.KindUnreadCount, true
	case "refresh", "reload", "sync", "invalidate":
		return domain.KindRefresh, true
	}
	return "", false
}

// innerObject returns the object held in the data field, parsing it when it is a
// (possibly double-encoded) JSON string.
func innerObject(obj map[string]any) (map[string]any, bool) {
	v, ok := Lookup(obj, "data")
	if !ok {
		return nil, false
	}

	switch d := v.(type) {
	case map[string]any:
		return d, true
	case string:
		if m, ok := parseObject(d); ok {
			return m, true
		}
		if m, ok := parseObject(unescapeQuotes(d)); ok {
			return m, true
		}
	}
	return nil, false
}

var notificationKeys = []string{"id", "title", "message", "link", "actorName", "actorAvatar"}

func looksLikeNotification(obj map[string]any) bool {
	for _, key := range notificationKeys {
		if _, ok := Lookup(obj, key); ok {
			return true
		}
	}
	return false
}

func toObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case string:
		return parseObject(v)
	case []byte:
		return parseObject(string(v))
	case json.RawMessage:
		return parseObject(string(v))
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	return parseObject(string(b))
}

// parseObject decodes s as a JSON object. A JSON string wrapping an object is
// unwrapped once.
func parseObject(s string) (map[string]any, bool) {
	v, ok := decodeJSON(s)
	if !ok {
		return nil, false
	}

	switch t := v.(type) {
	case map[string]any:
		return t, true
	case string:
		if inner, ok := decodeJSON(t); ok {
			m, ok := inner.(map[string]any)
			return m, ok
		}
	}
	return nil, false
}

func decodeJSON(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func unescapeQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `\"`, `"`)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return s
}
