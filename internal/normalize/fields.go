package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"vn.io.arda/notifeed/internal/domain"
)

// canonical folds a key or type value so that "unread_count", "unreadCount" and
// "Unread-Count" compare equal.
func canonical(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case '_', '-', '.', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Lookup finds key in obj ignoring case and '_'/'-' separators. Exact matches win.
func Lookup(obj map[string]any, key string) (any, bool) {
	if obj == nil {
		return nil, false
	}
	if v, ok := obj[key]; ok && v != nil {
		return v, true
	}

	want := canonical(key)
	for k, v := range obj {
		if v != nil && canonical(k) == want {
			return v, true
		}
	}
	return nil, false
}

func lookupAny(obj map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := Lookup(obj, key); ok {
			return v, true
		}
	}
	return nil, false
}

// DecodeNotification extracts a notification from a loosely-keyed object.
// Missing fields stay empty.
func DecodeNotification(obj map[string]any) domain.Notification {
	var n domain.Notification

	if v, ok := Lookup(obj, "id"); ok {
		n.ID = stringOf(v)
	}
	if v, ok := Lookup(obj, "title"); ok {
		n.Title = stringOf(v)
	}
	if v, ok := lookupAny(obj, "message", "body", "content"); ok {
		n.Message = stringOf(v)
	}
	if v, ok := lookupAny(obj, "actorName", "senderName"); ok {
		n.ActorName = stringOf(v)
	}
	if v, ok := lookupAny(obj, "actorAvatar", "avatar"); ok {
		n.ActorAvatar = stringOf(v)
	}
	if v, ok := lookupAny(obj, "link", "url"); ok {
		n.Link = stringOf(v)
	}
	if v, ok := lookupAny(obj, "createdAt", "timestamp"); ok {
		n.CreatedAt = timestampOf(v)
	}
	if v, ok := lookupAny(obj, "read", "isRead"); ok {
		n.Read = boolOf(v)
	}
	return n
}

// CountValue interprets v as a non-fractional count. Numeric strings are accepted.
func CountValue(v any) (int, bool) {
	f, ok := numberOf(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

var countKeys = []string{"count", "unreadCount", "unread", "value"}

func countFrom(obj, inner map[string]any) (int, bool) {
	for _, key := range countKeys {
		if v, ok := Lookup(obj, key); ok {
			if n, ok := CountValue(v); ok {
				return n, true
			}
		}
	}
	if v, ok := Lookup(obj, "data"); ok {
		if n, ok := CountValue(v); ok {
			return n, true
		}
	}
	for _, key := range countKeys {
		if v, ok := Lookup(inner, key); ok {
			if n, ok := CountValue(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func numberOf(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, _ := numberOf(t)
		return strconv.FormatFloat(f, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func boolOf(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	}
	if f, ok := numberOf(v); ok {
		return f != 0
	}
	return false
}

// timestampOf keeps string timestamps verbatim and renders epoch numbers as RFC 3339.
// Values below 1e12 are taken as seconds, the rest as milliseconds.
func timestampOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	f, ok := numberOf(v)
	if !ok {
		return ""
	}
	var t time.Time
	if f < 1e12 {
		t = time.Unix(int64(f), 0)
	} else {
		t = time.UnixMilli(int64(f))
	}
	return t.UTC().Format(time.RFC3339)
}
