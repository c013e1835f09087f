package domain

// EventKind classifies a normalized push message.
type EventKind string

const (
	KindNotification EventKind = "notification"
	KindUnreadCount  EventKind = "unread-count"
	KindRefresh      EventKind = "refresh"
	KindUnrecognized EventKind = "unrecognized"
)

// Event is the typed, unambiguous form of a raw push message.
// Notification is set only for KindNotification, Count only for KindUnreadCount.
type Event struct {
	Kind         EventKind     `json:"kind"`
	Notification *Notification `json:"data,omitempty"`
	Count        int           `json:"count,omitempty"`
}

func NotificationEvent(n Notification) Event {
	return Event{Kind: KindNotification, Notification: &n}
}

func UnreadCountEvent(count int) Event {
	return Event{Kind: KindUnreadCount, Count: count}
}

func RefreshEvent() Event {
	return Event{Kind: KindRefresh}
}

func UnrecognizedEvent() Event {
	return Event{Kind: KindUnrecognized}
}

// ChangeType names what part of the consumer-visible state changed.
type ChangeType string

const (
	ChangeNotifications ChangeType = "notifications"
	ChangeUnreadCount   ChangeType = "unread-count"
	ChangeLive          ChangeType = "live"
	ChangeCleared       ChangeType = "cleared"
	ChangeConnection    ChangeType = "connection"
)

// Change is broadcast to consumer surfaces (header bell, notification page, toast)
// whenever the store or the connection state moves.
type Change struct {
	Type         ChangeType        `json:"type"`
	UnreadCount  int               `json:"unreadCount"`
	Notification *Notification     `json:"notification,omitempty"`
	Live         *LiveNotification `json:"live,omitempty"`
	Connection   string            `json:"connection,omitempty"`
}
