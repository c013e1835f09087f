package domain

import (
	"errors"
	"time"
)

// ErrUnauthenticated is returned by backend calls rejected with HTTP 401.
// Callers treat it as an expected condition, never as a user-facing failure.
var ErrUnauthenticated = errors.New("unauthenticated")

// Notification is a single entry of the user's notification feed as delivered by
// the backend, either through a snapshot load or a push transport.
type Notification struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Message     string `json:"message,omitempty"`
	ActorName   string `json:"actorName,omitempty"`
	ActorAvatar string `json:"actorAvatar,omitempty"`
	Link        string `json:"link,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	Read        bool   `json:"read"`
}

// LiveNotification is the transient "just arrived" notification shown as a toast.
type LiveNotification struct {
	Notification Notification `json:"notification"`
	ShownAt      time.Time    `json:"shownAt"`
}

// Page is one page of the paged notification listing.
type Page struct {
	Content       []Notification `json:"content"`
	TotalPages    int            `json:"totalPages"`
	TotalElements int            `json:"totalElements"`
	Number        int            `json:"number"`
}
