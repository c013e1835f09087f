package domain

import "context"

// Backend defines the port for the remote notification REST API.
// The implementation lives in internal/api.
type Backend interface {
	// List fetches the newest notifications, at most limit of them.
	List(ctx context.Context, limit int) ([]Notification, error)

	// ListPage fetches one page of the full listing (page is zero-based).
	ListPage(ctx context.Context, page, size int) (*Page, error)

	// CountUnread returns the server-side unread badge count.
	CountUnread(ctx context.Context) (int, error)

	// MarkRead marks a single notification as read.
	MarkRead(ctx context.Context, id string) error

	// MarkAllRead marks every notification of the user as read.
	MarkAllRead(ctx context.Context) error

	// Delete removes a notification.
	Delete(ctx context.Context, id string) error
}
