package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/domain"
)

const (
	// DefaultCapacity bounds the in-memory collection; the oldest entries are evicted.
	DefaultCapacity = 200
	// DefaultSnapshotLimit is how many notifications a snapshot load requests.
	DefaultSnapshotLimit = 20

	localIDPrefix = "local-"
)

// GuardFunc reports whether backend calls are currently allowed
// (a valid token is present and the route is not a public auth page).
type GuardFunc func() bool

// Presenter surfaces genuinely new notifications to the user.
type Presenter interface {
	Present(n domain.Notification)
	Dismiss()
	Current() *domain.LiveNotification
}

// Broadcaster fans store changes out to consumer surfaces.
type Broadcaster interface {
	Broadcast(change domain.Change)
}

// Options configures a Store. Backend is required.
type Options struct {
	Backend       domain.Backend
	Guard         GuardFunc
	Presenter     Presenter
	Broadcaster   Broadcaster
	Capacity      int
	SnapshotLimit int
}

// Store is the single source of truth for the notification list and the unread
// counter shared by every consumer surface.
type Store struct {
	backend       domain.Backend
	guard         GuardFunc
	presenter     Presenter
	hub           Broadcaster
	capacity      int
	snapshotLimit int

	mu     sync.RWMutex
	items  []domain.Notification // newest first
	unread int
	// gen advances on Clear; loads started before it are discarded.
	gen uint64
}

// New creates a Store.
func New(opts Options) *Store {
	s := &Store{
		backend:       opts.Backend,
		guard:         opts.Guard,
		presenter:     opts.Presenter,
		hub:           opts.Broadcaster,
		capacity:      opts.Capacity,
		snapshotLimit: opts.SnapshotLimit,
	}
	if s.guard == nil {
		s.guard = func() bool { return true }
	}
	if s.presenter == nil {
		s.presenter = nopPresenter{}
	}
	if s.hub == nil {
		s.hub = nopBroadcaster{}
	}
	if s.capacity <= 0 {
		s.capacity = DefaultCapacity
	}
	if s.snapshotLimit <= 0 {
		s.snapshotLimit = DefaultSnapshotLimit
	}
	return s
}

// ─── Backend-backed operations ───────────────────────────────────────────────

// LoadSnapshot replaces the collection with the newest limit notifications.
// It is a no-op while the guard denies access.
func (s *Store) LoadSnapshot(ctx context.Context, limit int) error {
	if !s.guard() {
		return nil
	}
	if limit <= 0 {
		limit = s.snapshotLimit
	}

	gen := s.generation()
	list, err := s.backend.List(ctx, limit)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			log.Debug().Msg("snapshot load skipped: unauthenticated")
			return nil
		}
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Debug().Msg("snapshot discarded: store cleared while loading")
		return nil
	}
	s.items = s.items[:0]
	seen := make(map[string]struct{}, len(list))
	for _, n := range list {
		if n.ID == "" {
			n.ID = localID()
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		s.items = append(s.items, n)
		if len(s.items) == s.capacity {
			break
		}
	}
	unread := s.unread
	s.mu.Unlock()

	s.hub.Broadcast(domain.Change{Type: domain.ChangeNotifications, UnreadCount: unread})
	return nil
}

// LoadUnreadCount reconciles the counter with the backend.
func (s *Store) LoadUnreadCount(ctx context.Context) error {
	if !s.guard() {
		return nil
	}

	gen := s.generation()
	count, err := s.backend.CountUnread(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			log.Debug().Msg("unread count load skipped: unauthenticated")
			return nil
		}
		return err
	}
	if count < 0 {
		count = 0
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Debug().Msg("unread count discarded: store cleared while loading")
		return nil
	}
	s.unread = count
	s.mu.Unlock()

	s.hub.Broadcast(domain.Change{Type: domain.ChangeUnreadCount, UnreadCount: count})
	return nil
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// MarkRead flags a notification as read locally, decrements the counter and then
// tells the backend. A backend failure is logged and the local state is kept.
func (s *Store) MarkRead(ctx context.Context, id string) {
	s.mu.Lock()
	wasUnread := true
	var changed *domain.Notification
	if i := s.indexOf(id); i >= 0 {
		wasUnread = !s.items[i].Read
		s.items[i].Read = true
		n := s.items[i]
		changed = &n
	}
	if wasUnread && s.unread > 0 {
		s.unread--
	}
	unread := s.unread
	s.mu.Unlock()

	s.hub.Broadcast(domain.Change{Type: domain.ChangeNotifications, Notification: changed, UnreadCount: unread})
	s.hub.Broadcast(domain.Change{Type: domain.ChangeUnreadCount, UnreadCount: unread})

	if !isRemote(id) || !s.guard() {
		return
	}
	if err := s.backend.MarkRead(ctx, id); err != nil {
		logWriteFailure(err, "mark read", id)
	}
}

// MarkAllRead flags every local notification as read, zeroes the counter and
// tells the backend.
func (s *Store) MarkAllRead(ctx context.Context) {
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
	s.mu.Unlock()

	s.hub.Broadcast(domain.Change{Type: domain.ChangeNotifications})
	s.hub.Broadcast(domain.Change{Type: domain.ChangeUnreadCount})

	if !s.guard() {
		return
	}
	if err := s.backend.MarkAllRead(ctx); err != nil {
		logWriteFailure(err, "mark all read", "")
	}
}

// Delete removes a notification locally and on the backend. Deleting an unread
// notification also decrements the counter.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		if !s.items[i].Read && s.unread > 0 {
			s.unread--
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	unread := s.unread
	s.mu.Unlock()

	s.hub.Broadcast(domain.Change{Type: domain.ChangeNotifications, UnreadCount: unread})

	if !isRemote(id) || !s.guard() {
		return
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		logWriteFailure(err, "delete", id)
	}
}

// Page reads one page of the full listing without touching the collection.
func (s *Store) Page(ctx context.Context, page, size int) (*domain.Page, error) {
	if !s.guard() {
		return &domain.Page{}, nil
	}

	p, err := s.backend.ListPage(ctx, page, size)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			return &domain.Page{}, nil
		}
		return nil, err
	}
	return p, nil
}

// ─── Local operations ────────────────────────────────────────────────────────

// Apply dispatches a normalized push event.
func (s *Store) Apply(ctx context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.KindNotification:
		if ev.Notification == nil {
			return
		}
		n := *ev.Notification
		if n.ID == "" {
			n.ID = localID()
		}
		if !s.Upsert(n) {
			return
		}
		if !n.Read {
			s.adjustUnread(1)
		}
		s.presenter.Present(n)
	case domain.KindUnreadCount:
		s.SetUnreadCount(ev.Count)
	case domain.KindRefresh:
		if err := s.LoadSnapshot(ctx, s.snapshotLimit); err != nil {
			log.Warn().Err(err).Msg("refresh: snapshot load failed")
		}
		if err := s.LoadUnreadCount(ctx); err != nil {
			log.Warn().Err(err).Msg("refresh: unread count load failed")
		}
	default:
		log.Debug().Str("kind", string(ev.Kind)).Msg("ignoring event")
	}
}

// Upsert inserts n at the front, or replaces and moves an existing entry with the
// same id to the front. It reports whether the id was not present before.
func (s *Store) Upsert(n domain.Notification) bool {
	if n.ID == "" {
		n.ID = localID()
	}

	s.mu.Lock()
	isNew := true
	if i := s.indexOf(n.ID); i >= 0 {
		isNew = false
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	s.items = append(s.items, domain.Notification{})
	copy(s.items[1:], s.items)
	s.items[0] = n
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
	unread := s.unread
	s.mu.Unlock()

	s.hub.Broadcast(domain.Change{Type: domain.ChangeNotifications, Notification: &n, UnreadCount: unread})
	return isNew
}

// SetUnreadCount overwrites the counter, flooring negatives at zero.
func (s *Store) SetUnreadCount(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.unread = n
	s.mu.Unlock()

	s.hub.Broadcast(domain.Change{Type: domain.ChangeUnreadCount, UnreadCount: n})
}

// Clear empties the collection, zeroes the counter and dismisses the live toast.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.unread = 0
	s.gen++
	s.mu.Unlock()

	s.presenter.Dismiss()
	s.hub.Broadcast(domain.Change{Type: domain.ChangeCleared})
}

// ─── Snapshots ───────────────────────────────────────────────────────────────

// Notifications returns a copy of the collection, newest first.
func (s *Store) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *Store) LiveNotification() *domain.LiveNotification {
	return s.presenter.Current()
}

func (s *Store) adjustUnread(delta int) {
	s.mu.Lock()
	s.unread += delta
	if s.unread < 0 {
		s.unread = 0
	}
	n := s.unread
	s.mu.Unlock()

	s.hub.Broadcast(domain.Change{Type: domain.ChangeUnreadCount, UnreadCount: n})
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func localID() string {
	return LocalID(uuid.NewString())
}

// LocalID returns a stable id for a notification the backend does not know
// about. Operations on it never reach the backend.
func LocalID(key string) string {
	return localIDPrefix + key
}

// isRemote reports whether the backend knows about id.
func isRemote(id string) bool {
	return id != "" && !strings.HasPrefix(id, localIDPrefix)
}

func logWriteFailure(err error, op, id string) {
	if errors.Is(err, domain.ErrUnauthenticated) {
		log.Debug().Str("op", op).Str("id", id).Msg("backend write skipped: unauthenticated")
		return
	}
	log.Warn().Err(err).Str("op", op).Str("id", id).Msg("backend write failed, keeping local state")
}

type nopPresenter struct{}

func (nopPresenter) Present(domain.Notification)       {}
func (nopPresenter) Dismiss()                          {}
func (nopPresenter) Current() *domain.LiveNotification { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(domain.Change) {}
